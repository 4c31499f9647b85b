// Package cache implements the C13 cache abstraction: a small get/set/delete
// contract with two interchangeable backends, a Redis-backed store for
// production and a SQL-table-backed store for tests and single-node
// deployments that don't run Redis.
package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Store is the cache contract every backend implements.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// GetJSON reads and unmarshals a JSON value, reporting whether it was present.
func GetJSON(ctx context.Context, store Store, key string, dest interface{}) (bool, error) {
	raw, ok, err := store.Get(ctx, key)
	if err != nil || !ok {
		return ok, err
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false, fmt.Errorf("unmarshal cache value for %s: %w", key, err)
	}
	return true, nil
}

// SetJSON marshals and stores a value with a TTL.
func SetJSON(ctx context.Context, store Store, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}
	return store.Set(ctx, key, string(raw), ttl)
}

// VolumeForecastKey is the canonical key for an N-day volume forecast.
func VolumeForecastKey(days int) string {
	return fmt.Sprintf("volume_forecast:%d_days", days)
}

// MemoKey derives the memoization key for a pure function call: the
// function's name plus an 8-hex-digit hash of its arguments, so repeated
// calls with the same arguments share a cache slot.
func MemoKey(function string, args ...interface{}) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprintf("%v", a)
	}
	sort.Strings(parts)
	sum := sha1.Sum([]byte(fmt.Sprintf("%v", parts)))
	return fmt.Sprintf("cache:%s:%s", function, hex.EncodeToString(sum[:])[:8])
}
