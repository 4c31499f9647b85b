package cache

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetward/dispatch/internal/database"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	db, err := database.New(t.TempDir() + "/test.db")
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLiteStore(db.Conn(), zerolog.Nop())
}

func TestSQLiteStore_SetAndGet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "key", "value", time.Minute))

	v, ok, err := store.Get(ctx, "key")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "value", v)
}

func TestSQLiteStore_ExpiredEntryIsReapedOnRead(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Set(ctx, "stale", "value", -time.Second))

	_, ok, err := store.Get(ctx, "stale")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteStore_SetOverwritesExistingKey(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Set(ctx, "key", "first", time.Minute))
	require.NoError(t, store.Set(ctx, "key", "second", time.Minute))

	v, ok, err := store.Get(ctx, "key")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "second", v)
}

func TestSQLiteStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Set(ctx, "key", "value", time.Minute))
	require.NoError(t, store.Delete(ctx, "key"))

	_, ok, err := store.Get(ctx, "key")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteStore_DeleteByPrefix(t *testing.T) {
	ctx := context.Background()
	sqliteStore := newTestStore(t).(*SQLiteStore)

	require.NoError(t, sqliteStore.Set(ctx, "forecast:city-a:2026-08-01", "1", time.Minute))
	require.NoError(t, sqliteStore.Set(ctx, "forecast:city-a:2026-08-02", "2", time.Minute))
	require.NoError(t, sqliteStore.Set(ctx, "forecast:city-b:2026-08-01", "3", time.Minute))

	require.NoError(t, sqliteStore.DeleteByPrefix(ctx, "forecast:city-a:"))

	_, ok, err := sqliteStore.Get(ctx, "forecast:city-a:2026-08-01")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = sqliteStore.Get(ctx, "forecast:city-b:2026-08-01")
	require.NoError(t, err)
	assert.True(t, ok)
}

type jsonPayload struct {
	Volume int `json:"volume"`
}

func TestGetSetJSON_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ok, err := GetJSON(ctx, store, "payload", &jsonPayload{})
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, SetJSON(ctx, store, "payload", jsonPayload{Volume: 42}, time.Minute))

	var dest jsonPayload
	ok, err = GetJSON(ctx, store, "payload", &dest)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 42, dest.Volume)
}
