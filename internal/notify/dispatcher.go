// Package notify is a thin, best-effort client for the push dispatch
// service: send/multicast over HTTP with a hard 5s timeout. Failures are
// returned to the caller, who is expected to log and move on rather than
// retry inline, per the push-notification contract.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const callTimeout = 5 * time.Second

// Dispatcher sends push notifications through the push dispatch service.
type Dispatcher struct {
	httpClient *http.Client
	baseURL    string
	log        zerolog.Logger
}

// NewDispatcher builds a Dispatcher. baseURL == "" disables dispatch; every
// call then fails fast without attempting a network round trip.
func NewDispatcher(baseURL string, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		httpClient: &http.Client{Timeout: callTimeout},
		baseURL:    baseURL,
		log:        log.With().Str("client", "push_dispatch").Logger(),
	}
}

type sendRequest struct {
	ID    string                 `json:"id"`
	Token string                 `json:"token"`
	Title string                 `json:"title"`
	Body  string                 `json:"body"`
	Data  map[string]interface{} `json:"data,omitempty"`
}

// Send dispatches a single push notification. Returns an error on any
// failure; callers treat this as best-effort and must not fail their own
// operation because of it. Each call stamps a fresh notification ID so the
// push dispatch service can dedup retries and so logs on both sides can be
// correlated.
func (d *Dispatcher) Send(ctx context.Context, endpointToken, title, body string, data map[string]interface{}) error {
	if d.baseURL == "" {
		return fmt.Errorf("push dispatcher not configured")
	}

	notificationID := uuid.NewString()
	payload, err := json.Marshal(sendRequest{ID: notificationID, Token: endpointToken, Title: title, Body: body, Data: data})
	if err != nil {
		return fmt.Errorf("encode push payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/send", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call push dispatcher: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("push dispatcher returned status %d", resp.StatusCode)
	}
	return nil
}

// MulticastResult tallies a multicast's per-token outcomes.
type MulticastResult struct {
	SuccessCount int
	FailureCount int
}

// Multicast sends the same notification to every token, tolerating
// individual failures.
func (d *Dispatcher) Multicast(ctx context.Context, tokens []string, title, body string, data map[string]interface{}) MulticastResult {
	var result MulticastResult
	for _, token := range tokens {
		if err := d.Send(ctx, token, title, body, data); err != nil {
			d.log.Warn().Err(err).Msg("multicast send failed for one token")
			result.FailureCount++
			continue
		}
		result.SuccessCount++
	}
	return result
}
