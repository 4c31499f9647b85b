package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/google/uuid"
)

func TestSend_NotConfiguredFailsFast(t *testing.T) {
	d := NewDispatcher("", zerolog.Nop())
	err := d.Send(context.Background(), "token", "title", "body", nil)
	require.Error(t, err)
}

func TestSend_StampsUniqueNotificationID(t *testing.T) {
	var received sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher(srv.URL, zerolog.Nop())
	require.NoError(t, d.Send(context.Background(), "device-token", "Take a break", "You're due for a rest", nil))

	require.Equal(t, "device-token", received.Token)
	_, err := uuid.Parse(received.ID)
	require.NoError(t, err, "notification id must be a valid uuid")
}

func TestSend_NonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := NewDispatcher(srv.URL, zerolog.Nop())
	err := d.Send(context.Background(), "token", "title", "body", nil)
	require.Error(t, err)
}

func TestMulticast_TalliesPerTokenOutcomes(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher(srv.URL, zerolog.Nop())
	result := d.Multicast(context.Background(), []string{"a", "b", "c"}, "title", "body", nil)

	require.Equal(t, 2, result.SuccessCount)
	require.Equal(t, 1, result.FailureCount)
}
