package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestDescribe_NotConfiguredReturnsError(t *testing.T) {
	c := NewClient("", "key", zerolog.Nop())
	_, err := c.Describe(context.Background(), "metro")
	require.Error(t, err)
}

func TestDescribe_ReturnsFirstConditionDescription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "metro", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"weather":[{"main":"Rain","description":"light rain"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", zerolog.Nop())
	desc, err := c.Describe(context.Background(), "metro")
	require.NoError(t, err)
	require.Equal(t, "light rain", desc)
}

func TestDescribe_NoConditionsIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"weather":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", zerolog.Nop())
	_, err := c.Describe(context.Background(), "metro")
	require.Error(t, err)
}

func TestDescribe_NonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", zerolog.Nop())
	_, err := c.Describe(context.Background(), "metro")
	require.Error(t, err)
}
