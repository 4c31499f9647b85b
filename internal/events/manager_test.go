package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newCapturingManager() (*Manager, *bytes.Buffer) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)
	return NewManager(log), &buf
}

func TestEmit_LogsStructuredEvent(t *testing.T) {
	m, buf := newCapturingManager()
	m.Emit(SwapProposed, "swap", map[string]interface{}{"swap_id": float64(7)})

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, string(SwapProposed), line["event_type"])
	require.Equal(t, "swap", line["module"])

	var inner Event
	require.NoError(t, json.Unmarshal([]byte(line["event"].(string)), &inner))
	require.Equal(t, SwapProposed, inner.Type)
	require.Equal(t, float64(7), inner.Data["swap_id"])
	require.False(t, inner.Timestamp.IsZero())
}

func TestEmitError_WrapsErrorIntoEventData(t *testing.T) {
	m, buf := newCapturingManager()
	m.EmitError("assignment", errors.New("boom"), map[string]interface{}{"operational_date": "2026-08-01"})

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, string(ErrorOccurred), line["event_type"])

	var inner Event
	require.NoError(t, json.Unmarshal([]byte(line["event"].(string)), &inner))
	require.Equal(t, "boom", inner.Data["error"])
}
