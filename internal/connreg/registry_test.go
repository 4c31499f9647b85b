package connreg

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSocket struct {
	mu      sync.Mutex
	written []interface{}
	failAt  int
	closed  bool
}

func (f *fakeSocket) Write(ctx context.Context, v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAt > 0 && len(f.written) == f.failAt-1 {
		return errors.New("write failed")
	}
	f.written = append(f.written, v)
	return nil
}

func (f *fakeSocket) Close() error {
	f.closed = true
	return nil
}

func TestRegistry_ConnectReplacesPriorSocket(t *testing.T) {
	r := New(zerolog.Nop())
	s1 := &fakeSocket{}
	s2 := &fakeSocket{}

	r.Connect(1, s1)
	r.Connect(1, s2)
	assert.True(t, s1.closed)
	assert.Equal(t, 1, r.Count())

	r.Send(1, "hello")
	assert.Len(t, s2.written, 1)
	assert.Empty(t, s1.written)
}

func TestRegistry_SendDropsOnWriteFailure(t *testing.T) {
	r := New(zerolog.Nop())
	s := &fakeSocket{failAt: 1}
	r.Connect(1, s)

	r.Send(1, "hello")
	assert.Equal(t, 0, r.Count())
}

func TestRegistry_BroadcastRemovesFailedConnectionsOnly(t *testing.T) {
	r := New(zerolog.Nop())
	good := &fakeSocket{}
	bad := &fakeSocket{failAt: 1}
	r.Connect(1, good)
	r.Connect(2, bad)

	r.Broadcast("ping")

	require.Equal(t, 1, r.Count())
	assert.Len(t, good.written, 1)
}

func TestRegistry_DisconnectRemovesEntry(t *testing.T) {
	r := New(zerolog.Nop())
	r.Connect(1, &fakeSocket{})
	r.Disconnect(1)
	assert.Equal(t, 0, r.Count())
}
