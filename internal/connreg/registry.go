// Package connreg implements the Connection Registry (C11): a driver-to-
// socket multiplexer supporting targeted send and broadcast with
// fail-fast connection cleanup.
package connreg

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Socket is the minimal bidirectional frame socket the registry needs.
// NewSocket wraps a *websocket.Conn to satisfy it; tests use a fake.
type Socket interface {
	Write(ctx context.Context, v interface{}) error
	Close() error
}

type wsSocket struct {
	conn *websocket.Conn
}

func (s wsSocket) Write(ctx context.Context, v interface{}) error {
	return wsjson.Write(ctx, s.conn, v)
}

func (s wsSocket) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "")
}

// NewSocket wraps a live websocket connection as a registry Socket.
func NewSocket(conn *websocket.Conn) Socket {
	return wsSocket{conn: conn}
}

const sendTimeout = 5 * time.Second

// Registry maps driver_id to its currently open socket.
type Registry struct {
	mu      sync.RWMutex
	sockets map[int64]Socket
	log     zerolog.Logger
}

// New builds an empty Registry.
func New(log zerolog.Logger) *Registry {
	return &Registry{
		sockets: make(map[int64]Socket),
		log:     log.With().Str("component", "connection_registry").Logger(),
	}
}

// Connect registers a driver's socket, replacing any prior one for that
// driver. The prior socket, if any, is closed.
func (r *Registry) Connect(driverID int64, socket Socket) {
	r.mu.Lock()
	prior, had := r.sockets[driverID]
	r.sockets[driverID] = socket
	r.mu.Unlock()

	if had {
		_ = prior.Close()
	}
}

// Disconnect removes a driver's socket entry, if present.
func (r *Registry) Disconnect(driverID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sockets, driverID)
}

// Send delivers a message to a driver's socket. It silently drops the
// message if the driver has no open socket. A write failure removes the
// stale entry.
func (r *Registry) Send(driverID int64, message interface{}) {
	r.mu.RLock()
	socket, ok := r.sockets[driverID]
	r.mu.RUnlock()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if err := socket.Write(ctx, message); err != nil {
		r.log.Warn().Err(err).Int64("driver_id", driverID).Msg("send failed, dropping connection")
		r.Disconnect(driverID)
	}
}

// Broadcast delivers a message to every connected driver. It iterates over a
// snapshot of the map and defers removals so writers are never mutating the
// map it is ranging over.
func (r *Registry) Broadcast(message interface{}) {
	r.mu.RLock()
	snapshot := make(map[int64]Socket, len(r.sockets))
	for id, s := range r.sockets {
		snapshot[id] = s
	}
	r.mu.RUnlock()

	var failed []int64
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	for driverID, socket := range snapshot {
		if err := socket.Write(ctx, message); err != nil {
			r.log.Warn().Err(err).Int64("driver_id", driverID).Msg("broadcast send failed, dropping connection")
			failed = append(failed, driverID)
		}
	}

	if len(failed) > 0 {
		r.mu.Lock()
		for _, id := range failed {
			delete(r.sockets, id)
		}
		r.mu.Unlock()
	}
}

// Count returns the number of currently connected drivers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sockets)
}
