// Package registry implements the Model Registry (C1): a set of
// independently-loadable predictor handles keyed by kind.
package registry

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Kind names one of the five loadable artifacts.
type Kind string

const (
	KindDifficulty Kind = "difficulty"
	KindSequence   Kind = "sequence"
	KindHealth     Kind = "health"
	KindExplainer  Kind = "explainer"
	KindScaler     Kind = "scaler"
)

// Loader produces a handle for one kind. A nil handle with a nil error means
// "intentionally absent" (e.g. no explainer configured).
type Loader func(ctx context.Context) (interface{}, error)

// Registry holds predictor handles, loaded at most once per process.
type Registry struct {
	mu      sync.Mutex
	loaders map[Kind]Loader
	handles map[Kind]interface{}
	ready   bool
	log     zerolog.Logger
}

// New builds a Registry from a map of kind to loader function.
func New(loaders map[Kind]Loader, log zerolog.Logger) *Registry {
	return &Registry{
		loaders: loaders,
		handles: make(map[Kind]interface{}),
		log:     log.With().Str("component", "registry").Logger(),
	}
}

// Load runs every loader exactly once. A failure in one loader is logged and
// recorded as absent; it does not abort the others, and Load never returns
// an error itself.
func (r *Registry) Load(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ready {
		return
	}

	for kind, load := range r.loaders {
		handle, err := load(ctx)
		if err != nil {
			r.log.Warn().Err(err).Str("kind", string(kind)).Msg("model load failed, marking absent")
			continue
		}
		if handle != nil {
			r.handles[kind] = handle
		}
	}
	r.ready = true
}

// Get returns the handle for kind and whether it is present.
func (r *Registry) Get(kind Kind) (interface{}, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[kind]
	return h, ok
}

// Ready reports whether the first Load call has completed.
func (r *Registry) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready
}
