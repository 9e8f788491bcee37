// internal/scheduler/cleanup.go
package scheduler

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/textpulse/textpulse-backend/internal/model"
)

// CleanupFunc is one maintenance routine. Routines must be idempotent; each
// fails independently without affecting the others.
type CleanupFunc func(ctx context.Context) error

// CleanupRegistry maps cleanup kinds to their routines.
type CleanupRegistry struct {
	mu       sync.RWMutex
	routines map[model.CleanupKind]CleanupFunc
}

func NewCleanupRegistry() *CleanupRegistry {
	return &CleanupRegistry{routines: make(map[model.CleanupKind]CleanupFunc)}
}

// Register binds a routine to a cleanup kind, replacing any previous binding.
func (r *CleanupRegistry) Register(kind model.CleanupKind, fn CleanupFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routines[kind] = fn
}

// Run executes the routine registered for kind.
func (r *CleanupRegistry) Run(ctx context.Context, kind model.CleanupKind) error {
	r.mu.RLock()
	fn, ok := r.routines[kind]
	r.mu.RUnlock()
	if !ok {
		return errors.Newf("no cleanup routine registered for kind %q", kind)
	}
	return fn(ctx)
}
