// Package flags gates optional features behind named flags.
package flags

import (
	"context"
	"sync"
)

// ChainedActions gates the plan watcher and every plan-driving command.
const ChainedActions = "chained_actions"

// Provider answers feature flag queries once its source is loaded.
type Provider interface {
	// Ready blocks until flag values are available or ctx is done.
	Ready(ctx context.Context) error
	IsEnabled(name string) bool
}

// Static is a Provider over a fixed flag map. It starts not ready unless
// created with NewReady.
type Static struct {
	mu     sync.RWMutex
	values map[string]bool

	once  sync.Once
	ready chan struct{}
}

// NewStatic creates a provider that becomes ready on MarkReady.
func NewStatic(values map[string]bool) *Static {
	cp := make(map[string]bool, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return &Static{values: cp, ready: make(chan struct{})}
}

// NewReady creates a provider that is ready immediately.
func NewReady(values map[string]bool) *Static {
	s := NewStatic(values)
	s.MarkReady()
	return s
}

// MarkReady releases everyone blocked in Ready. Safe to call more than once.
func (s *Static) MarkReady() {
	s.once.Do(func() { close(s.ready) })
}

// Set changes a flag value.
func (s *Static) Set(name string, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = enabled
}

// Ready implements Provider.
func (s *Static) Ready(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsEnabled implements Provider. Unknown flags are disabled.
func (s *Static) IsEnabled(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[name]
}
