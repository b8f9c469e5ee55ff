package provider

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Registry holds the providers negotiated for a session, each with an
// optional concurrency limit on in-flight calls.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	closed  bool
}

type entry struct {
	provider Provider
	sem      *semaphore.Weighted // nil = unbounded
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds a provider under its own name. A limit of 0 means
// unbounded; a positive limit caps concurrent in-flight calls to that
// provider. Registering the same name twice is an error.
func (r *Registry) Register(p Provider, limit int64) error {
	if p == nil {
		return errors.New("register nil provider")
	}
	if limit < 0 {
		return &Error{Provider: p.Name(), Message: "negative concurrency limit"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return &Error{Provider: p.Name(), Message: "registry closed"}
	}
	if _, ok := r.entries[p.Name()]; ok {
		return &Error{Provider: p.Name(), Message: "already registered"}
	}

	e := &entry{provider: p}
	if limit > 0 {
		e.sem = semaphore.NewWeighted(limit)
	}
	r.entries[p.Name()] = e
	return nil
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, &NotFoundError{Provider: name}
	}
	return e.provider, nil
}

// Has reports whether a provider is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

// Names returns the registered provider names, unordered.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	return names
}

// Acquire blocks until a call slot for the named provider is free or
// ctx is cancelled. The returned release func must be called exactly
// once when the call completes. Unlimited providers return a no-op.
func (r *Registry) Acquire(ctx context.Context, name string) (release func(), err error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &NotFoundError{Provider: name}
	}
	if e.sem == nil {
		return func() {}, nil
	}
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { e.sem.Release(1) }, nil
}

// Close closes every registered provider. The first close error is
// returned; all providers are closed regardless.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	var first error
	for name, e := range r.entries {
		if err := e.provider.Close(); err != nil && first == nil {
			first = &Error{Provider: name, Message: err.Error()}
		}
	}
	return first
}
