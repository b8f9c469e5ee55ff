// Package testutil holds shared test doubles for session-level tests.
package testutil

import (
	"context"
	"sync"

	"github.com/capstan-io/capstan/internal/events"
	"github.com/capstan-io/capstan/internal/scheduler"
	"github.com/capstan-io/capstan/internal/urn"
	"github.com/capstan-io/capstan/internal/value"
)

// ManifestYAML is a valid project manifest fixture.
const ManifestYAML = `name: webapp
runtime: nodejs
plugins:
  providers:
    - name: aws
      version: ">=6.0.0"
`

// EchoProvider is a provider stub whose Create echoes inputs plus an
// "id" output and whose Invoke echoes its args. Override CreateFn or
// InvokeFn for failure cases.
type EchoProvider struct {
	ProviderName string
	CreateFn     func(u urn.URN, typ string, inputs value.Object) (value.Object, error)
	InvokeFn     func(token string, args value.Object) (value.Object, error)

	mu          sync.Mutex
	createCalls int
}

func (p *EchoProvider) Name() string { return p.ProviderName }

func (p *EchoProvider) Check(_ context.Context, _ string, inputs value.Object) (value.Object, error) {
	return inputs, nil
}

func (p *EchoProvider) Create(_ context.Context, u urn.URN, typ string, inputs value.Object) (value.Object, error) {
	p.mu.Lock()
	p.createCalls++
	p.mu.Unlock()
	if p.CreateFn != nil {
		return p.CreateFn(u, typ, inputs)
	}
	out := inputs.Copy()
	out["id"] = value.String(string(u))
	return out, nil
}

func (p *EchoProvider) Invoke(_ context.Context, token string, args value.Object) (value.Object, error) {
	if p.InvokeFn != nil {
		return p.InvokeFn(token, args)
	}
	return args, nil
}

func (p *EchoProvider) Close() error { return nil }

// CreateCalls returns how many Create calls the provider served.
func (p *EchoProvider) CreateCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.createCalls
}

// CollectEvents drains a subscription to completion and returns every
// event in order. Blocks until the stream closes.
func CollectEvents(sub *events.Subscription) []events.Event {
	var out []events.Event
	for e := range sub.Events() {
		out = append(out, e)
	}
	return out
}

// MemoryCheckpoint records checkpoint calls in memory.
type MemoryCheckpoint struct {
	mu        sync.Mutex
	Sessions  map[string]string // token -> last state
	Resources map[urn.URN]scheduler.Record
	Events    []events.Event
}

func NewMemoryCheckpoint() *MemoryCheckpoint {
	return &MemoryCheckpoint{
		Sessions:  make(map[string]string),
		Resources: make(map[urn.URN]scheduler.Record),
	}
}

func (c *MemoryCheckpoint) SaveSession(token, _, _, state string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Sessions[token] = state
	return nil
}

func (c *MemoryCheckpoint) SaveResource(_ string, rec scheduler.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Resources[rec.URN] = rec
	return nil
}

func (c *MemoryCheckpoint) SaveEvent(_ string, e events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Events = append(c.Events, e)
	return nil
}

// SessionState returns the last saved state for token.
func (c *MemoryCheckpoint) SessionState(token string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Sessions[token]
}

// Resource returns the saved record for u.
func (c *MemoryCheckpoint) Resource(u urn.URN) (scheduler.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.Resources[u]
	return rec, ok
}

// EventCount returns how many events were persisted.
func (c *MemoryCheckpoint) EventCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Events)
}
