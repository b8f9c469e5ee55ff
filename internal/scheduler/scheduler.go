// Package scheduler drives resource registrations through their state
// machine: Pending, AwaitingDependencies, AwaitingProvider, and the
// terminal Completed or Failed.
//
// Each registration runs on its caller's goroutine. Dependency waits
// use per-resource done channels, never polling; the channel close is
// also the visibility barrier for the resource's output bag. After a
// resource completes its outputs are never written again.
package scheduler

import (
	"context"
	"sync"

	"github.com/capstan-io/capstan/internal/events"
	"github.com/capstan-io/capstan/internal/graph"
	"github.com/capstan-io/capstan/internal/provider"
	"github.com/capstan-io/capstan/internal/urn"
	"github.com/capstan-io/capstan/internal/value"
)

// State is a resource lifecycle state.
type State string

const (
	StatePending              State = "pending"
	StateAwaitingDependencies State = "awaiting-dependencies"
	StateAwaitingProvider     State = "awaiting-provider"
	StateCompleted            State = "completed"
	StateFailed               State = "failed"
)

// Terminal reports whether s is a terminal state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// RegisterRequest carries one resource registration.
type RegisterRequest struct {
	URN         urn.URN
	Type        string
	Inputs      value.Object
	DependsOn   []urn.URN
	RequestHash string
}

// Result is the outcome of a completed registration.
type Result struct {
	URN     urn.URN
	Outputs value.Object
	State   State
}

// Record is a snapshot of one resource for checkpointing.
type Record struct {
	URN         urn.URN
	Type        string
	State       State
	Inputs      value.Object
	Outputs     value.Object
	RequestHash string
	Failure     string
}

type resource struct {
	urn         urn.URN
	typ         string
	inputs      value.Object
	requestHash string
	declared    bool

	state State // guarded by Scheduler.mu until done closes

	// outputs and err are written exactly once, inside finishOnce,
	// before close(done); other goroutines read them only after
	// <-done.
	outputs value.Object
	err     error

	finishOnce sync.Once
	done       chan struct{}
}

// Scheduler coordinates resource registrations for one session.
type Scheduler struct {
	graph    *graph.Graph
	registry *provider.Registry
	mux      *events.Multiplexer

	checkpoint func(Record)

	mu        sync.Mutex
	resources map[urn.URN]*resource
	cancelled bool
	cancelErr error
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithCheckpoint installs a hook invoked on every terminal transition,
// before the registration returns.
func WithCheckpoint(fn func(Record)) Option {
	return func(s *Scheduler) { s.checkpoint = fn }
}

// New returns a scheduler over the given graph, provider registry and
// event multiplexer.
func New(g *graph.Graph, reg *provider.Registry, mux *events.Multiplexer, opts ...Option) *Scheduler {
	s := &Scheduler{
		graph:     g,
		registry:  reg,
		mux:       mux,
		resources: make(map[urn.URN]*resource),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register runs one resource registration to a terminal state and
// returns its result. It blocks while dependencies settle and while
// the provider call is in flight.
//
// Registering an already-declared urn with the same request hash is
// the idempotent-retry path: the cached outputs return without a
// second provider call. The same urn with a different hash is a
// DuplicateIdentityError.
func (s *Scheduler) Register(ctx context.Context, req RegisterRequest) (*Result, error) {
	res, retry, err := s.declare(req)
	if err != nil {
		return nil, err
	}
	if retry {
		return s.await(ctx, res)
	}
	return s.run(ctx, res, req.DependsOn)
}

// declare claims the urn and returns its resource entry. retry is true
// when the urn was already declared with the same request hash.
func (s *Scheduler) declare(req RegisterRequest) (*resource, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelled {
		return nil, false, &CancelError{URN: req.URN, Cause: s.cancelErr}
	}

	res, ok := s.resources[req.URN]
	if ok && res.declared {
		if req.RequestHash != "" && res.requestHash == req.RequestHash {
			return res, true, nil
		}
		return nil, false, &urn.DuplicateIdentityError{URN: req.URN}
	}
	if !ok {
		res = &resource{urn: req.URN, done: make(chan struct{})}
		s.resources[req.URN] = res
	}
	res.declared = true
	res.typ = req.Type
	res.inputs = req.Inputs
	res.requestHash = req.RequestHash
	res.state = StatePending
	return res, false, nil
}

// anticipated returns the entry for u, creating an undeclared
// placeholder when the urn has only been referenced so far.
func (s *Scheduler) anticipated(u urn.URN) *resource {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.resources[u]
	if !ok {
		res = &resource{urn: u, done: make(chan struct{})}
		s.resources[u] = res
	}
	return res
}

// run drives a freshly declared resource to a terminal state.
func (s *Scheduler) run(ctx context.Context, res *resource, hints []urn.URN) (*Result, error) {
	s.publish(events.ResourceStatus(res.urn, string(StatePending), ""))

	deps := mergeDeps(hints, value.DependenciesOf(res.inputs))
	if err := s.graph.AddNode(res.urn, deps); err != nil {
		return s.fail(res, err)
	}

	s.transition(res, StateAwaitingDependencies)
	for _, dep := range deps {
		depRes := s.anticipated(dep)
		select {
		case <-depRes.done:
		case <-ctx.Done():
			return s.fail(res, &CancelError{URN: res.urn, Cause: ctx.Err()})
		case <-res.done:
			// Cancelled out from under us.
			return nil, res.err
		}
		if depRes.err != nil {
			return s.fail(res, &DependencyError{URN: res.urn, Dependency: dep})
		}
	}

	inputs, err := value.ResolveObject(res.inputs, s)
	if err != nil {
		return s.fail(res, err)
	}

	s.transition(res, StateAwaitingProvider)
	outputs, err := s.create(ctx, res, inputs)
	if err != nil {
		return s.fail(res, err)
	}
	return s.complete(res, outputs)
}

// create issues the Check and Create provider calls under the
// provider's concurrency limit.
func (s *Scheduler) create(ctx context.Context, res *resource, inputs value.Object) (value.Object, error) {
	pkg := provider.PackageOf(res.typ)
	p, err := s.registry.Get(pkg)
	if err != nil {
		return nil, err
	}

	release, err := s.registry.Acquire(ctx, pkg)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &CancelError{URN: res.urn, Cause: ctx.Err()}
		}
		return nil, err
	}
	defer release()

	checked, err := p.Check(ctx, res.typ, inputs)
	if err != nil {
		return nil, wrapProviderErr(pkg, res.urn, err)
	}
	outputs, err := p.Create(ctx, res.urn, res.typ, checked)
	if err != nil {
		return nil, wrapProviderErr(pkg, res.urn, err)
	}
	return outputs, nil
}

// await handles the idempotent-retry path: block until the original
// registration is terminal, then return its cached result.
func (s *Scheduler) await(ctx context.Context, res *resource) (*Result, error) {
	select {
	case <-res.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.err != nil {
		return nil, res.err
	}
	return &Result{URN: res.urn, Outputs: res.outputs, State: StateCompleted}, nil
}

// ResolveOutput reads one output path from a completed resource. It
// satisfies value.Resolver; the scheduler calls it only after the
// referenced resource's done channel has closed.
func (s *Scheduler) ResolveOutput(u urn.URN, path string) (value.Value, error) {
	s.mu.Lock()
	res, ok := s.resources[u]
	s.mu.Unlock()
	if !ok {
		return nil, &DependencyError{Dependency: u}
	}
	select {
	case <-res.done:
	default:
		return nil, &DependencyError{Dependency: u}
	}
	if res.err != nil {
		return nil, &DependencyError{Dependency: u}
	}
	if path == "" {
		return res.outputs, nil
	}
	v, ok := res.outputs[path]
	if !ok {
		return value.Null{}, nil
	}
	return v, nil
}

func (s *Scheduler) complete(res *resource, outputs value.Object) (*Result, error) {
	s.finish(res, StateCompleted, outputs, nil)
	if res.err != nil {
		// Cancel won the race; the provider call succeeded but the
		// session already failed the resource.
		return nil, res.err
	}
	return &Result{URN: res.urn, Outputs: res.outputs, State: StateCompleted}, nil
}

func (s *Scheduler) fail(res *resource, err error) (*Result, error) {
	s.finish(res, StateFailed, nil, err)
	return nil, res.err
}

// finish records the terminal state exactly once: set the output bag
// and error, publish the status event, checkpoint, then close the done
// channel. Losers of the finish race observe the winner's outcome.
func (s *Scheduler) finish(res *resource, state State, outputs value.Object, err error) {
	res.finishOnce.Do(func() {
		res.outputs = outputs
		res.err = err

		s.mu.Lock()
		res.state = state
		s.mu.Unlock()

		reason := ""
		if err != nil {
			reason = err.Error()
		}
		s.publish(events.ResourceStatus(res.urn, string(state), reason))
		if s.checkpoint != nil {
			s.checkpoint(Record{
				URN:         res.urn,
				Type:        res.typ,
				State:       state,
				Inputs:      res.inputs,
				Outputs:     res.outputs,
				RequestHash: res.requestHash,
				Failure:     reason,
			})
		}
		close(res.done)
	})
	<-res.done
}

func (s *Scheduler) transition(res *resource, state State) {
	s.mu.Lock()
	res.state = state
	s.mu.Unlock()
	s.publish(events.ResourceStatus(res.urn, string(state), ""))
}

func (s *Scheduler) publish(e events.Event) {
	if s.mux == nil {
		return
	}
	// Cancellation may close the multiplexer before late status
	// events land; those are droppable.
	_ = s.mux.Publish(e)
}

// Cancel fails every non-terminal declared resource and refuses new
// registrations. In-flight provider calls observe cancellation through
// their context.
func (s *Scheduler) Cancel(cause error) {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return
	}
	s.cancelled = true
	s.cancelErr = cause

	var pending []*resource
	for _, res := range s.resources {
		if !res.declared {
			continue
		}
		select {
		case <-res.done:
		default:
			pending = append(pending, res)
		}
	}
	s.mu.Unlock()

	for _, res := range pending {
		s.finish(res, StateFailed, nil, &CancelError{URN: res.urn, Cause: cause})
	}
}

// WaitIdle blocks until every declared resource is terminal or ctx is
// cancelled. Undeclared placeholders (forward references never
// registered) do not block draining.
func (s *Scheduler) WaitIdle(ctx context.Context) error {
	for {
		s.mu.Lock()
		var waiting *resource
		for _, res := range s.resources {
			if !res.declared {
				continue
			}
			select {
			case <-res.done:
				continue
			default:
			}
			waiting = res
			break
		}
		s.mu.Unlock()

		if waiting == nil {
			return nil
		}
		select {
		case <-waiting.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Snapshot returns a checkpoint record for every declared resource.
func (s *Scheduler) Snapshot() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := make([]Record, 0, len(s.resources))
	for _, res := range s.resources {
		if !res.declared {
			continue
		}
		rec := Record{
			URN:         res.urn,
			Type:        res.typ,
			State:       res.state,
			Inputs:      res.inputs,
			RequestHash: res.requestHash,
		}
		select {
		case <-res.done:
			rec.Outputs = res.outputs
			if res.err != nil {
				rec.Failure = res.err.Error()
			}
		default:
		}
		records = append(records, rec)
	}
	return records
}

func mergeDeps(hints, refs []urn.URN) []urn.URN {
	if len(hints) == 0 {
		return refs
	}
	seen := make(map[urn.URN]struct{}, len(hints)+len(refs))
	var out []urn.URN
	for _, list := range [2][]urn.URN{hints, refs} {
		for _, u := range list {
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			out = append(out, u)
		}
	}
	return out
}
