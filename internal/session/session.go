// Package session owns the lifecycle of one deployment session: token
// allocation, plugin negotiation, the registration scheduler, the
// event stream, and checkpointing.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/capstan-io/capstan/internal/events"
	"github.com/capstan-io/capstan/internal/graph"
	"github.com/capstan-io/capstan/internal/plugin"
	"github.com/capstan-io/capstan/internal/provider"
	"github.com/capstan-io/capstan/internal/scheduler"
	"github.com/capstan-io/capstan/internal/telemetry"
	"github.com/capstan-io/capstan/internal/urn"
	"github.com/capstan-io/capstan/internal/value"
)

// State is a session lifecycle state.
type State string

const (
	StateStarting  State = "starting"
	StateRunning   State = "running"
	StateDraining  State = "draining"
	StateCompleted State = "completed"
	StateAborted   State = "aborted"
)

// Terminal reports whether s is a terminal state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateAborted
}

// Checkpoint persists session progress. A nil checkpoint disables
// durability; everything else behaves identically.
type Checkpoint interface {
	SaveSession(token, stack, project, state string) error
	SaveResource(token string, rec scheduler.Record) error
	SaveEvent(token string, e events.Event) error
}

// Config assembles a session.
type Config struct {
	Stack    string
	Project  string
	Manifest *plugin.Manifest
	Registry *provider.Registry

	Tokens     TokenGenerator     // defaults to UUIDGenerator
	Checkpoint Checkpoint         // optional
	Metrics    *telemetry.Metrics // optional, observes the event stream
	Logger     *slog.Logger       // defaults to slog.Default()
	IntakeSize int                // event intake buffer, 0 = default
}

// Session is one deployment run. All methods are safe for concurrent
// use; registrations and invokes run on their caller's goroutine.
type Session struct {
	token   string
	stack   string
	project string

	log       *slog.Logger
	allocator *urn.Allocator
	graph     *graph.Graph
	registry  *provider.Registry
	sched     *scheduler.Scheduler
	mux       *events.Multiplexer
	plugins   []plugin.Spec
	ckpt      Checkpoint

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	state    State
	aborting bool

	persistWG sync.WaitGroup
}

// New builds a session in the Starting state. Start must be called
// before any registration.
func New(cfg Config) (*Session, error) {
	tokens := cfg.Tokens
	if tokens == nil {
		tokens = UUIDGenerator{}
	}
	token, err := tokens.NewToken()
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var muxOpts []events.Option
	if cfg.IntakeSize > 0 {
		muxOpts = append(muxOpts, events.WithIntakeSize(cfg.IntakeSize))
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		token:     token,
		stack:     cfg.Stack,
		project:   cfg.Project,
		log:       logger.With("session", token, "stack", cfg.Stack),
		allocator: urn.NewAllocator(cfg.Stack, cfg.Project),
		graph:     graph.New(),
		registry:  cfg.Registry,
		mux:       events.NewMultiplexer(muxOpts...),
		ckpt:      cfg.Checkpoint,
		ctx:       ctx,
		cancel:    cancel,
		state:     StateStarting,
	}

	s.sched = scheduler.New(s.graph, s.registry, s.mux,
		scheduler.WithCheckpoint(s.checkpointResource))

	if cfg.Manifest != nil {
		specs, err := plugin.RequiredPlugins(cfg.Manifest)
		if err != nil {
			cancel()
			s.mux.Close()
			return nil, err
		}
		s.plugins = specs
	}

	if cfg.Metrics != nil {
		cfg.Metrics.Watch(s.mux.Subscribe())
	}
	return s, nil
}

// Token returns the session token.
func (s *Session) Token() string { return s.token }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Plugins returns the negotiated plugin set.
func (s *Session) Plugins() []plugin.Spec { return s.plugins }

// Events returns the session's event multiplexer for subscription.
func (s *Session) Events() *events.Multiplexer { return s.mux }

// Start verifies every negotiated provider plugin is registered and
// moves the session to Running. A missing provider is fatal: the
// session aborts before any resource work.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.state != StateStarting {
		op := "start"
		st := s.state
		s.mu.Unlock()
		return &StateError{State: st, Op: op}
	}
	s.mu.Unlock()

	for _, spec := range s.plugins {
		if spec.Kind != plugin.KindResource {
			continue
		}
		if !s.registry.Has(spec.Name) {
			err := &plugin.ResolutionError{Plugin: spec.Name, Message: "provider not available"}
			s.abort(err)
			return err
		}
	}

	s.setState(StateRunning, "")
	s.saveSession()
	s.log.Info("session running", "plugins", len(s.plugins))
	return nil
}

// RegisterResource allocates the resource urn and drives the
// registration to a terminal state. Identical retries (same inputs,
// same dependencies) return the original outcome without a second
// provider call.
func (s *Session) RegisterResource(ctx context.Context, parent urn.URN, typ, name string, inputs value.Object, dependsOn []urn.URN) (*scheduler.Result, error) {
	if st := s.State(); st != StateRunning {
		return nil, &StateError{State: st, Op: "register resource"}
	}

	hash, err := value.RequestHash(typ, name, parent, inputs, dependsOn)
	if err != nil {
		return nil, err
	}
	u, _, err := s.allocator.Allocate(parent, typ, name, hash)
	if err != nil {
		return nil, err
	}

	callCtx, done := s.callCtx(ctx)
	defer done()
	return s.sched.Register(callCtx, scheduler.RegisterRequest{
		URN:         u,
		Type:        typ,
		Inputs:      inputs,
		DependsOn:   dependsOn,
		RequestHash: hash,
	})
}

// Invoke runs a provider function call within the session.
func (s *Session) Invoke(ctx context.Context, token string, args value.Object) (value.Object, error) {
	if st := s.State(); st != StateRunning {
		return nil, &StateError{State: st, Op: "invoke"}
	}
	callCtx, done := s.callCtx(ctx)
	defer done()
	return s.sched.Invoke(callCtx, token, args)
}

// Drain moves the session to Draining, waits for every registered
// resource to reach a terminal state, flushes the event stream, and
// completes. The program signals completion of all calls by calling
// Drain.
//
// The terminal state becomes visible only after the flush: an observer
// that reads Completed can rely on the event log being fully delivered.
func (s *Session) Drain(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateRunning {
		st := s.state
		s.mu.Unlock()
		return &StateError{State: st, Op: "drain"}
	}
	s.state = StateDraining
	s.mu.Unlock()
	s.publish(events.SessionStatus(string(StateDraining), ""))

	if err := s.sched.WaitIdle(ctx); err != nil {
		s.abort(err)
		return err
	}

	s.publish(events.SessionStatus(string(StateCompleted), ""))
	s.mux.Close()
	if err := s.mux.Drain(ctx); err != nil {
		return err
	}
	s.persistWG.Wait()

	s.mu.Lock()
	s.state = StateCompleted
	s.mu.Unlock()
	s.saveSession()
	s.log.Info("session completed", "resources", s.graph.Len())
	return nil
}

// Abort cancels the session: in-flight provider calls observe
// cancellation, non-terminal resources fail, and the event stream is
// flushed before the terminal state is visible.
func (s *Session) Abort(cause error) {
	s.abort(cause)
}

func (s *Session) abort(cause error) {
	s.mu.Lock()
	if s.state.Terminal() || s.aborting {
		s.mu.Unlock()
		return
	}
	s.aborting = true
	s.mu.Unlock()

	s.log.Error("session aborted", "cause", cause)
	s.cancel()
	s.sched.Cancel(cause)

	s.publish(events.Cancel(cause.Error()))
	s.publish(events.SessionStatus(string(StateAborted), cause.Error()))
	s.mux.Close()

	drainCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = s.mux.Drain(drainCtx)
	s.persistWG.Wait()

	s.mu.Lock()
	s.state = StateAborted
	s.mu.Unlock()
	s.saveSession()
}

// Close releases the session's providers. Safe after Drain or Abort.
func (s *Session) Close() error {
	s.cancel()
	if s.registry != nil {
		return s.registry.Close()
	}
	return nil
}

// callCtx ties a per-call context to the session lifetime so that
// Abort interrupts blocked registrations. The returned func releases
// the watcher; callers defer it.
func (s *Session) callCtx(ctx context.Context) (context.Context, func()) {
	merged, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-s.ctx.Done():
			cancel()
		case <-merged.Done():
		}
	}()
	return merged, cancel
}

func (s *Session) setState(st State, reason string) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	s.publish(events.SessionStatus(string(st), reason))
}

func (s *Session) publish(e events.Event) {
	_ = s.mux.Publish(e)
}

func (s *Session) checkpointResource(rec scheduler.Record) {
	if s.ckpt == nil {
		return
	}
	if err := s.ckpt.SaveResource(s.token, rec); err != nil {
		s.log.Error("checkpoint resource", "urn", rec.URN, "error", err)
	}
}

func (s *Session) saveSession() {
	if s.ckpt == nil {
		return
	}
	if err := s.ckpt.SaveSession(s.token, s.stack, s.project, string(s.State())); err != nil {
		s.log.Error("checkpoint session", "error", err)
	}
}

// PersistEvents copies every event to the checkpoint store in the
// background. Call once after Start; Drain and Abort wait for the
// copy to finish.
func (s *Session) PersistEvents() {
	if s.ckpt == nil {
		return
	}
	sub := s.mux.Subscribe()
	s.persistWG.Add(1)
	go func() {
		defer s.persistWG.Done()
		for e := range sub.Events() {
			if err := s.ckpt.SaveEvent(s.token, e); err != nil {
				s.log.Error("checkpoint event", "seq", e.Seq, "error", err)
			}
		}
	}()
}
