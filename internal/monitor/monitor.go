// Package monitor is the coordinator's boundary contract: the seven
// logical operations a language runtime calls during a deployment.
// The service is in-process; a wire layer would wrap it one-to-one.
package monitor

import (
	"context"
	"log/slog"

	"github.com/capstan-io/capstan/internal/convert"
	"github.com/capstan-io/capstan/internal/events"
	"github.com/capstan-io/capstan/internal/plugin"
	"github.com/capstan-io/capstan/internal/session"
	"github.com/capstan-io/capstan/internal/urn"
	"github.com/capstan-io/capstan/internal/value"
)

// Service exposes the coordinator to a language runtime.
type Service struct {
	session   *session.Session
	converter convert.Converter
	log       *slog.Logger
}

// NewService wraps a session. converter may be nil when no ecosystem
// conversion is available.
func NewService(s *session.Session, converter convert.Converter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{session: s, converter: converter, log: logger}
}

// Session returns the underlying session.
func (m *Service) Session() *session.Session { return m.session }

// ProgramInfo locates a deployment program on disk.
type ProgramInfo struct {
	Directory string
}

// GetRequiredPlugins loads the program manifest and returns the plugin
// set the program needs, language runtime included.
func (m *Service) GetRequiredPlugins(info ProgramInfo) ([]plugin.Spec, error) {
	manifest, err := plugin.LoadManifest(info.Directory)
	if err != nil {
		return nil, err
	}
	return plugin.RequiredPlugins(manifest)
}

// Program is the language runtime's execution entry point. It issues
// RegisterResource and Invoke calls against the service.
type Program func(ctx context.Context, m *Service) error

// RunRequest asks the coordinator to execute a program.
type RunRequest struct {
	Program Program
}

// RunResult is the outcome of a program run.
type RunResult struct {
	ExitCode int
	Status   Status
	Err      error
}

// Run starts the session, executes the program, and drains. A program
// error aborts the session; resources already completed stay
// completed, non-terminal ones fail.
func (m *Service) Run(ctx context.Context, req RunRequest) RunResult {
	if m.session.State() == session.StateStarting {
		if err := m.session.Start(); err != nil {
			return RunResult{ExitCode: 1, Status: StatusOf(err), Err: err}
		}
	}

	if err := req.Program(ctx, m); err != nil {
		m.session.Abort(err)
		return RunResult{ExitCode: 1, Status: StatusOf(err), Err: err}
	}

	if err := m.session.Drain(ctx); err != nil {
		return RunResult{ExitCode: 1, Status: StatusOf(err), Err: err}
	}
	return RunResult{Status: StatusOK}
}

// RegisterRequest carries one resource registration across the
// boundary.
type RegisterRequest struct {
	Parent    urn.URN
	Type      string
	Name      string
	Inputs    value.Object
	DependsOn []urn.URN
}

// RegisterResponse reports the registration outcome.
type RegisterResponse struct {
	URN     urn.URN
	Outputs value.Object
	Status  Status
	Reason  string
}

// RegisterResource registers one resource and blocks until it reaches
// a terminal state.
func (m *Service) RegisterResource(ctx context.Context, req RegisterRequest) (RegisterResponse, error) {
	res, err := m.session.RegisterResource(ctx, req.Parent, req.Type, req.Name, req.Inputs, req.DependsOn)
	if err != nil {
		return RegisterResponse{Status: StatusOf(err), Reason: err.Error()}, err
	}
	return RegisterResponse{
		URN:     res.URN,
		Outputs: res.Outputs,
		Status:  StatusOK,
	}, nil
}

// InvokeResponse reports a provider function call outcome.
type InvokeResponse struct {
	Outputs value.Object
	Status  Status
	Reason  string
}

// Invoke executes a provider function call.
func (m *Service) Invoke(ctx context.Context, token string, args value.Object) (InvokeResponse, error) {
	out, err := m.session.Invoke(ctx, token, args)
	if err != nil {
		return InvokeResponse{Status: StatusOf(err), Reason: err.Error()}, err
	}
	return InvokeResponse{Outputs: out, Status: StatusOK}, nil
}

// ConvertProgram translates a foreign program source.
func (m *Service) ConvertProgram(ctx context.Context, src convert.SourcePayload) (convert.IntermediateRepresentation, error) {
	if m.converter == nil {
		return convert.IntermediateRepresentation{}, convert.ErrNoConverter
	}
	return m.converter.ConvertProgram(ctx, src)
}

// ConvertState translates a foreign state snapshot.
func (m *Service) ConvertState(ctx context.Context, src convert.SourcePayload) (convert.IntermediateRepresentation, error) {
	if m.converter == nil {
		return convert.IntermediateRepresentation{}, convert.ErrNoConverter
	}
	return m.converter.ConvertState(ctx, src)
}

// EventStream ingests caller-produced events. The streaming shape is
// canonical: Send per event, CloseSend as the completion marker.
type EventStream struct {
	svc    *Service
	closed bool
}

// StreamEvents opens an ingest stream into the session's multiplexer.
func (m *Service) StreamEvents() *EventStream {
	return &EventStream{svc: m}
}

// Send publishes one event into the session stream, subject to the
// multiplexer's backpressure.
func (s *EventStream) Send(e events.Event) error {
	if s.closed {
		return events.ErrStreamClosed
	}
	return s.svc.session.Events().Publish(e)
}

// CloseSend marks the caller's stream complete. The session stream
// itself stays open for other producers.
func (s *EventStream) CloseSend() {
	s.closed = true
}

// PublishEvent is the unary adapter over the same multiplexer: one
// event per call, done=true in place of a stream close. Kept for
// callers that cannot hold a stream open.
func (m *Service) PublishEvent(e events.Event, done bool) error {
	if done {
		return nil
	}
	return m.session.Events().Publish(e)
}
