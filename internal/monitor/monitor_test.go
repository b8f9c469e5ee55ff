package monitor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capstan-io/capstan/internal/convert"
	"github.com/capstan-io/capstan/internal/events"
	"github.com/capstan-io/capstan/internal/plugin"
	"github.com/capstan-io/capstan/internal/provider"
	"github.com/capstan-io/capstan/internal/scheduler"
	"github.com/capstan-io/capstan/internal/session"
	"github.com/capstan-io/capstan/internal/testutil"
	"github.com/capstan-io/capstan/internal/urn"
	"github.com/capstan-io/capstan/internal/value"
)

func newTestService(t *testing.T) (*Service, *testutil.EchoProvider) {
	t.Helper()
	fake := &testutil.EchoProvider{ProviderName: "aws"}
	reg := provider.NewRegistry()
	require.NoError(t, reg.Register(fake, 0))

	manifest, err := plugin.ParseManifest("Capstan.yaml", []byte(testutil.ManifestYAML))
	require.NoError(t, err)

	s, err := session.New(session.Config{
		Stack:    "prod",
		Project:  "webapp",
		Manifest: manifest,
		Registry: reg,
		Tokens:   session.FixedGenerator{Token: "t-1"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return NewService(s, convert.Identity{}, nil), fake
}

func TestGetRequiredPlugins(t *testing.T) {
	svc, _ := newTestService(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, plugin.ManifestFilename), []byte(testutil.ManifestYAML), 0o644))

	specs, err := svc.GetRequiredPlugins(ProgramInfo{Directory: dir})
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "nodejs", specs[0].Name)
	assert.Equal(t, "aws", specs[1].Name)
}

func TestGetRequiredPlugins_MissingManifest(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.GetRequiredPlugins(ProgramInfo{Directory: t.TempDir()})
	require.Error(t, err)
	assert.Equal(t, StatusValidationFailure, StatusOf(err))
}

func TestRun_Success(t *testing.T) {
	svc, _ := newTestService(t)

	result := svc.Run(context.Background(), RunRequest{
		Program: func(ctx context.Context, m *Service) error {
			resp, err := m.RegisterResource(ctx, RegisterRequest{
				Type:   "aws:s3:Bucket",
				Name:   "assets",
				Inputs: value.Object{"acl": value.String("private")},
			})
			if err != nil {
				return err
			}
			if resp.Status != StatusOK {
				return errors.New("unexpected status")
			}
			return nil
		},
	})

	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, StatusOK, result.Status)
	assert.Equal(t, session.StateCompleted, svc.Session().State())
}

func TestRun_ProgramErrorAborts(t *testing.T) {
	svc, _ := newTestService(t)

	result := svc.Run(context.Background(), RunRequest{
		Program: func(ctx context.Context, m *Service) error {
			return errors.New("program crashed")
		},
	})

	assert.Equal(t, 1, result.ExitCode)
	require.Error(t, result.Err)
	assert.Equal(t, session.StateAborted, svc.Session().State())
}

func TestRegisterResource_DependencyChain(t *testing.T) {
	svc, fake := newTestService(t)
	fake.CreateFn = func(u urn.URN, typ string, inputs value.Object) (value.Object, error) {
		if typ == "aws:rds:Instance" {
			return value.Object{"endpoint": value.String("db:5432")}, nil
		}
		return inputs, nil
	}

	result := svc.Run(context.Background(), RunRequest{
		Program: func(ctx context.Context, m *Service) error {
			db, err := m.RegisterResource(ctx, RegisterRequest{
				Type: "aws:rds:Instance", Name: "db", Inputs: value.Object{},
			})
			if err != nil {
				return err
			}
			app, err := m.RegisterResource(ctx, RegisterRequest{
				Type: "aws:ecs:Service", Name: "app",
				Inputs: value.Object{
					"db": value.ResourceRef{URN: db.URN, Path: "endpoint"},
				},
			})
			if err != nil {
				return err
			}
			if app.Outputs["db"] != value.String("db:5432") {
				return errors.New("pending reference not substituted")
			}
			return nil
		},
	})
	assert.Equal(t, StatusOK, result.Status)
}

func TestRegisterResource_ProviderFailureStatus(t *testing.T) {
	svc, fake := newTestService(t)
	fake.CreateFn = func(urn.URN, string, value.Object) (value.Object, error) {
		return nil, errors.New("boom")
	}
	require.NoError(t, svc.Session().Start())

	resp, err := svc.RegisterResource(context.Background(), RegisterRequest{
		Type: "aws:s3:Bucket", Name: "assets", Inputs: value.Object{},
	})
	require.Error(t, err)
	assert.Equal(t, StatusProviderFailure, resp.Status)
	assert.NotEmpty(t, resp.Reason)
}

func TestInvoke(t *testing.T) {
	svc, _ := newTestService(t)
	require.NoError(t, svc.Session().Start())

	resp, err := svc.Invoke(context.Background(), "aws:ec2:getAmi", value.Object{
		"owner": value.String("amazon"),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusOK, resp.Status)
	assert.Equal(t, value.String("amazon"), resp.Outputs["owner"])
}

func TestStreamEvents(t *testing.T) {
	svc, _ := newTestService(t)
	sub := svc.Session().Events().Subscribe()
	require.NoError(t, svc.Session().Start())

	stream := svc.StreamEvents()
	require.NoError(t, stream.Send(events.Diagnostic(events.SeverityInfo, "compiling program")))
	require.NoError(t, stream.Send(events.Diagnostic(events.SeverityWarning, "deprecated field")))
	stream.CloseSend()
	assert.Error(t, stream.Send(events.Diagnostic(events.SeverityInfo, "late")))

	require.NoError(t, svc.Session().Drain(context.Background()))

	evts := testutil.CollectEvents(sub)
	var diags []string
	for _, e := range evts {
		if e.Kind == events.KindDiagnostic {
			diags = append(diags, e.Message)
		}
	}
	assert.Equal(t, []string{"compiling program", "deprecated field"}, diags)
}

func TestPublishEvent_UnaryAdapter(t *testing.T) {
	svc, _ := newTestService(t)
	sub := svc.Session().Events().Subscribe()
	require.NoError(t, svc.Session().Start())

	require.NoError(t, svc.PublishEvent(events.Diagnostic(events.SeverityInfo, "one"), false))
	require.NoError(t, svc.PublishEvent(events.Event{}, true))

	require.NoError(t, svc.Session().Drain(context.Background()))
	evts := testutil.CollectEvents(sub)

	count := 0
	for _, e := range evts {
		if e.Kind == events.KindDiagnostic {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestConvert(t *testing.T) {
	svc, _ := newTestService(t)

	src := convert.SourcePayload{Format: "terraform", Data: []byte(`resource {}`)}
	ir, err := svc.ConvertProgram(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, src.Data, ir.Data)

	st, err := svc.ConvertState(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, "terraform", st.Format)
}

func TestConvert_NoConverter(t *testing.T) {
	fake := &testutil.EchoProvider{ProviderName: "aws"}
	reg := provider.NewRegistry()
	require.NoError(t, reg.Register(fake, 0))
	s, err := session.New(session.Config{
		Stack: "prod", Project: "webapp", Registry: reg,
		Tokens: session.FixedGenerator{Token: "t"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	svc := NewService(s, nil, nil)

	_, err = svc.ConvertProgram(context.Background(), convert.SourcePayload{})
	require.ErrorIs(t, err, convert.ErrNoConverter)
}

func TestStatusOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Status
	}{
		{"nil", nil, StatusOK},
		{"cancel", &scheduler.CancelError{Cause: context.Canceled}, StatusCancelled},
		{"dependency", &scheduler.DependencyError{}, StatusDependencyFailure},
		{"provider", &provider.Error{Provider: "aws"}, StatusProviderFailure},
		{"invoke", &scheduler.InvokeError{Token: "t"}, StatusProviderFailure},
		{"duplicate", &urn.DuplicateIdentityError{}, StatusValidationFailure},
		{"manifest", &plugin.ManifestError{}, StatusValidationFailure},
		{"state", &session.StateError{}, StatusValidationFailure},
		{"unknown", errors.New("mystery"), StatusInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StatusOf(tc.err))
		})
	}
}
