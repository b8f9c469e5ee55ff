package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/capstan-io/capstan/internal/convert"
	"github.com/capstan-io/capstan/internal/events"
	"github.com/capstan-io/capstan/internal/monitor"
	"github.com/capstan-io/capstan/internal/plugin"
	"github.com/capstan-io/capstan/internal/provider"
	"github.com/capstan-io/capstan/internal/session"
	"github.com/capstan-io/capstan/internal/store"
	"github.com/capstan-io/capstan/internal/telemetry"
	"github.com/capstan-io/capstan/internal/urn"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Stack    string
	Database string

	// Tokens allows overriding the session token generator (for testing).
	// If nil, defaults to UUIDGenerator.
	Tokens session.TokenGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <program-dir>",
		Short: "Run a deployment program",
		Long: `Run a deployment program through a coordinator session.

The program directory must contain Capstan.yaml (the manifest) and
program.yaml (the resources to register, in order). Providers are
served by the built-in local provider; events stream to stdout as
they are published.

Example:
  capstan run --stack dev ./examples/webapp
  capstan run --stack prod --db ./capstan.db ./examples/webapp --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProgram(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Stack, "stack", "dev", "stack name for resource identity")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite checkpoint database (optional)")

	return cmd
}

func runProgram(opts *RunOptions, programDir string, cmd *cobra.Command) error {
	logger := telemetry.NewLogger(cmd.ErrOrStderr(), opts.Verbose, opts.Format == "json")
	slog.SetDefault(logger)

	manifest, err := plugin.LoadManifest(programDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load manifest", err)
	}
	prog, err := LoadProgram(programDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load program", err)
	}

	specs, err := plugin.RequiredPlugins(manifest)
	if err != nil {
		return WrapExitError(ExitFailure, "plugin negotiation failed", err)
	}
	logger.Info("plugins negotiated", "count", len(specs))

	registry := provider.NewRegistry()
	for _, spec := range specs {
		if spec.Kind != plugin.KindResource {
			continue
		}
		if err := registry.Register(provider.NewLocal(spec.Name), 0); err != nil {
			return WrapExitError(ExitCommandError, "failed to register provider", err)
		}
	}
	// Resource types the program uses beyond the manifest still need a
	// provider; missing ones would otherwise fail at scheduling time.
	for _, pkg := range providerPackages(prog) {
		if !registry.Has(pkg) {
			return NewExitError(ExitFailure,
				fmt.Sprintf("program uses provider %q, which the manifest does not require", pkg))
		}
	}

	logger.Debug("providers registered", "providers", registry.Names())

	// Collectors live on a per-run registry so repeated in-process runs
	// never collide on registration.
	metrics := telemetry.NewMetrics(prometheus.NewRegistry())

	cfg := session.Config{
		Stack:    opts.Stack,
		Project:  manifest.Name,
		Manifest: manifest,
		Registry: registry,
		Tokens:   opts.Tokens,
		Metrics:  metrics,
		Logger:   logger,
	}
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer st.Close()
		cfg.Checkpoint = st
	}

	sess, err := session.New(cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create session", err)
	}
	defer sess.Close()
	logger.Info("session created", "token", sess.Token())

	// Stream events to stdout as they are published.
	sub := sess.Events().Subscribe()
	printDone := make(chan struct{})
	go func() {
		defer close(printDone)
		for e := range sub.Events() {
			fmt.Fprint(cmd.OutOrStdout(), events.RenderText([]events.Event{e}))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		if sess.State() == session.StateRunning {
			sess.Abort(ctx.Err())
		}
	}()

	svc := monitor.NewService(sess, convert.Identity{}, logger)
	if cfg.Checkpoint != nil {
		sess.PersistEvents()
	}

	result := svc.Run(ctx, monitor.RunRequest{
		Program: programFunc(prog),
	})
	<-printDone

	if result.Err != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("deployment failed (%s)", result.Status), result.Err)
	}
	logger.Info("deployment complete", "session", sess.Token())
	return nil
}

// programFunc adapts a declarative program file to the monitor's
// program entry point.
func programFunc(prog *ProgramFile) monitor.Program {
	return func(ctx context.Context, m *monitor.Service) error {
		urns := make(map[string]urn.URN, len(prog.Resources))
		for _, res := range prog.Resources {
			inputs, err := buildInputs(res.Inputs, urns)
			if err != nil {
				return fmt.Errorf("resource %q: %w", res.Name, err)
			}
			deps := make([]urn.URN, 0, len(res.DependsOn))
			for _, dep := range res.DependsOn {
				deps = append(deps, urns[dep])
			}

			resp, err := m.RegisterResource(ctx, monitor.RegisterRequest{
				Type:      res.Type,
				Name:      res.Name,
				Inputs:    inputs,
				DependsOn: deps,
			})
			if err != nil {
				return fmt.Errorf("resource %q: %w", res.Name, err)
			}
			urns[res.Name] = resp.URN
		}
		return nil
	}
}
