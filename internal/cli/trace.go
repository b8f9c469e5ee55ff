package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/capstan-io/capstan/internal/events"
	"github.com/capstan-io/capstan/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
}

// TraceResult holds the complete trace output for JSON format.
type TraceResult struct {
	Session  string         `json:"session"`
	Stack    string         `json:"stack"`
	Project  string         `json:"project"`
	State    string         `json:"state"`
	Timeline []events.Event `json:"timeline"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [session-token]",
		Short: "Render a persisted session event log",
		Long: `Render the durable event log of a session, in publish order.

Without a token the most recently updated session is traced. The
rendering is deterministic: logical sequence numbers, no timestamps.

Example:
  capstan trace --db ./capstan.db
  capstan trace --db ./capstan.db 0192cdd1-73f1-7000-8000-0c90f5b9e001 --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			token := ""
			if len(args) == 1 {
				token = args[0]
			}
			return runTrace(opts, token, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite checkpoint database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runTrace(opts *TraceOptions, token string, cmd *cobra.Command) error {
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var rec store.SessionRecord
	if token == "" {
		sessions, err := st.ListSessions()
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list sessions", err)
		}
		if len(sessions) == 0 {
			return NewExitError(ExitCommandError, "no sessions in database")
		}
		rec = sessions[0]
	} else {
		rec, err = st.ReadSession(token)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read session", err)
		}
	}

	evts, err := st.ReadEvents(rec.Token)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return formatter.Success(TraceResult{
			Session:  rec.Token,
			Stack:    rec.Stack,
			Project:  rec.Project,
			State:    rec.State,
			Timeline: evts,
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "session %s (%s/%s) %s\n", rec.Token, rec.Stack, rec.Project, rec.State)
	fmt.Fprint(cmd.OutOrStdout(), events.RenderText(evts))
	return nil
}
