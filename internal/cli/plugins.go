package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/capstan-io/capstan/internal/plugin"
)

// NewPluginsCommand creates the plugins command.
func NewPluginsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins <program-dir>",
		Short: "Print the plugin set a program requires",
		Long: `Resolve and print the plugin set for a program directory.

The set always contains the manifest's language runtime plus every
provider requirement, deduplicated. Conflicting version constraints
are an error, the same one that would abort a session at startup.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlugins(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runPlugins(opts *RootOptions, programDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	manifest, err := plugin.LoadManifest(programDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load manifest", err)
	}
	specs, err := plugin.RequiredPlugins(manifest)
	if err != nil {
		if ferr := formatter.Error("validation-failure", err.Error(), nil); ferr != nil {
			return ferr
		}
		return WrapExitError(ExitFailure, "plugin resolution failed", err)
	}

	if opts.Format == "json" {
		return formatter.Success(specs)
	}

	var b strings.Builder
	for _, spec := range specs {
		version := spec.Version
		if version == "" {
			version = "any"
		}
		fmt.Fprintf(&b, "%-10s %-20s %s\n", spec.Kind, spec.Name, version)
	}
	fmt.Fprint(cmd.OutOrStdout(), b.String())
	return nil
}
