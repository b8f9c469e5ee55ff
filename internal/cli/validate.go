package cli

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/capstan-io/capstan/internal/plugin"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <program-dir>",
		Short: "Validate a program directory without running it",
		Long: `Validate the manifest and program file of a program directory.

Checks Capstan.yaml against the embedded schema and, when present,
program.yaml for structural errors (missing fields, duplicate names,
dependencies on undeclared resources). Nothing is deployed.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, programDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	var problems []string

	manifest, err := plugin.LoadManifest(programDir)
	if err != nil {
		problems = append(problems, err.Error())
	} else if _, err := plugin.RequiredPlugins(manifest); err != nil {
		problems = append(problems, err.Error())
	}

	if _, statErr := os.Stat(filepath.Join(programDir, ProgramFilename)); statErr == nil {
		if _, err := LoadProgram(programDir); err != nil {
			problems = append(problems, err.Error())
		}
	} else if !errors.Is(statErr, os.ErrNotExist) {
		problems = append(problems, statErr.Error())
	}

	if len(problems) > 0 {
		if err := formatter.Error("validation-failure", "program is invalid", problems); err != nil {
			return err
		}
		return NewExitError(ExitFailure, "validation failed")
	}
	return formatter.Success(ValidationResult{Valid: true})
}
