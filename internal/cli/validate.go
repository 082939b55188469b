package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/sectional/internal/profile"
)

// ValidationResult holds validation results for JSON output.
type ValidationResult struct {
	Valid   bool   `json:"valid"`
	Profile string `json:"profile,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <profile.yaml>",
		Short: "Validate a fetch profile",
		Long: `Validate a YAML fetch profile against the embedded schema.

Checks schema conformance (required fields, sort key shape) plus the
request rules: at least one sort descriptor, section key path matching
the primary sort key, and a parseable locale.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	p, err := profile.Load(path)
	if err != nil {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "load profile", err)
	}

	formatter.VerboseLog("Loaded profile %q from %s", p.Name, path)

	if err := profile.Validate(p); err != nil {
		if formatter.Format == "json" {
			_ = formatter.Success(ValidationResult{Valid: false, Profile: p.Name, Error: err.Error()})
		} else {
			fmt.Fprintln(formatter.Writer, "✗ Validation failed")
			fmt.Fprintf(formatter.Writer, "  %s\n", err.Error())
		}
		return WrapExitError(ExitFailure, "profile validation failed", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Profile: p.Name})
	}
	fmt.Fprintf(formatter.Writer, "✓ Profile %q valid\n", p.Name)
	return nil
}
