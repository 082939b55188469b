package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/sectional/internal/cache"
)

// DeleteResult is the JSON payload for a deletion.
type DeleteResult struct {
	Deleted []string `json:"deleted"`
	All     bool     `json:"all"`
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		dbPath string
		all    bool
	)

	cmd := &cobra.Command{
		Use:   "delete [cacheName]",
		Short: "Delete persisted layouts",
		Long: `Delete the persisted layout for one cache name, or every layout
with --all. Deletion is idempotent: removing a name that has no layout
succeeds quietly.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return NewExitError(ExitCommandError, "provide exactly one of --all or a cache name")
			}
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return runDelete(rootOpts, dbPath, name, all, cmd)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "path to the layout cache database (required)")
	cmd.Flags().BoolVar(&all, "all", false, "delete every persisted layout")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runDelete(opts *RootOptions, dbPath, name string, all bool, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if _, err := os.Stat(dbPath); err != nil {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("database not found: %s", dbPath), nil)
		return WrapExitError(ExitCommandError, "open database", err)
	}

	c, err := cache.Open(dbPath)
	if err != nil {
		_ = formatter.Error(ErrCodeCacheIO, err.Error(), nil)
		return WrapExitError(ExitCommandError, "open layout cache", err)
	}
	defer c.Close()

	ctx := cmd.Context()

	var deleted []string
	if all {
		deleted, err = c.Names(ctx)
		if err == nil {
			err = c.DeleteAll(ctx)
		}
	} else {
		deleted = []string{name}
		err = c.Delete(ctx, name)
	}
	if err != nil {
		var pv *cache.PreconditionViolation
		if errors.As(err, &pv) {
			_ = formatter.Error(ErrCodePrecondition, err.Error(), nil)
			return WrapExitError(ExitFailure, "deletion refused", err)
		}
		_ = formatter.Error(ErrCodeCacheIO, err.Error(), nil)
		return WrapExitError(ExitCommandError, "delete cache", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(DeleteResult{Deleted: deleted, All: all})
	}
	if all {
		fmt.Fprintf(formatter.Writer, "✓ Deleted %d cache(s)\n", len(deleted))
	} else {
		fmt.Fprintf(formatter.Writer, "✓ Deleted cache %q\n", name)
	}
	return nil
}
