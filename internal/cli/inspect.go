package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/sectional/internal/cache"
)

// InspectResult is the JSON payload for a dumped cache entry.
type InspectResult struct {
	CacheName  string           `json:"cache_name"`
	Signature  string           `json:"signature"`
	UpdatedSeq int64            `json:"updated_seq"`
	Sections   []InspectSection `json:"sections"`
}

// InspectSection is one section of a dumped layout.
type InspectSection struct {
	Name string   `json:"name"`
	Rows []string `json:"rows"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "inspect <cacheName>",
		Short: "Print a persisted layout",
		Long: `Print the persisted layout for a cache name: its configuration
signature, write sequence, and the ordered sections and row ids.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(rootOpts, dbPath, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "path to the layout cache database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runInspect(opts *RootOptions, dbPath, name string, cmd *cobra.Command) error {
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

	info, found, err := c.Inspect(cmd.Context(), name)
	if err != nil {
		_ = formatter.Error(ErrCodeCacheIO, err.Error(), nil)
		return WrapExitError(ExitCommandError, "inspect cache", err)
	}
	if !found {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("no persisted layout for cache %q", name), nil)
		return NewExitError(ExitCommandError, "cache name not found")
	}

	formatter.VerboseLog("Loaded %d section(s), %d row(s)", len(info.Layout.Sections), info.Layout.RowCount())

	if formatter.Format == "json" {
		return formatter.Success(inspectResult(info))
	}
	return printInspectText(formatter, info)
}

func inspectResult(info cache.Info) InspectResult {
	res := InspectResult{
		CacheName:  info.CacheName,
		Signature:  info.Signature,
		UpdatedSeq: info.UpdatedSeq,
		Sections:   []InspectSection{},
	}
	for _, sec := range info.Layout.Sections {
		out := InspectSection{Name: string(sec.Name), Rows: []string{}}
		for _, r := range sec.Rows {
			out.Rows = append(out.Rows, string(r.ID))
		}
		res.Sections = append(res.Sections, out)
	}
	return res
}

func printInspectText(f *OutputFormatter, info cache.Info) error {
	fmt.Fprintf(f.Writer, "cache %s (seq %d, signature %s)\n",
		info.CacheName, info.UpdatedSeq, info.Signature)
	if len(info.Layout.Sections) == 0 {
		fmt.Fprintln(f.Writer, "  (empty layout)")
		return nil
	}
	for s, sec := range info.Layout.Sections {
		name := string(sec.Name)
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Fprintf(f.Writer, "  [%d] %s (%d rows)\n", s, name, len(sec.Rows))
		for r, id := range sec.Rows {
			fmt.Fprintf(f.Writer, "      (%d,%d) %s\n", s, r, id.ID)
		}
	}
	return nil
}
