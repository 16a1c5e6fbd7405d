package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/apiprobe/internal/report"
	"github.com/roach88/apiprobe/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Limit    int
	Suite    string
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past runs recorded with --db",
		Long: `List recent runs from the SQLite history, newest first.

With --suite, list the past outcomes of one suite instead.

Example:
  apiprobe history --db ./apiprobe.db
  apiprobe history --db ./apiprobe.db --suite auth --limit 5`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite run history (required)")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum rows (0 for all)")
	cmd.Flags().StringVar(&opts.Suite, "suite", "", "show the history of one suite")

	return cmd
}

func runHistory(cmd *cobra.Command, opts *HistoryOptions) error {
	formatter := opts.formatter(cmd)
	if opts.Database == "" {
		return commandError(formatter, ErrCodeStore, "--db is required", nil)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return commandError(formatter, ErrCodeStore, "failed to open database", err)
	}
	defer st.Close()

	printer := report.NewPrinter(cmd.OutOrStdout(), opts.colored())

	if opts.Suite != "" {
		entries, err := st.SuiteHistory(cmd.Context(), opts.Suite, opts.Limit)
		if err != nil {
			return commandError(formatter, ErrCodeStore, "failed to read suite history", err)
		}
		if opts.Format == "json" {
			return formatter.Success(entries)
		}
		return printer.SuiteHistory(opts.Suite, entries)
	}

	runs, err := st.ListRuns(cmd.Context(), opts.Limit)
	if err != nil {
		return commandError(formatter, ErrCodeStore, "failed to read run history", err)
	}
	if opts.Format == "json" {
		return formatter.Success(runs)
	}
	return printer.History(runs)
}
