package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/gelsim/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database    string
	Limit       int
	Fingerprint string
}

// RunSummary is one row of the history listing.
type RunSummary struct {
	Seq            int64   `json:"seq"`
	ID             string  `json:"id"`
	Source         string  `json:"source"`
	Fingerprint    string  `json:"fingerprint"`
	StopReason     string  `json:"stop_reason"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	Lanes          int     `json:"lanes"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived runs",
		Long: `List runs archived with "gelsim run --db", newest first.

Example:
  gelsim history --db ./runs.db
  gelsim history --db ./runs.db --fingerprint 3fa9... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of runs to list")
	cmd.Flags().StringVar(&opts.Fingerprint, "fingerprint", "", "only runs with this configuration fingerprint")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

// openExisting opens a database that must already exist.
func openExisting(path string) (*store.Store, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", path))
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openExisting(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	var runs []store.Run
	if opts.Fingerprint != "" {
		runs, err = st.RunsByFingerprint(cmd.Context(), opts.Fingerprint)
	} else {
		runs, err = st.ListRuns(cmd.Context(), opts.Limit)
	}
	if err != nil {
		return formatter.Fail(ExitFailure, "failed to list runs", withCode(ErrCodeStoreFailed, err))
	}

	summaries := make([]RunSummary, len(runs))
	for i, r := range runs {
		summaries[i] = RunSummary{
			Seq:            r.Seq,
			ID:             r.ID,
			Source:         r.Source,
			Fingerprint:    r.Fingerprint,
			StopReason:     r.StopReason,
			ElapsedSeconds: r.ElapsedSeconds,
			Lanes:          len(r.Conditions.Lanes),
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(summaries)
	}
	if len(summaries) == 0 {
		fmt.Fprintln(formatter.Writer, "No runs archived.")
		return nil
	}

	tw := tabwriter.NewWriter(formatter.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tRUN\tSOURCE\tSTOP\tELAPSED\tLANES")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\n",
			s.Seq, s.ID, s.Source, s.StopReason, formatElapsed(s.ElapsedSeconds), s.Lanes)
	}
	return tw.Flush()
}
