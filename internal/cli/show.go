package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/gelsim/internal/export"
	"github.com/roach88/gelsim/internal/gel"
	"github.com/roach88/gelsim/internal/store"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Database string
	Export   string
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the bands of an archived or exported run",
		Long: `Show one run, read either from the SQLite archive (--db) or from the
document written by "run --export" (--export). Exported documents also
carry the rendered intensity field, which --format json prints.

Examples:
  gelsim show 0192f8e4-... --db ./runs.db
  gelsim show 0192f8e4-... --export fs:./out --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Export != "" {
				return runShowExport(opts, args[0], cmd)
			}
			return runShow(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVar(&opts.Export, "export", "", `export target the run was written to, e.g. "fs:./out"`)
	cmd.MarkFlagsOneRequired("db", "export")
	cmd.MarkFlagsMutuallyExclusive("db", "export")

	return cmd
}

func runShow(opts *ShowOptions, runID string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openExisting(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := st.ReadRun(cmd.Context(), runID)
	if errors.Is(err, sql.ErrNoRows) {
		return formatter.Fail(ExitCommandError, "run not found", withCode(ErrCodeNotFound, fmt.Errorf("no run with id %q", runID)))
	}
	if err != nil {
		return formatter.Fail(ExitFailure, "failed to read run", withCode(ErrCodeStoreFailed, err))
	}

	if formatter.Format == "json" {
		return formatter.Success(run)
	}
	writeArchivedRun(formatter.Writer, run)
	return nil
}

func runShowExport(opts *ShowOptions, runID string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	blobs, err := openExportTarget(cmd, opts.Export)
	if err != nil {
		return err
	}
	doc, err := export.ReadResult(cmd.Context(), blobs, runID)
	if errors.Is(err, export.ErrNotFound) {
		return formatter.Fail(ExitCommandError, "run not found", withCode(ErrCodeNotFound, err))
	}
	if err != nil {
		return formatter.Fail(ExitFailure, "failed to read export", withCode(ErrCodeStoreFailed, err))
	}

	if formatter.Format == "json" {
		return formatter.Success(doc)
	}
	writeExportedRun(formatter.Writer, doc)
	return nil
}

// openExportTarget parses and opens a --export target.
func openExportTarget(cmd *cobra.Command, target string) (export.Store, error) {
	cfg, err := export.ParseTarget(target)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid export target", err)
	}
	blobs, err := export.Open(cmd.Context(), cfg)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open export target", err)
	}
	return blobs, nil
}

func writeArchivedRun(w io.Writer, run store.Run) {
	fmt.Fprintf(w, "Run %s (#%d)\n", run.ID, run.Seq)
	fmt.Fprintf(w, "  source %s\n", run.Source)
	fmt.Fprintf(w, "  agarose %.2f %%, field %.2f V/cm, length %.2f cm\n",
		run.Conditions.AgarosePct, run.Conditions.FieldVcm, run.Conditions.LengthCm)
	fmt.Fprintf(w, "  stopped by %s after %s, exposure %.2f\n\n",
		run.StopReason, formatElapsed(run.ElapsedSeconds), run.Exposure)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LANE\tBAND\tBP\tTOPOLOGY\tDISTANCE\tMASS\t")
	for _, b := range run.Bands {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%.2f cm\t%.2f ng\t%s\n",
			b.LaneName, b.Name, b.BP, b.Topology, b.DistanceCm, b.MassNg, saturatedMark(b.Saturated))
	}
	tw.Flush()
}

func writeExportedRun(w io.Writer, doc gel.Document) {
	fmt.Fprintf(w, "Run %s (exported)\n", doc.RunID)
	fmt.Fprintf(w, "  agarose %s, field %s, length %s\n", doc.Agarose, doc.Field, doc.Length)
	fmt.Fprintf(w, "  stopped by %s after %s, exposure %.2f\n",
		doc.StopReason, formatElapsed(doc.ElapsedSeconds), doc.Exposure)
	fmt.Fprintf(w, "  intensity field: %d lane(s) x %d position(s)\n\n", len(doc.Lanes), len(doc.PositionsCm))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LANE\tBAND\tBP\tTOPOLOGY\tDISTANCE\tMASS\t")
	for _, lane := range doc.Lanes {
		for _, b := range lane.Bands {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%.2f cm\t%.2f ng\t%s\n",
				lane.Name, b.Name, b.BP, b.Topology, b.DistanceCm, b.MassNg, saturatedMark(b.Saturated))
		}
	}
	tw.Flush()
}

func saturatedMark(saturated bool) string {
	if saturated {
		return "saturated"
	}
	return ""
}
