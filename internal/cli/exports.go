package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// ExportsOptions holds flags for the exports command.
type ExportsOptions struct {
	*RootOptions
	Prefix string
}

// NewExportsCommand creates the exports command.
func NewExportsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exports <target>",
		Short: "List result documents in an export target",
		Long: `List the documents "run --export" wrote to a target such as "fs:./out"
or "s3:bucket". Any listed run can be opened with "show --export".`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExports(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Prefix, "prefix", "runs/", "only list keys under this prefix")

	return cmd
}

func runExports(opts *ExportsOptions, target string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	blobs, err := openExportTarget(cmd, target)
	if err != nil {
		return err
	}
	infos, err := blobs.List(cmd.Context(), opts.Prefix)
	if err != nil {
		return formatter.Fail(ExitFailure, "failed to list exports", withCode(ErrCodeStoreFailed, err))
	}
	formatter.VerboseLog("listed %d blob(s) from %s", len(infos), blobs.Driver())

	if formatter.Format == "json" {
		return formatter.Success(infos)
	}

	w := formatter.Writer
	if len(infos) == 0 {
		fmt.Fprintln(w, "No exports.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tSIZE\tMODIFIED")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%d B\t%s\n", info.Key, info.Size, info.LastModified.UTC().Format(time.RFC3339))
	}
	return tw.Flush()
}
