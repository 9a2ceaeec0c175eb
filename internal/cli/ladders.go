package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/gelsim/internal/ladder"
)

// LadderInfo is the listing of one weight standard.
type LadderInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Sizes       []int  `json:"sizes"`
}

// NewLaddersCommand creates the ladders command.
func NewLaddersCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "ladders",
		Short:         "List the built-in weight standards",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLadders(rootOpts, cmd)
		},
	}
}

func runLadders(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	table, err := ladder.Default()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load ladder table", err)
	}

	infos := make([]LadderInfo, 0, table.Len())
	for _, name := range table.Names() {
		e, err := table.Lookup(name)
		if err != nil {
			return WrapExitError(ExitFailure, "ladder lookup", err)
		}
		infos = append(infos, LadderInfo{Name: e.Name, Description: e.Description, Sizes: e.Sizes})
	}

	if formatter.Format == "json" {
		return formatter.Success(infos)
	}

	tw := tabwriter.NewWriter(formatter.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tBANDS\tRANGE\tDESCRIPTION")
	for _, info := range infos {
		lo, hi := sizeRange(info.Sizes)
		fmt.Fprintf(tw, "%s\t%d\t%d-%d bp\t%s\n", info.Name, len(info.Sizes), lo, hi, info.Description)
		if opts.Verbose {
			sizes := make([]string, len(info.Sizes))
			for i, s := range info.Sizes {
				sizes[i] = fmt.Sprint(s)
			}
			fmt.Fprintf(tw, "\t\t\t%s\n", strings.Join(sizes, " "))
		}
	}
	return tw.Flush()
}

func sizeRange(sizes []int) (lo, hi int) {
	for i, s := range sizes {
		if i == 0 || s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}
	return lo, hi
}
