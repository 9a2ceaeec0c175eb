package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/gelsim/internal/ladder"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool              `json:"valid"`
	Lanes     int               `json:"lanes,omitempty"`
	Fragments int               `json:"fragments,omitempty"`
	Errors    []ValidationError `json:"errors,omitempty"`
}

// ValidationError is one problem found in a gel definition.
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <gel.cue|gel-dir>",
		Short: "Validate a gel definition without running it",
		Long: `Compile a gel definition and check its lanes, quantities and
conditions without migrating anything. Faster than run for editing feedback.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	table, err := ladder.Default()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load ladder table", err)
	}

	def, err := LoadGel(path, table)
	if err == nil {
		err = def.Config.Validate()
	}
	if err != nil {
		verr := ValidationError{Code: ErrorCode(err), Message: err.Error()}
		var le *LoadError
		if errors.As(err, &le) {
			verr.Line = lineOf(le.Pos)
		}
		return outputValidationErrors(formatter, []ValidationError{verr})
	}

	formatter.VerboseLog("Compiled %d lane(s) from %s", len(def.Config.Lanes), path)
	result := ValidationResult{
		Valid:     true,
		Lanes:     len(def.Config.Lanes),
		Fragments: def.Config.FragmentCount(),
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "Validation passed: %d lane(s), %d fragment(s)\n", result.Lanes, result.Fragments)
	return nil
}

// outputValidationErrors reports errors and returns an ExitCommandError.
func outputValidationErrors(formatter *OutputFormatter, errs []ValidationError) error {
	if formatter.Format == "json" {
		_ = formatter.Error(errs[0].Code, fmt.Sprintf("validation failed with %d error(s)", len(errs)),
			ValidationResult{Valid: false, Errors: errs})
	} else {
		fmt.Fprintf(formatter.Writer, "Validation failed with %d error(s):\n", len(errs))
		for _, e := range errs {
			if e.Line > 0 {
				fmt.Fprintf(formatter.Writer, "  [%s] line %d: %s\n", e.Code, e.Line, e.Message)
			} else {
				fmt.Fprintf(formatter.Writer, "  [%s] %s\n", e.Code, e.Message)
			}
		}
	}
	return NewExitError(ExitCommandError, "validation failed")
}
