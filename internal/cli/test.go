package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/gelsim/internal/canon"
	"github.com/roach88/gelsim/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update    bool
	Filter    string // glob over scenario names
	GoldenDir string // defaults to golden/ beside the scenarios dir
}

// ScenarioResult is one scenario's outcome.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult is the report of a test invocation.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run scenario checks against gel definitions",
		Long: `Run YAML scenarios through the simulator.

Each scenario names a gel definition, optional run settings and assertions
on the archived run. When a golden file exists for a scenario its rounded
snapshot must also match.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  gelsim test ./testdata/scenarios
  gelsim test ./testdata/scenarios --filter "plasmid_*"
  gelsim test ./testdata/scenarios --update
  gelsim test ./testdata/scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.GoldenDir, "golden-dir", "", "golden file directory (default: golden/ next to the scenarios dir)")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}
	if _, err := filepath.Match(opts.Filter, ""); err != nil {
		return WrapExitError(ExitCommandError, "invalid filter pattern", err)
	}

	goldenDir := opts.GoldenDir
	if goldenDir == "" {
		goldenDir = filepath.Join(filepath.Dir(filepath.Clean(scenariosDir)), "golden")
	}

	scenarios, err := harness.LoadScenarios(scenariosDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenarios", err)
	}

	text := opts.Format != "json"
	w := cmd.OutOrStdout()
	result := TestResult{Scenarios: []ScenarioResult{}}
	for _, sc := range scenarios {
		if matched, _ := filepath.Match(opts.Filter, sc.Name); opts.Filter != "" && !matched {
			continue
		}
		r, note := runScenario(cmd, sc, filepath.Join(goldenDir, sc.Name+".golden"), opts.Update)
		if text {
			printScenario(w, r, note)
		}
		result.add(r)
	}

	if !text {
		return outputTestJSON(cmd, result)
	}
	if result.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return nil
	}
	fmt.Fprintf(w, "\nTest Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if err := result.err(); err != nil {
		return err
	}
	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}

func (r *TestResult) add(s ScenarioResult) {
	r.Scenarios = append(r.Scenarios, s)
	r.Total++
	if s.Pass {
		r.Passed++
	} else {
		r.Failed++
	}
}

// err is the ExitFailure returned when any scenario failed.
func (r *TestResult) err() error {
	if r.Failed == 0 {
		return nil
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", r.Failed))
}

// runScenario simulates sc and checks it against its assertions and golden
// snapshot. note is a short human-readable suffix for the text report.
func runScenario(cmd *cobra.Command, sc *harness.Scenario, goldenPath string, update bool) (ScenarioResult, string) {
	failed := func(errs ...string) (ScenarioResult, string) {
		return ScenarioResult{Name: sc.Name, Errors: errs}, ""
	}

	res, err := harness.Run(cmd.Context(), sc)
	if err != nil {
		return failed(fmt.Sprintf("execution failed: %v", err))
	}
	snapshot, err := canon.Marshal(harness.Snapshot{ScenarioName: sc.Name, Run: res.Run})
	if err != nil {
		return failed(fmt.Sprintf("failed to marshal snapshot: %v", err))
	}

	if update {
		if err := writeGolden(goldenPath, snapshot); err != nil {
			return failed(err.Error())
		}
		return ScenarioResult{Name: sc.Name, Pass: true}, "golden updated"
	}

	errs := append([]string(nil), res.Errors...)
	if msg := compareGolden(goldenPath, snapshot); msg != "" {
		errs = append(errs, msg)
	}
	if len(errs) > 0 {
		return failed(errs...)
	}
	note := fmt.Sprintf("%s, %s, %d bands", res.Run.StopReason, formatElapsed(res.Run.ElapsedSeconds), len(res.Run.Bands))
	return ScenarioResult{Name: sc.Name, Pass: true}, note
}

func writeGolden(path string, snapshot []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, snapshot, 0644); err != nil {
		return fmt.Errorf("failed to update golden file: %w", err)
	}
	return nil
}

// compareGolden returns a failure message, or "" when the snapshot matches
// or the scenario has no golden file.
func compareGolden(path string, snapshot []byte) string {
	golden, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return ""
	case err != nil:
		return fmt.Sprintf("failed to read golden file: %v", err)
	case !bytes.Equal(golden, snapshot):
		return "snapshot does not match golden file (run with --update to regenerate)"
	}
	return ""
}

func printScenario(w io.Writer, r ScenarioResult, note string) {
	if !r.Pass {
		fmt.Fprintf(w, "✗ %s\n", r.Name)
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
		return
	}
	if note != "" {
		fmt.Fprintf(w, "✓ %s (%s)\n", r.Name, note)
		return
	}
	fmt.Fprintf(w, "✓ %s\n", r.Name)
}

func outputTestJSON(cmd *cobra.Command, result TestResult) error {
	resp := CLIResponse{Status: "ok", Data: result}
	if result.Failed > 0 {
		resp.Status = "error"
		resp.Error = &CLIError{
			Code:    "E_TEST_FAILED",
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return err
	}
	return result.err()
}
