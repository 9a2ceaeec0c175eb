package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/gelsim/internal/band"
	"github.com/roach88/gelsim/internal/config"
	"github.com/roach88/gelsim/internal/export"
	"github.com/roach88/gelsim/internal/gel"
	"github.com/roach88/gelsim/internal/gelspec"
	"github.com/roach88/gelsim/internal/ladder"
	"github.com/roach88/gelsim/internal/metrics"
	"github.com/roach88/gelsim/internal/migration"
	"github.com/roach88/gelsim/internal/quantity"
	"github.com/roach88/gelsim/internal/store"
	"github.com/roach88/gelsim/internal/watch"
)

// watchQuiet is how long the watcher waits for edits to settle before rerunning.
const watchQuiet = 300 * time.Millisecond

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Settings    string
	TillLen     float64
	TillTime    string
	Exposure    float64
	Steps       int
	Field       string
	Agarose     string
	Database    string
	Export      string
	MetricsFile string
	WithField   bool
	Watch       bool

	// IDGenerator allows overriding the run ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDGenerator gel.IDGenerator
}

// RunOutput is the JSON payload of a run.
type RunOutput struct {
	gel.Document
	ArchiveSeq int64  `json:"archive_seq,omitempty"`
	ExportKey  string `json:"export_key,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <gel.cue|gel-dir>",
		Short: "Run and render a gel",
		Long: `Run a gel definition and print the resulting bands.

Run parameters are layered: built-in defaults, then the settings file and
GELSIM_* environment, then the definition's run block, then flags given on
the command line.

Example:
  gelsim run ./gels/digest.cue
  gelsim run ./gels/digest.cue --till-time "45 min" --exposure 0.8
  gelsim run ./gels --db ./runs.db --export fs:./out --watch`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGel(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Settings, "config", "", "settings file (YAML, TOML or JSON)")
	cmd.Flags().Float64Var(&opts.TillLen, "till-len", 0, "stop when the fastest fragment covers this fraction of the gel")
	cmd.Flags().StringVar(&opts.TillTime, "till-time", "", `stop after this simulated time, e.g. "30 min" (bare numbers are minutes)`)
	cmd.Flags().Float64Var(&opts.Exposure, "exposure", 0, "render exposure in [0, 1]")
	cmd.Flags().IntVar(&opts.Steps, "steps", 0, "clock increments per run")
	cmd.Flags().StringVar(&opts.Field, "field", "", `override field strength, e.g. "6 V/cm"`)
	cmd.Flags().StringVar(&opts.Agarose, "agarose", "", `override agarose concentration, e.g. "1.2 %"`)
	cmd.Flags().StringVar(&opts.Database, "db", "", "archive the run in this SQLite database")
	cmd.Flags().StringVar(&opts.Export, "export", "", `export the result document, e.g. "fs:./out" or "s3:bucket"`)
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")
	cmd.Flags().BoolVar(&opts.WithField, "with-field", false, "include the intensity field in JSON output")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "rerun whenever the definition changes")

	return cmd
}

// runner holds everything that survives between runs in watch mode.
type runner struct {
	opts     *RunOptions
	cmd      *cobra.Command
	settings config.Settings
	table    *ladder.Table
	migr     *migration.Model
	bands    *band.Model
	recorder *metrics.Recorder
	archive  *store.Store
	exporter export.Store
	logger   *slog.Logger
}

func runGel(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))

	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	r, err := newRunner(ctx, opts, cmd, logger)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to set up run", err)
	}
	defer r.close()

	if err := r.runOnce(ctx, path, formatter); err != nil {
		if !opts.Watch {
			return err
		}
		logger.Warn("run failed, waiting for changes", "path", path, "error", err)
	}
	if !opts.Watch {
		return nil
	}
	return r.watch(ctx, path, formatter)
}

// signalContext cancels on SIGINT/SIGTERM.
// Uses the command's context if available (for testing).
func signalContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func newRunner(ctx context.Context, opts *RunOptions, cmd *cobra.Command, logger *slog.Logger) (*runner, error) {
	settings, err := config.Load(opts.Settings)
	if err != nil {
		return nil, err
	}
	table, err := ladder.Default()
	if err != nil {
		return nil, err
	}
	migr, err := migration.New(settings.Migration)
	if err != nil {
		return nil, err
	}

	r := &runner{
		opts:     opts,
		cmd:      cmd,
		settings: settings,
		table:    table,
		migr:     migr,
		bands:    &band.Model{Params: settings.Band},
		recorder: metrics.New(),
		logger:   logger,
	}

	dbPath := firstNonEmpty(opts.Database, settings.DB)
	if dbPath != "" {
		logger.Debug("opening database", "path", dbPath)
		r.archive, err = store.Open(dbPath)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
	}

	target := firstNonEmpty(opts.Export, settings.Export)
	if target != "" {
		cfg, err := export.ParseTarget(target)
		if err != nil {
			r.close()
			return nil, err
		}
		r.exporter, err = export.Open(ctx, cfg)
		if err != nil {
			r.close()
			return nil, fmt.Errorf("open export target: %w", err)
		}
	}
	return r, nil
}

func (r *runner) close() {
	if r.archive != nil {
		if err := r.archive.Close(); err != nil {
			r.logger.Error("error closing database", "error", err)
		}
	}
}

// params layers settings defaults, the definition's run block and any
// flags the user set explicitly.
func (r *runner) params(def *gelspec.Definition) (gel.RunParams, error) {
	p := gel.RunParams{
		TillLen:  r.settings.Run.TillLen,
		Exposure: r.settings.Run.Exposure,
		Steps:    r.settings.Run.Steps,
	}
	p = def.Run.Apply(p)

	flags := r.cmd.Flags()
	if flags.Changed("till-len") {
		p.TillLen = r.opts.TillLen
	}
	if flags.Changed("till-time") {
		q, err := quantity.ParseDefault(r.opts.TillTime, quantity.Minute)
		if err != nil {
			return gel.RunParams{}, fmt.Errorf("--till-time: %w", err)
		}
		p.TillTime = &q
	}
	if flags.Changed("exposure") {
		p.Exposure = r.opts.Exposure
	}
	if flags.Changed("steps") {
		p.Steps = r.opts.Steps
	}
	return p, p.Validate()
}

// conditions applies --field and --agarose to a compiled configuration.
func (r *runner) conditions(cfg gel.Config) (gel.Config, error) {
	if r.opts.Field != "" {
		q, err := quantity.ParseDefault(r.opts.Field, quantity.VoltPerCentimeter)
		if err != nil {
			return cfg, fmt.Errorf("--field: %w", err)
		}
		cfg.Field = q
	}
	if r.opts.Agarose != "" {
		q, err := quantity.ParseDefault(r.opts.Agarose, quantity.Percent)
		if err != nil {
			return cfg, fmt.Errorf("--agarose: %w", err)
		}
		cfg.Agarose = q
	}
	return cfg, nil
}

func (r *runner) runOnce(ctx context.Context, path string, formatter *OutputFormatter) error {
	def, err := LoadGel(path, r.table)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to load gel definition", err)
	}
	formatter.VerboseLog("Loaded %d lane(s) from %s", len(def.Config.Lanes), path)

	cfg, err := r.conditions(def.Config)
	if err != nil {
		return formatter.Fail(ExitCommandError, "invalid conditions", err)
	}
	params, err := r.params(def)
	if err != nil {
		return formatter.Fail(ExitCommandError, "invalid run parameters", err)
	}

	ids := r.opts.IDGenerator
	if ids == nil {
		ids = gel.UUIDv7Generator{}
	}

	res, err := gel.Simulate(ctx, cfg, params,
		gel.WithLogger(r.logger),
		gel.WithIDGenerator(ids),
		gel.WithMigrationModel(r.migr),
		gel.WithBandModel(r.bands),
		gel.WithObserver(r.recorder),
	)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return WrapExitError(ExitFailure, "run cancelled", err)
		}
		return formatter.Fail(ExitFailure, "simulation failed", err)
	}

	out := RunOutput{Document: res.Document(r.opts.WithField)}

	if r.archive != nil {
		seq, err := r.archive.WriteRun(ctx, store.RunFromResult(res, def.Source))
		if err != nil {
			return formatter.Fail(ExitFailure, "failed to archive run", withCode(ErrCodeStoreFailed, err))
		}
		out.ArchiveSeq = seq
		r.logger.Debug("run archived", "run_id", res.RunID, "seq", seq)
	}

	if r.exporter != nil {
		info, err := export.WriteResult(ctx, r.exporter, res)
		if err != nil {
			return formatter.Fail(ExitFailure, "failed to export run", withCode(ErrCodeWriteFailed, err))
		}
		out.ExportKey = info.Key
		r.logger.Debug("run exported", "driver", r.exporter.Driver(), "key", info.Key, "size", info.Size)
	}

	if r.opts.MetricsFile != "" {
		if err := r.recorder.WriteTextfile(r.opts.MetricsFile); err != nil {
			return formatter.Fail(ExitFailure, "failed to write metrics", withCode(ErrCodeWriteFailed, err))
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(out)
	}
	writeRunText(formatter.Writer, out)
	return nil
}

func (r *runner) watch(ctx context.Context, path string, formatter *OutputFormatter) error {
	dir, only := path, ""
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		dir, only = filepath.Dir(path), filepath.Clean(path)
	}

	w, err := watch.New(watch.WithLogger(r.logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start watcher", err)
	}
	defer w.Close()

	events, err := w.Watch(ctx, dir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to watch directory", err)
	}
	r.logger.Info("watching for changes", "dir", dir)

	for ev := range watch.Debounce(ctx, events, watchQuiet) {
		if only != "" && filepath.Clean(ev.Path) != only {
			continue
		}
		r.logger.Info("definition changed, rerunning", "path", ev.Path, "op", ev.Op)
		if err := r.runOnce(ctx, path, formatter); err != nil {
			r.logger.Warn("run failed", "path", path, "error", err)
		}
	}
	return nil
}

func writeRunText(w io.Writer, out RunOutput) {
	fmt.Fprintf(w, "Run %s\n", out.RunID)
	fmt.Fprintf(w, "  stopped by %s after %s\n", out.StopReason, formatElapsed(out.ElapsedSeconds))
	fmt.Fprintf(w, "  agarose %s, field %s, length %s, exposure %.2f\n", out.Agarose, out.Field, out.Length, out.Exposure)
	if out.ArchiveSeq > 0 {
		fmt.Fprintf(w, "  archived as #%d\n", out.ArchiveSeq)
	}
	if out.ExportKey != "" {
		fmt.Fprintf(w, "  exported to %s\n", out.ExportKey)
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LANE\tBAND\tBP\tTOPOLOGY\tDISTANCE\tMASS\t")
	for _, lane := range out.Lanes {
		for _, b := range lane.Bands {
			mark := ""
			if b.Saturated {
				mark = "saturated"
			}
			if !b.OnGel {
				mark = "off gel"
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%.2f cm\t%.2f ng\t%s\n",
				lane.Name, b.Name, b.BP, b.Topology, b.DistanceCm, b.MassNg, mark)
		}
	}
	tw.Flush()
}

func formatElapsed(seconds float64) string {
	return time.Duration(seconds * float64(time.Second)).Round(time.Second).String()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// codedError tags an error with a CLI error code.
type codedError struct {
	code string
	err  error
}

func (e *codedError) Error() string { return e.err.Error() }
func (e *codedError) Unwrap() error { return e.err }

func withCode(code string, err error) error {
	return &codedError{code: code, err: err}
}
