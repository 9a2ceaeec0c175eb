package gel

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/roach88/gelsim/internal/band"
	"github.com/roach88/gelsim/internal/migration"
	"github.com/roach88/gelsim/internal/quantity"
	"github.com/roach88/gelsim/internal/simerr"
)

// State is the controller life-cycle stage.
type State int

const (
	Configured State = iota
	Running
	Stopped
	Rendered
)

func (s State) String() string {
	switch s {
	case Configured:
		return "configured"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	case Rendered:
		return "rendered"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// StopReason records which bound ended a run.
type StopReason string

const (
	StopDistance StopReason = "distance"
	StopTime     StopReason = "time"
)

// DefaultSteps is the number of clock increments per run.
const DefaultSteps = 100

// RunParams bound a run and set the render exposure.
type RunParams struct {
	// TillLen stops the run when the fastest fragment has covered this
	// fraction of the gel. Must be in (0, 1].
	TillLen float64

	// TillTime optionally stops the run earlier in simulated time.
	TillTime *quantity.Quantity

	// Exposure in [0, 1]; 0 never saturates, 1 saturates all but the weakest band.
	Exposure float64

	Steps int

	// RecordHistory keeps a RunState snapshot after every step.
	RecordHistory bool
}

// DefaultRunParams returns TillLen 0.75, exposure 0.5 and DefaultSteps.
func DefaultRunParams() RunParams {
	return RunParams{
		TillLen:  0.75,
		Exposure: 0.5,
		Steps:    DefaultSteps,
	}
}

// Validate checks ranges without touching any controller state.
func (p RunParams) Validate() error {
	if !(p.TillLen > 0 && p.TillLen <= 1) {
		return simerr.Invalid("till_len", p.TillLen, "must be in (0, 1]")
	}
	if p.TillTime != nil {
		if err := p.TillTime.Require(quantity.Time); err != nil {
			return err
		}
		if p.TillTime.Value < 0 || !p.TillTime.IsFinite() {
			return simerr.Invalid("till_time", *p.TillTime, "must be non-negative")
		}
	}
	if !(p.Exposure >= 0 && p.Exposure <= 1) {
		return simerr.Invalid("exposure", p.Exposure, "must be in [0, 1]")
	}
	if p.Steps < 1 {
		return simerr.Invalid("steps", p.Steps, "must be at least 1")
	}
	return nil
}

// RunState is the migration progress at one instant.
type RunState struct {
	Elapsed   quantity.Quantity     // seconds
	Distances [][]quantity.Quantity // cm, by lane then fragment
}

func (s RunState) clone() RunState {
	d := make([][]quantity.Quantity, len(s.Distances))
	for i, row := range s.Distances {
		d[i] = append([]quantity.Quantity(nil), row...)
	}
	return RunState{Elapsed: s.Elapsed, Distances: d}
}

// Observer receives run and render measurements.
type Observer interface {
	ObserveRun(reason StopReason, elapsedSeconds float64, fragments int)
	ObserveRender(seconds float64)
}

type nopObserver struct{}

func (nopObserver) ObserveRun(StopReason, float64, int) {}
func (nopObserver) ObserveRender(float64)               {}

// Gel is the run controller for one configured gel.
// Not safe for concurrent use.
type Gel struct {
	cfg       Config
	migration *migration.Model
	bands     *band.Model
	ids       IDGenerator
	logger    *slog.Logger
	observer  Observer

	state   State
	params  RunParams
	runID   string
	rates   [][]migration.Rate
	clock   *SimClock
	current RunState
	history []RunState
	reason  StopReason
}

// Option configures a Gel.
type Option func(*Gel)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(g *Gel) {
		g.logger = l
	}
}

// WithIDGenerator sets the run ID source. Default: UUIDv7Generator.
func WithIDGenerator(gen IDGenerator) Option {
	return func(g *Gel) {
		g.ids = gen
	}
}

// WithMigrationModel replaces the default migration constants.
func WithMigrationModel(m *migration.Model) Option {
	return func(g *Gel) {
		g.migration = m
	}
}

// WithBandModel replaces the default band widths.
func WithBandModel(m *band.Model) Option {
	return func(g *Gel) {
		g.bands = m
	}
}

// WithObserver reports run and render measurements to o.
func WithObserver(o Observer) Option {
	return func(g *Gel) {
		g.observer = o
	}
}

// New validates cfg and returns a Configured controller holding a copy of it.
func New(cfg Config, opts ...Option) (*Gel, error) {
	c := cfg.withDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}

	g := &Gel{
		cfg:       c,
		migration: migration.Default(),
		bands:     band.Default(),
		ids:       UUIDv7Generator{},
		logger:    slog.Default(),
		observer:  nopObserver{},
		state:     Configured,
	}
	for _, opt := range opts {
		opt(g)
	}
	if err := g.migration.Params.Validate(); err != nil {
		return nil, err
	}
	if err := g.bands.Params.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// Config returns a copy of the validated configuration.
func (g *Gel) Config() Config {
	return g.cfg.withDefaults()
}

// State returns the current life-cycle stage.
func (g *Gel) State() State {
	return g.state
}

// RunState returns a copy of the latest run state.
func (g *Gel) RunState() RunState {
	return g.current.clone()
}

// History returns the recorded snapshots, if RecordHistory was set.
func (g *Gel) History() []RunState {
	out := make([]RunState, len(g.history))
	for i, s := range g.history {
		out[i] = s.clone()
	}
	return out
}

// Run migrates every fragment until the first stop bound is reached.
func (g *Gel) Run(ctx context.Context, params RunParams) error {
	if g.state != Configured {
		return simerr.New(simerr.InvalidState, "cannot run a gel that is %s", g.state).With("state", g.state.String())
	}
	if err := params.Validate(); err != nil {
		return err
	}

	rates, fastest, err := g.computeRates()
	if err != nil {
		return err
	}
	stop, reason, err := g.stopTime(params, fastest)
	if err != nil {
		return err
	}

	g.state = Running
	g.params = params
	g.rates = rates
	g.runID = g.ids.Generate()
	g.clock = NewSimClock(stop, params.Steps)
	g.current = g.snapshot(0)
	g.history = nil

	g.logger.Debug("run started",
		"run_id", g.runID,
		"lanes", len(g.cfg.Lanes),
		"fragments", g.cfg.FragmentCount(),
		"stop_seconds", stop,
		"stop_reason", string(reason),
	)

	for !g.clock.Done() {
		if err := ctx.Err(); err != nil {
			g.reset()
			return fmt.Errorf("run %s: %w", g.runID, err)
		}
		g.current = g.snapshot(g.clock.Tick())
		if params.RecordHistory {
			g.history = append(g.history, g.current.clone())
		}
	}

	g.reason = reason
	g.state = Stopped
	g.observer.ObserveRun(reason, stop, g.cfg.FragmentCount())
	g.logger.Info("run stopped",
		"run_id", g.runID,
		"stop_reason", string(reason),
		"elapsed_seconds", stop,
	)
	return nil
}

func (g *Gel) reset() {
	g.state = Configured
	g.params = RunParams{}
	g.rates = nil
	g.clock = nil
	g.current = RunState{}
	g.history = nil
	g.runID = ""
}

func (g *Gel) computeRates() ([][]migration.Rate, migration.Rate, error) {
	rates := make([][]migration.Rate, len(g.cfg.Lanes))
	var fastest migration.Rate
	for i, lane := range g.cfg.Lanes {
		rates[i] = make([]migration.Rate, len(lane.Fragments))
		for j, f := range lane.Fragments {
			r, err := g.migration.Rate(f.Length, f.Topology, g.cfg.Agarose, g.cfg.Field)
			if err != nil {
				return nil, 0, err
			}
			rates[i][j] = r
			if r > fastest {
				fastest = r
			}
		}
	}
	return rates, fastest, nil
}

// stopTime returns the earlier of the distance and time bounds in seconds.
// Ties go to distance.
func (g *Gel) stopTime(params RunParams, fastest migration.Rate) (float64, StopReason, error) {
	tLen := math.Inf(1)
	if fastest > 0 || params.TillTime == nil {
		t, err := migration.TimeToReach(params.TillLen, g.cfg.Length, fastest)
		if err != nil {
			return 0, "", err
		}
		tLen = t.Value
	}
	if params.TillTime == nil {
		return tLen, StopDistance, nil
	}
	tTime, err := params.TillTime.In(quantity.Second)
	if err != nil {
		return 0, "", err
	}
	if tTime < tLen {
		return tTime, StopTime, nil
	}
	return tLen, StopDistance, nil
}

func (g *Gel) snapshot(elapsed float64) RunState {
	d := make([][]quantity.Quantity, len(g.rates))
	for i, row := range g.rates {
		d[i] = make([]quantity.Quantity, len(row))
		for j, r := range row {
			d[i][j] = quantity.New(float64(r)*elapsed, quantity.Centimeter)
		}
	}
	return RunState{Elapsed: quantity.New(elapsed, quantity.Second), Distances: d}
}
