package gel

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/gelsim/internal/band"
	"github.com/roach88/gelsim/internal/canon"
	"github.com/roach88/gelsim/internal/fragment"
	"github.com/roach88/gelsim/internal/quantity"
	"github.com/roach88/gelsim/internal/simerr"
)

// BandInfo describes one rendered band.
type BandInfo struct {
	Name      string
	Length    int // bp
	Topology  fragment.Topology
	Distance  quantity.Quantity // cm from the well
	Mass      quantity.Quantity // ng
	Sigma     float64           // cm
	Peak      float64           // ng/cm
	Saturated bool
	OnGel     bool // false once the band has run off the end
}

// Result is a rendered gel. It is read-only.
type Result struct {
	RunID       string
	Fingerprint string // hash of the configuration and run parameters
	Elapsed     quantity.Quantity
	StopReason  StopReason
	Exposure    float64
	Threshold   float64     // saturation level, ng/cm
	Scale       float64     // ng/cm shown at full intensity; Threshold unless exposure is 0
	Positions   []float64   // cm, one per field column
	Field       [][]float64 // display intensity in [0, 1], by lane then position
	Bands       [][]BandInfo
	History     []RunState

	cfg Config
}

// Config returns a copy of the resolved configuration that was run.
func (r *Result) Config() Config {
	return r.cfg.withDefaults()
}

// Quantities returns the mass of every fragment, by lane then fragment.
func (r *Result) Quantities() [][]quantity.Quantity {
	out := make([][]quantity.Quantity, len(r.Bands))
	for i, lane := range r.Bands {
		out[i] = make([]quantity.Quantity, len(lane))
		for j, b := range lane {
			out[i][j] = b.Mass
		}
	}
	return out
}

// Samples returns copies of the lanes that were run.
func (r *Result) Samples() []fragment.Sample {
	out := make([]fragment.Sample, len(r.cfg.Lanes))
	for i, l := range r.cfg.Lanes {
		out[i] = l.Clone()
	}
	return out
}

// LaneNames returns the sample name of every lane.
func (r *Result) LaneNames() []string {
	out := make([]string, len(r.cfg.Lanes))
	for i, l := range r.cfg.Lanes {
		out[i] = l.Name
	}
	return out
}

// SaturatedCount returns the number of saturated bands on the gel.
func (r *Result) SaturatedCount() int {
	n := 0
	for _, lane := range r.Bands {
		for _, b := range lane {
			if b.Saturated {
				n++
			}
		}
	}
	return n
}

// Render builds bands at their final positions and the intensity field.
// Lanes are rendered concurrently.
func (g *Gel) Render(ctx context.Context) (*Result, error) {
	if g.state != Stopped {
		return nil, simerr.New(simerr.InvalidState, "cannot render a gel that is %s", g.state).With("state", g.state.String())
	}
	start := time.Now()

	elapsed := g.clock.Elapsed()
	length, err := g.cfg.Length.In(quantity.Centimeter)
	if err != nil {
		return nil, err
	}

	bands := make([][]band.Band, len(g.cfg.Lanes))
	var heights []float64
	for i, lane := range g.cfg.Lanes {
		bands[i] = make([]band.Band, len(lane.Fragments))
		for j, f := range lane.Fragments {
			b := g.bands.New(float64(g.rates[i][j])*elapsed, f.Length, f.Mass().Value)
			bands[i][j] = b
			heights = append(heights, b.Height)
		}
	}

	threshold, err := band.Threshold(g.params.Exposure, heights)
	if err != nil {
		return nil, err
	}

	positions := band.Positions(length, g.cfg.Resolution)
	field := make([][]float64, len(bands))
	clip := g.params.Exposure > 0

	eg, egctx := errgroup.WithContext(ctx)
	for i := range bands {
		eg.Go(func() error {
			if err := egctx.Err(); err != nil {
				return err
			}
			field[i] = overlayLane(bands[i], positions, threshold, clip)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("render %s: %w", g.runID, err)
	}

	scale := threshold
	if !clip {
		for _, row := range field {
			for _, v := range row {
				scale = math.Max(scale, v)
			}
		}
	}
	for _, row := range field {
		for k := range row {
			row[k] /= scale
		}
	}

	fingerprint, err := canon.Hash(canon.DomainRunInputs, map[string]any{
		"config": g.cfg,
		"run":    g.params.canonicalValue(),
	})
	if err != nil {
		return nil, fmt.Errorf("fingerprint %s: %w", g.runID, err)
	}

	res := &Result{
		RunID:       g.runID,
		Fingerprint: fingerprint,
		Elapsed:     quantity.New(elapsed, quantity.Second),
		StopReason:  g.reason,
		Exposure:    g.params.Exposure,
		Threshold:   threshold,
		Scale:       scale,
		Positions:   positions,
		Field:       field,
		Bands:       g.bandInfo(bands, threshold, length),
		History:     g.History(),
		cfg:         g.Config(),
	}

	g.state = Rendered
	dur := time.Since(start)
	g.observer.ObserveRender(dur.Seconds())
	g.logger.Debug("gel rendered",
		"run_id", g.runID,
		"threshold", threshold,
		"saturated", res.SaturatedCount(),
		"duration", dur,
	)
	return res, nil
}

// overlayLane sums the clipped bands of one lane into a row in ng/cm. With
// clip set the sum is capped at threshold as well, so overlapping bands
// saturate together; without it the lane keeps its full area.
func overlayLane(bands []band.Band, positions []float64, threshold float64, clip bool) []float64 {
	row := make([]float64, len(positions))
	buf := make([]float64, len(positions))
	for _, b := range bands {
		b.SampleInto(buf, positions)
		band.Clip(buf, threshold)
		for k, v := range buf {
			row[k] += v
		}
	}
	if clip {
		band.Clip(row, threshold)
	}
	return row
}

func (g *Gel) bandInfo(bands [][]band.Band, threshold, length float64) [][]BandInfo {
	// At full exposure the threshold sits on the weakest peak. Only the first
	// band at that peak, in lane order, stays unsaturated.
	full := g.params.Exposure == 1
	kept := false
	out := make([][]BandInfo, len(bands))
	for i, lane := range bands {
		out[i] = make([]BandInfo, len(lane))
		for j, b := range lane {
			f := g.cfg.Lanes[i].Fragments[j]
			saturated := b.Saturated(threshold)
			if full && b.Height == threshold {
				saturated = kept
				kept = true
			}
			out[i][j] = BandInfo{
				Name:      f.Name,
				Length:    f.Length,
				Topology:  f.Topology,
				Distance:  quantity.New(b.Center, quantity.Centimeter),
				Mass:      quantity.New(b.Mass, quantity.Nanogram),
				Sigma:     b.Sigma,
				Peak:      b.Height,
				Saturated: saturated,
				OnGel:     b.Center <= length,
			}
		}
	}
	return out
}

func (p RunParams) canonicalValue() map[string]any {
	v := map[string]any{
		"till_len": p.TillLen,
		"exposure": p.Exposure,
		"steps":    p.Steps,
	}
	if p.TillTime != nil {
		s, _ := p.TillTime.In(quantity.Second)
		v["till_time_s"] = s
	}
	return v
}

// Simulate configures, runs and renders a gel in one call.
func Simulate(ctx context.Context, cfg Config, params RunParams, opts ...Option) (*Result, error) {
	g, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := g.Run(ctx, params); err != nil {
		return nil, err
	}
	return g.Render(ctx)
}
