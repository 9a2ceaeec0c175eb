package gel

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gelsim/internal/fragment"
	"github.com/roach88/gelsim/internal/ladder"
	"github.com/roach88/gelsim/internal/migration"
	"github.com/roach88/gelsim/internal/quantity"
	"github.com/roach88/gelsim/internal/simerr"
	"github.com/roach88/gelsim/internal/testutil"
)

func ng(v float64) quantity.Quantity { return quantity.New(v, quantity.Nanogram) }

func testConfig(t *testing.T) Config {
	t.Helper()
	table, err := ladder.Default()
	require.NoError(t, err)
	ruler, err := fragment.BuildWeightStandardSample(table, "1kb_GeneRuler", nil)
	require.NoError(t, err)
	digest, err := fragment.BuildSample([]int{500, 1000, 5000}, []quantity.Quantity{ng(200)})
	require.NoError(t, err)
	digest.Name = "digest"
	return DefaultConfig(ruler, digest)
}

func newGel(t *testing.T, cfg Config) *Gel {
	t.Helper()
	g, err := New(cfg, WithIDGenerator(NewFixedGenerator("run-1", "run-2")))
	require.NoError(t, err)
	return g
}

func TestNew_Errors(t *testing.T) {
	base := testConfig(t)
	tests := []struct {
		name   string
		mutate func(*Config)
		check  func(error) bool
	}{
		{"no lanes", func(c *Config) { c.Lanes = nil }, simerr.IsEmptyGel},
		{"empty lanes", func(c *Config) { c.Lanes = []fragment.Sample{{Name: "a"}, {Name: "b"}} }, simerr.IsEmptyGel},
		{"agarose in volts", func(c *Config) { c.Agarose = quantity.New(1, quantity.VoltPerCentimeter) }, simerr.IsDimensionMismatch},
		{"negative agarose", func(c *Config) { c.Agarose = quantity.New(-1, quantity.Percent) }, simerr.IsInvalidParameter},
		{"infinite agarose", func(c *Config) { c.Agarose = quantity.New(math.Inf(1), quantity.Percent) }, simerr.IsInvalidParameter},
		{"negative field", func(c *Config) { c.Field = quantity.New(-5, quantity.VoltPerCentimeter) }, simerr.IsInvalidParameter},
		{"length in bp", func(c *Config) { c.Length = quantity.New(10, quantity.BasePair) }, simerr.IsDimensionMismatch},
		{"resolution 1", func(c *Config) { c.Resolution = 1 }, simerr.IsInvalidParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			_, err := New(cfg)
			require.Error(t, err)
			assert.True(t, tt.check(err), "got %v", err)
		})
	}
}

func TestNew_FillsDefaultsAndCopies(t *testing.T) {
	base := testConfig(t)
	cfg := Config{Lanes: base.Lanes}
	g, err := New(cfg)
	require.NoError(t, err)

	got := g.Config()
	assert.Equal(t, DefaultAgarose, got.Agarose)
	assert.Equal(t, DefaultField, got.Field)
	assert.Equal(t, DefaultLength, got.Length)
	assert.Equal(t, DefaultResolution, got.Resolution)

	cfg.Lanes[0].Fragments[0].Length = 1
	assert.Equal(t, 10000, g.Config().Lanes[0].Fragments[0].Length)
	assert.Equal(t, Configured, g.State())
}

func TestRun_StopsAtTillLen(t *testing.T) {
	g := newGel(t, testConfig(t))
	require.NoError(t, g.Run(context.Background(), DefaultRunParams()))
	assert.Equal(t, Stopped, g.State())

	st := g.RunState()
	fastest := 0.0
	for _, lane := range st.Distances {
		for _, d := range lane {
			fastest = max(fastest, d.Value)
		}
	}
	assert.InDelta(t, 7.5, fastest, 1e-9)
}

func TestRun_TillTimeFirst(t *testing.T) {
	g := newGel(t, testConfig(t))
	p := DefaultRunParams()
	limit := quantity.New(30, quantity.Minute)
	p.TillTime = &limit

	require.NoError(t, g.Run(context.Background(), p))
	res, err := g.Render(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StopTime, res.StopReason)
	assert.InDelta(t, 1800, res.Elapsed.Value, 1e-9)
}

func TestRun_TillLenFirst(t *testing.T) {
	g := newGel(t, testConfig(t))
	p := DefaultRunParams()
	p.TillLen = 0.1
	limit := quantity.New(10, quantity.Hour)
	p.TillTime = &limit

	require.NoError(t, g.Run(context.Background(), p))
	res, err := g.Render(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StopDistance, res.StopReason)
	assert.Less(t, res.Elapsed.Value, 36000.0)
}

func TestRun_ZeroFieldNeedsTillTime(t *testing.T) {
	cfg := testConfig(t)
	cfg.Field = quantity.New(0, quantity.VoltPerCentimeter)

	g := newGel(t, cfg)
	err := g.Run(context.Background(), DefaultRunParams())
	assert.True(t, simerr.IsInvalidParameter(err))
	assert.Equal(t, Configured, g.State())

	p := DefaultRunParams()
	limit := quantity.New(1, quantity.Hour)
	p.TillTime = &limit
	res, err := Simulate(context.Background(), cfg, p)
	require.NoError(t, err)
	assert.Equal(t, StopTime, res.StopReason)
	assert.Zero(t, res.Bands[0][0].Distance.Value)
}

func TestRun_InvalidParamsLeaveStateUntouched(t *testing.T) {
	neg := quantity.New(-1, quantity.Minute)
	wrong := quantity.New(1, quantity.Centimeter)
	tests := []struct {
		name   string
		mutate func(*RunParams)
		check  func(error) bool
	}{
		{"till_len zero", func(p *RunParams) { p.TillLen = 0 }, simerr.IsInvalidParameter},
		{"till_len above one", func(p *RunParams) { p.TillLen = 1.01 }, simerr.IsInvalidParameter},
		{"negative till_time", func(p *RunParams) { p.TillTime = &neg }, simerr.IsInvalidParameter},
		{"till_time in cm", func(p *RunParams) { p.TillTime = &wrong }, simerr.IsDimensionMismatch},
		{"exposure", func(p *RunParams) { p.Exposure = 2 }, simerr.IsInvalidParameter},
		{"steps", func(p *RunParams) { p.Steps = 0 }, simerr.IsInvalidParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGel(t, testConfig(t))
			p := DefaultRunParams()
			tt.mutate(&p)

			err := g.Run(context.Background(), p)
			require.Error(t, err)
			assert.True(t, tt.check(err), "got %v", err)
			assert.Equal(t, Configured, g.State())
			assert.Empty(t, g.RunState().Distances)
		})
	}
}

func TestRun_TwiceIsInvalidState(t *testing.T) {
	g := newGel(t, testConfig(t))
	require.NoError(t, g.Run(context.Background(), DefaultRunParams()))

	err := g.Run(context.Background(), DefaultRunParams())
	assert.True(t, simerr.IsInvalidState(err))
}

func TestRender_BeforeRunIsInvalidState(t *testing.T) {
	g := newGel(t, testConfig(t))
	_, err := g.Render(context.Background())
	assert.True(t, simerr.IsInvalidState(err))
}

func TestRender_TwiceIsInvalidState(t *testing.T) {
	g := newGel(t, testConfig(t))
	require.NoError(t, g.Run(context.Background(), DefaultRunParams()))
	_, err := g.Render(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Rendered, g.State())

	_, err = g.Render(context.Background())
	assert.True(t, simerr.IsInvalidState(err))
}

func TestRun_CancelledContextReturnsToConfigured(t *testing.T) {
	g := newGel(t, testConfig(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := g.Run(ctx, DefaultRunParams())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, Configured, g.State())
	assert.Empty(t, g.RunState().Distances)

	require.NoError(t, g.Run(context.Background(), DefaultRunParams()))
}

func TestRun_HistoryIsMonotonic(t *testing.T) {
	g := newGel(t, testConfig(t))
	p := DefaultRunParams()
	p.Steps = 20
	p.RecordHistory = true
	require.NoError(t, g.Run(context.Background(), p))

	h := g.History()
	require.Len(t, h, 20)
	for k := 1; k < len(h); k++ {
		assert.Greater(t, h[k].Elapsed.Value, h[k-1].Elapsed.Value)
		for i := range h[k].Distances {
			for j := range h[k].Distances[i] {
				assert.GreaterOrEqual(t, h[k].Distances[i][j].Value, h[k-1].Distances[i][j].Value)
			}
		}
	}
	assert.Equal(t, g.RunState().Elapsed, h[len(h)-1].Elapsed)
}

func TestRender_DistanceDecreasesWithLength(t *testing.T) {
	res, err := Simulate(context.Background(), testConfig(t), DefaultRunParams(),
		WithIDGenerator(NewFixedGenerator("run-x")))
	require.NoError(t, err)
	assert.Equal(t, "run-x", res.RunID)

	ruler := res.Bands[0]
	require.Len(t, ruler, 14)
	for j := 1; j < len(ruler); j++ {
		assert.Less(t, ruler[j-1].Distance.Value, ruler[j].Distance.Value, "%d vs %d bp", ruler[j-1].Length, ruler[j].Length)
	}
}

func TestRender_FieldIsNormalized(t *testing.T) {
	res, err := Simulate(context.Background(), testConfig(t), DefaultRunParams())
	require.NoError(t, err)

	require.Len(t, res.Field, 2)
	require.Len(t, res.Positions, DefaultResolution)
	assert.Equal(t, 0.0, res.Positions[0])
	assert.InDelta(t, 10, res.Positions[len(res.Positions)-1], 1e-12)

	peak := 0.0
	for _, row := range res.Field {
		require.Len(t, row, DefaultResolution)
		for _, v := range row {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
			peak = max(peak, v)
		}
	}
	assert.InDelta(t, 1.0, peak, 1e-9)
	assert.Positive(t, res.SaturatedCount())
}

func TestRender_FullExposureLeavesOneUnsaturated(t *testing.T) {
	p := DefaultRunParams()
	p.Exposure = 1
	res, err := Simulate(context.Background(), testConfig(t), p)
	require.NoError(t, err)

	unsaturated := 0
	for _, lane := range res.Bands {
		for _, b := range lane {
			if !b.Saturated {
				unsaturated++
			}
		}
	}
	assert.Equal(t, 1, unsaturated)
}

func TestRender_ZeroExposureSaturatesNothing(t *testing.T) {
	p := DefaultRunParams()
	p.Exposure = 0
	res, err := Simulate(context.Background(), testConfig(t), p)
	require.NoError(t, err)
	assert.Zero(t, res.SaturatedCount())
}

func TestRender_ZeroExposureKeepsOverlappingLaneArea(t *testing.T) {
	pair, err := fragment.BuildSample([]int{1000, 1005}, []quantity.Quantity{ng(100), ng(100)})
	require.NoError(t, err)
	cfg := DefaultConfig(pair)
	cfg.Resolution = 2000

	p := DefaultRunParams()
	p.Exposure = 0
	res, err := Simulate(context.Background(), cfg, p)
	require.NoError(t, err)

	assert.Zero(t, res.SaturatedCount())
	assert.Greater(t, res.Scale, res.Threshold, "summed peak is above either band alone")

	row := res.Field[0]
	peak := 0.0
	scaled := make([]float64, len(row))
	for k, v := range row {
		peak = max(peak, v)
		scaled[k] = v * res.Scale
	}
	assert.InDelta(t, 1.0, peak, 1e-12)
	assert.InDelta(t, 200, testutil.Trapezoid(res.Positions, scaled), 2)
}

func TestRender_PartialExposureClipsLaneSum(t *testing.T) {
	pair, err := fragment.BuildSample([]int{1000, 1005}, []quantity.Quantity{ng(100), ng(100)})
	require.NoError(t, err)

	p := DefaultRunParams()
	p.Exposure = 0.5
	res, err := Simulate(context.Background(), DefaultConfig(pair), p)
	require.NoError(t, err)

	assert.Equal(t, res.Threshold, res.Scale)
	for _, v := range res.Field[0] {
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestRender_FullExposureTieKeepsFirstBand(t *testing.T) {
	lane := func(name string) fragment.Sample {
		s, err := fragment.BuildSample([]int{500, 1000, 5000}, []quantity.Quantity{ng(200)})
		require.NoError(t, err)
		s.Name = name
		return s
	}

	p := DefaultRunParams()
	p.Exposure = 1
	res, err := Simulate(context.Background(), DefaultConfig(lane("a"), lane("b")), p)
	require.NoError(t, err)

	assert.False(t, res.Bands[0][0].Saturated, "first weakest band stays unsaturated")
	assert.True(t, res.Bands[1][0].Saturated, "identical band in the later lane saturates")
	assert.Equal(t, 5, res.SaturatedCount())
}

func TestResult_QuantitiesAndSamples(t *testing.T) {
	cfg := testConfig(t)
	res, err := Simulate(context.Background(), cfg, DefaultRunParams())
	require.NoError(t, err)

	q := res.Quantities()
	require.Len(t, q, 2)
	assert.InDelta(t, 70, q[0][2].Value, 1e-9)
	assert.InDelta(t, 153.85, q[1][2].Value, 0.01)

	samples := res.Samples()
	assert.Equal(t, []string{"1kb_GeneRuler", "digest"}, res.LaneNames())
	samples[0].Fragments[0].Length = 1
	assert.Equal(t, 10000, res.Samples()[0].Fragments[0].Length)
}

func TestResult_FingerprintDependsOnInputs(t *testing.T) {
	cfg := testConfig(t)
	a, err := Simulate(context.Background(), cfg, DefaultRunParams())
	require.NoError(t, err)
	b, err := Simulate(context.Background(), cfg, DefaultRunParams())
	require.NoError(t, err)
	assert.Equal(t, a.Fingerprint, b.Fingerprint)
	assert.NotEqual(t, a.RunID, b.RunID)

	p := DefaultRunParams()
	p.Exposure = 0.9
	c, err := Simulate(context.Background(), cfg, p)
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint, c.Fingerprint)
}

func TestWithMigrationModel(t *testing.T) {
	params := migration.DefaultParams()
	params.FreeMobility *= 2
	m, err := migration.New(params)
	require.NoError(t, err)

	p := DefaultRunParams()
	limit := quantity.New(10, quantity.Minute)
	p.TillTime = &limit

	slow, err := Simulate(context.Background(), testConfig(t), p)
	require.NoError(t, err)
	fast, err := Simulate(context.Background(), testConfig(t), p, WithMigrationModel(m))
	require.NoError(t, err)
	assert.InDelta(t, 2*slow.Bands[1][0].Distance.Value, fast.Bands[1][0].Distance.Value, 1e-12)
}

type recordingObserver struct {
	reasons   []StopReason
	fragments int
	renders   int
}

func (o *recordingObserver) ObserveRun(r StopReason, _ float64, n int) {
	o.reasons = append(o.reasons, r)
	o.fragments += n
}

func (o *recordingObserver) ObserveRender(float64) { o.renders++ }

func TestWithObserver(t *testing.T) {
	obs := &recordingObserver{}
	_, err := Simulate(context.Background(), testConfig(t), DefaultRunParams(), WithObserver(obs))
	require.NoError(t, err)

	assert.Equal(t, []StopReason{StopDistance}, obs.reasons)
	assert.Equal(t, 17, obs.fragments)
	assert.Equal(t, 1, obs.renders)
}

func TestResult_Document(t *testing.T) {
	res, err := Simulate(context.Background(), testConfig(t), DefaultRunParams(),
		WithIDGenerator(NewFixedGenerator("run-doc")))
	require.NoError(t, err)

	doc := res.Document(false)
	assert.Equal(t, "run-doc", doc.RunID)
	assert.Equal(t, "1%", doc.Agarose)
	assert.Equal(t, "5 V/cm", doc.Field)
	assert.Nil(t, doc.PositionsCm)
	require.Len(t, doc.Lanes, 2)
	assert.Equal(t, "digest", doc.Lanes[1].Name)
	assert.Nil(t, doc.Lanes[0].Intensity)
	assert.Equal(t, 10000, doc.Lanes[0].Bands[0].BP)

	full := res.Document(true)
	assert.Len(t, full.PositionsCm, DefaultResolution)
	assert.Len(t, full.Lanes[1].Intensity, DefaultResolution)
}
