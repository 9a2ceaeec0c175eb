package band

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gelsim/internal/simerr"
	"github.com/roach88/gelsim/internal/testutil"
)

func TestSigma_IncreasesWithSize(t *testing.T) {
	m := Default()
	assert.InDelta(t, 0.10, m.Sigma(1000), 1e-12)
	assert.Less(t, m.Sigma(500), m.Sigma(5000))
}

func TestNew_AreaEqualsMass(t *testing.T) {
	m := Default()
	pos := Positions(10, 4001)

	for _, mass := range []float64{5, 50, 250} {
		b := m.New(5, 3000, mass)
		assert.InDelta(t, mass, testutil.Trapezoid(pos, b.Sample(pos)), mass*1e-6)
	}
}

func TestAreaProportionalToMassAtZeroExposure(t *testing.T) {
	m := Default()
	bands := []Band{m.New(2, 1000, 10), m.New(5, 1000, 40), m.New(8, 1000, 160)}
	heights := []float64{bands[0].Height, bands[1].Height, bands[2].Height}

	th, err := Threshold(0, heights)
	require.NoError(t, err)

	pos := Positions(10, 2001)
	var areas []float64
	for _, b := range bands {
		assert.False(t, b.Saturated(th))
		c := b.Sample(pos)
		Clip(c, th)
		areas = append(areas, testutil.Trapezoid(pos, c))
	}
	assert.InDelta(t, 4, areas[1]/areas[0], 1e-6)
	assert.InDelta(t, 4, areas[2]/areas[1], 1e-6)
}

func TestThreshold_FullExposureLeavesOnlyWeakest(t *testing.T) {
	m := Default()
	bands := []Band{m.New(1, 250, 25), m.New(3, 1000, 70), m.New(6, 8000, 30)}
	heights := make([]float64, len(bands))
	for i, b := range bands {
		heights[i] = b.Height
	}

	th, err := Threshold(1, heights)
	require.NoError(t, err)

	unsaturated := 0
	for _, b := range bands {
		if !b.Saturated(th) {
			unsaturated++
			assert.Equal(t, th, b.Height)
		}
	}
	assert.Equal(t, 1, unsaturated)
}

func TestThreshold_LogInterpolation(t *testing.T) {
	th, err := Threshold(0.5, []float64{1, 100})
	require.NoError(t, err)
	assert.InDelta(t, 10, th, 1e-9)

	lo, _ := Threshold(0.2, []float64{1, 100})
	hi, _ := Threshold(0.8, []float64{1, 100})
	assert.Greater(t, lo, hi)
}

func TestThreshold_Errors(t *testing.T) {
	_, err := Threshold(-0.1, []float64{1})
	assert.True(t, simerr.IsInvalidParameter(err))
	_, err = Threshold(1.1, []float64{1})
	assert.True(t, simerr.IsInvalidParameter(err))
	_, err = Threshold(math.NaN(), []float64{1})
	assert.True(t, simerr.IsInvalidParameter(err))
	_, err = Threshold(0.5, nil)
	assert.True(t, simerr.IsEmptyGel(err))
}

func TestClip(t *testing.T) {
	c := []float64{0, 1, 2, 3}
	Clip(c, 1.5)
	assert.Equal(t, []float64{0, 1, 1.5, 1.5}, c)
}

func TestPositions(t *testing.T) {
	assert.Equal(t, []float64{0, 2.5, 5, 7.5, 10}, Positions(10, 5))
}

func TestParams_Validate(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())
	assert.Error(t, Params{BaseWidth: 0, WidthPerDecade: 0.02}.Validate())
	assert.Error(t, Params{BaseWidth: 0.04, WidthPerDecade: -1}.Validate())
}
