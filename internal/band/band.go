// Package band turns migrated fragments into Gaussian intensity profiles.
//
// A band's area equals its mass in nanograms. Exposure is modeled as a
// single saturation threshold shared by every band on the gel.
package band

import (
	"math"

	"github.com/roach88/gelsim/internal/simerr"
)

var sqrt2Pi = math.Sqrt(2 * math.Pi)

// Params control band width.
type Params struct {
	BaseWidth      float64 `mapstructure:"base_width" yaml:"base_width"`             // cm
	WidthPerDecade float64 `mapstructure:"width_per_decade" yaml:"width_per_decade"` // cm per log10(bp)
}

// DefaultParams returns the stock band widths.
func DefaultParams() Params {
	return Params{BaseWidth: 0.04, WidthPerDecade: 0.02}
}

// Validate checks that widths are usable.
func (p Params) Validate() error {
	if !(p.BaseWidth > 0) {
		return simerr.Invalid("base_width", p.BaseWidth, "must be positive")
	}
	if p.WidthPerDecade < 0 || math.IsNaN(p.WidthPerDecade) {
		return simerr.Invalid("width_per_decade", p.WidthPerDecade, "must be non-negative")
	}
	return nil
}

// Model builds bands with fixed Params.
type Model struct {
	Params Params
}

// Default returns a Model with DefaultParams.
func Default() *Model {
	return &Model{Params: DefaultParams()}
}

// Sigma returns the band standard deviation in cm for a fragment of bp.
func (m *Model) Sigma(bp int) float64 {
	return m.Params.BaseWidth + m.Params.WidthPerDecade*math.Log10(float64(bp))
}

// New returns the band of a fragment of bp base pairs and massNg nanograms
// centered at distanceCm from the well.
func (m *Model) New(distanceCm float64, bp int, massNg float64) Band {
	sigma := m.Sigma(bp)
	return Band{
		Center: distanceCm,
		Sigma:  sigma,
		Mass:   massNg,
		Height: massNg / (sigma * sqrt2Pi),
	}
}

// Band is a Gaussian intensity profile along the lane.
type Band struct {
	Center float64 // cm
	Sigma  float64 // cm
	Mass   float64 // ng, equals the area under the curve
	Height float64 // peak, ng/cm
}

// At returns the intensity at x cm.
func (b Band) At(x float64) float64 {
	z := (x - b.Center) / b.Sigma
	return b.Height * math.Exp(-0.5*z*z)
}

// Sample evaluates the band at each position.
func (b Band) Sample(positions []float64) []float64 {
	out := make([]float64, len(positions))
	b.SampleInto(out, positions)
	return out
}

// SampleInto writes the band's intensity at positions into dst.
func (b Band) SampleInto(dst, positions []float64) {
	for i, x := range positions {
		dst[i] = b.At(x)
	}
}

// Saturated reports whether the band peak exceeds threshold.
func (b Band) Saturated(threshold float64) bool {
	return b.Height > threshold
}

// Threshold returns the saturation level for an exposure in [0, 1].
//
// Exposure 0 places the threshold at the brightest peak so nothing clips.
// Exposure 1 places it at the weakest peak so every brighter band clips.
// Values between interpolate on a log scale.
func Threshold(exposure float64, heights []float64) (float64, error) {
	if !(exposure >= 0 && exposure <= 1) {
		return 0, simerr.Invalid("exposure", exposure, "must be in [0, 1]")
	}
	hmin, hmax := math.Inf(1), 0.0
	for _, h := range heights {
		if !(h > 0) {
			continue
		}
		hmin = math.Min(hmin, h)
		hmax = math.Max(hmax, h)
	}
	if hmax == 0 {
		return 0, simerr.New(simerr.EmptyGel, "no band with positive intensity")
	}
	switch exposure {
	case 0:
		return hmax, nil
	case 1:
		return hmin, nil
	}
	return math.Pow(hmax, 1-exposure) * math.Pow(hmin, exposure), nil
}

// Clip caps every value of curve at threshold, in place.
func Clip(curve []float64, threshold float64) {
	for i, v := range curve {
		if v > threshold {
			curve[i] = threshold
		}
	}
}

// Positions returns n evenly spaced sample points covering [0, length].
func Positions(length float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		return out
	}
	step := length / float64(n-1)
	for i := range out {
		out[i] = float64(i) * step
	}
	return out
}
