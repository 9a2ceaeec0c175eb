// Package migration computes how fast a DNA fragment travels through an
// agarose gel.
//
// Mobility follows the Ferguson relation, where the log of mobility falls
// linearly with gel concentration and the retardation coefficient grows with
// fragment length. Large fragments reptate and saturate at high fields, which
// is modeled as a length-dependent saturation field Es(L):
//
//	rate = μ(L, C) × E / (1 + E/Es(L))
//
// The functions are pure and safe for concurrent use.
package migration

import (
	"math"

	"github.com/roach88/gelsim/internal/fragment"
	"github.com/roach88/gelsim/internal/quantity"
	"github.com/roach88/gelsim/internal/simerr"
)

// Params are the empirical constants of the model.
type Params struct {
	FreeMobility           float64 `mapstructure:"free_mobility" yaml:"free_mobility"`                     // cm²/(V·s)
	RetardationCoefficient float64 `mapstructure:"retardation_coefficient" yaml:"retardation_coefficient"` // per % agarose
	RetardationExponent    float64 `mapstructure:"retardation_exponent" yaml:"retardation_exponent"`
	SaturationField        float64 `mapstructure:"saturation_field" yaml:"saturation_field"`   // V/cm
	SaturationLength       float64 `mapstructure:"saturation_length" yaml:"saturation_length"` // bp
	SaturationExponent     float64 `mapstructure:"saturation_exponent" yaml:"saturation_exponent"`
	CircularFactor         float64 `mapstructure:"circular_factor" yaml:"circular_factor"`
}

// DefaultParams returns the stock constants.
func DefaultParams() Params {
	return Params{
		FreeMobility:           3.5e-4,
		RetardationCoefficient: 0.2,
		RetardationExponent:    0.25,
		SaturationField:        40,
		SaturationLength:       1000,
		SaturationExponent:     0.5,
		CircularFactor:         0.7,
	}
}

// Validate checks that every constant is usable.
func (p Params) Validate() error {
	checks := []struct {
		name  string
		value float64
	}{
		{"free_mobility", p.FreeMobility},
		{"retardation_coefficient", p.RetardationCoefficient},
		{"retardation_exponent", p.RetardationExponent},
		{"saturation_field", p.SaturationField},
		{"saturation_length", p.SaturationLength},
		{"saturation_exponent", p.SaturationExponent},
		{"circular_factor", p.CircularFactor},
	}
	for _, c := range checks {
		if !(c.value > 0) || math.IsInf(c.value, 0) {
			return simerr.Invalid(c.name, c.value, "must be positive")
		}
	}
	return nil
}

// Rate is a migration velocity in cm/s.
type Rate float64

// Over returns the distance covered in time t, in centimeters.
func (r Rate) Over(t quantity.Quantity) (quantity.Quantity, error) {
	s, err := t.In(quantity.Second)
	if err != nil {
		return quantity.Quantity{}, err
	}
	return quantity.New(float64(r)*s, quantity.Centimeter), nil
}

// Model evaluates migration rates with fixed Params.
type Model struct {
	Params Params
}

// New returns a Model with p, or an error if p is invalid.
func New(p Params) (*Model, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Model{Params: p}, nil
}

// Default returns a Model with DefaultParams.
func Default() *Model {
	return &Model{Params: DefaultParams()}
}

// EffectiveLength is the linear-equivalent length used for mobility.
func (m *Model) EffectiveLength(bp int, topo fragment.Topology) float64 {
	l := float64(bp)
	if topo == fragment.Circular {
		l *= m.Params.CircularFactor
	}
	return l
}

// Mobility returns μ in cm²/(V·s) for an effective length and agarose %.
func (m *Model) Mobility(length, agarosePct float64) float64 {
	kr := m.Params.RetardationCoefficient * math.Pow(length, m.Params.RetardationExponent)
	return m.Params.FreeMobility * math.Exp(-kr*agarosePct)
}

// SaturationField returns Es(L) in V/cm.
func (m *Model) SaturationField(length float64) float64 {
	return m.Params.SaturationField * math.Pow(m.Params.SaturationLength/length, m.Params.SaturationExponent)
}

// Rate returns the migration velocity of a fragment.
func (m *Model) Rate(bp int, topo fragment.Topology, agarose, field quantity.Quantity) (Rate, error) {
	if bp <= 0 {
		return 0, simerr.Invalid("bp", bp, "must be positive")
	}
	c, err := agarose.In(quantity.Percent)
	if err != nil {
		return 0, err
	}
	if !(c > 0) {
		return 0, simerr.Invalid("agarose", agarose, "must be positive")
	}
	e, err := field.In(quantity.VoltPerCentimeter)
	if err != nil {
		return 0, err
	}
	if e < 0 || math.IsNaN(e) {
		return 0, simerr.Invalid("field", field, "must be non-negative")
	}

	l := m.EffectiveLength(bp, topo)
	mu := m.Mobility(l, c)
	return Rate(mu * e / (1 + e/m.SaturationField(l))), nil
}

// TimeToReach returns how long the fastest of rates needs to travel
// fraction × gelLength.
func TimeToReach(fraction float64, gelLength quantity.Quantity, rates ...Rate) (quantity.Quantity, error) {
	if !(fraction > 0 && fraction <= 1) {
		return quantity.Quantity{}, simerr.Invalid("till_len", fraction, "must be in (0, 1]")
	}
	cm, err := gelLength.In(quantity.Centimeter)
	if err != nil {
		return quantity.Quantity{}, err
	}
	if !(cm > 0) {
		return quantity.Quantity{}, simerr.Invalid("length", gelLength, "must be positive")
	}
	if len(rates) == 0 {
		return quantity.Quantity{}, simerr.New(simerr.EmptyGel, "no fragments to migrate")
	}

	fastest := Rate(0)
	for _, r := range rates {
		if r > fastest {
			fastest = r
		}
	}
	if fastest <= 0 {
		return quantity.Quantity{}, simerr.Invalid("field", 0, "gives zero migration rate")
	}
	return quantity.New(fraction*cm/float64(fastest), quantity.Second), nil
}
