package gel

import (
	"strconv"

	"github.com/roach88/gelsim/internal/fragment"
	"github.com/roach88/gelsim/internal/quantity"
	"github.com/roach88/gelsim/internal/simerr"
)

// Default gel conditions.
var (
	DefaultAgarose = quantity.New(1, quantity.Percent)
	DefaultField   = quantity.New(5, quantity.VoltPerCentimeter)
	DefaultLength  = quantity.New(10, quantity.Centimeter)
)

// DefaultResolution is the number of sample positions along each lane.
const DefaultResolution = 400

// Config describes the physical gel and its lanes.
// Zero-valued fields take the package defaults.
type Config struct {
	Agarose    quantity.Quantity // concentration, e.g. 1 %
	Field      quantity.Quantity // field strength, e.g. 5 V/cm
	Length     quantity.Quantity // gel length, e.g. 10 cm
	Resolution int
	Lanes      []fragment.Sample
}

// DefaultConfig returns the default conditions with the given lanes.
func DefaultConfig(lanes ...fragment.Sample) Config {
	return Config{
		Agarose:    DefaultAgarose,
		Field:      DefaultField,
		Length:     DefaultLength,
		Resolution: DefaultResolution,
		Lanes:      lanes,
	}
}

// withDefaults returns a deep copy of c with zero fields filled in.
func (c Config) withDefaults() Config {
	out := c
	if isZero(out.Agarose) {
		out.Agarose = DefaultAgarose
	}
	if isZero(out.Field) {
		out.Field = DefaultField
	}
	if isZero(out.Length) {
		out.Length = DefaultLength
	}
	if out.Resolution == 0 {
		out.Resolution = DefaultResolution
	}
	out.Lanes = make([]fragment.Sample, len(c.Lanes))
	for i, l := range c.Lanes {
		out.Lanes[i] = l.Clone()
	}
	return out
}

func isZero(q quantity.Quantity) bool {
	return q == quantity.Quantity{}
}

// Validate checks units and ranges.
func (c Config) Validate() error {
	if err := c.Agarose.Require(quantity.Concentration); err != nil {
		return err
	}
	if err := c.Field.Require(quantity.FieldStrength); err != nil {
		return err
	}
	if err := c.Length.Require(quantity.Length); err != nil {
		return err
	}
	if !(c.Agarose.Value > 0) || !c.Agarose.IsFinite() {
		return simerr.Invalid("agarose", c.Agarose, "must be positive")
	}
	if c.Field.Value < 0 || !c.Field.IsFinite() {
		return simerr.Invalid("field", c.Field, "must be non-negative")
	}
	if !(c.Length.Value > 0) || !c.Length.IsFinite() {
		return simerr.Invalid("length", c.Length, "must be positive")
	}
	if c.Resolution < 2 {
		return simerr.Invalid("resolution", c.Resolution, "must be at least 2")
	}

	fragments := 0
	for i, lane := range c.Lanes {
		for j, f := range lane.Fragments {
			if f.Length <= 0 {
				return simerr.Invalid("length", f.Length, "must be positive").
					With("lane", strconv.Itoa(i)).With("fragment", strconv.Itoa(j))
			}
			if err := f.Amount.Require(quantity.Amount); err != nil {
				return err
			}
			if !(f.Amount.Value > 0) || !f.Amount.IsFinite() {
				return simerr.Invalid("amount", f.Amount, "must be positive").
					With("lane", strconv.Itoa(i)).With("fragment", strconv.Itoa(j))
			}
			fragments++
		}
	}
	if fragments == 0 {
		return simerr.New(simerr.EmptyGel, "gel has %d lanes and no fragments", len(c.Lanes))
	}
	return nil
}

// FragmentCount returns the number of fragments across all lanes.
func (c Config) FragmentCount() int {
	n := 0
	for _, l := range c.Lanes {
		n += l.Len()
	}
	return n
}

// CanonicalValue returns the configuration as plain values for hashing.
func (c Config) CanonicalValue() any {
	lanes := make([]any, len(c.Lanes))
	for i, l := range c.Lanes {
		frags := make([]any, len(l.Fragments))
		for j, f := range l.Fragments {
			pmol, _ := f.Amount.In(quantity.Picomole)
			frags[j] = map[string]any{
				"bp":          f.Length,
				"topology":    f.Topology.String(),
				"amount_pmol": pmol,
			}
		}
		lanes[i] = map[string]any{"name": l.Name, "fragments": frags}
	}
	agarose, _ := c.Agarose.In(quantity.Percent)
	field, _ := c.Field.In(quantity.VoltPerCentimeter)
	length, _ := c.Length.In(quantity.Centimeter)
	return map[string]any{
		"agarose_pct": agarose,
		"field_v_cm":  field,
		"length_cm":   length,
		"resolution":  c.Resolution,
		"lanes":       lanes,
	}
}
