// Package quantity provides typed physical quantities with exact unit
// conversion over a closed table of units.
//
// A Quantity pairs a magnitude with a Unit. Units belong to exactly one
// Dimension (mass, amount, length, time, concentration, field strength,
// sequence length). Arithmetic or conversion across dimensions fails with a
// simerr.DimensionMismatch error; within a dimension conversion multiplies by
// a fixed factor. Vector applies the same semantics element-wise.
package quantity

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/gelsim/internal/simerr"
)

// Quantity is a magnitude with a unit. The zero value has no unit and is
// rejected by every operation that needs one.
type Quantity struct {
	Value float64
	Unit  Unit
}

// New creates a Quantity.
func New(v float64, u Unit) Quantity {
	return Quantity{Value: v, Unit: u}
}

var quantityPattern = regexp.MustCompile(`^\s*([-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?)\s*(.*?)\s*$`)

// Parse reads strings such as "100 ng", "5V/cm", "1%" or "1.5 kb".
// A unit is required; use ParseDefault to accept bare numbers.
func Parse(s string) (Quantity, error) {
	return parse(s, 0)
}

// ParseDefault is like Parse but bare numbers take unit def.
func ParseDefault(s string, def Unit) (Quantity, error) {
	return parse(s, def)
}

func parse(s string, def Unit) (Quantity, error) {
	m := quantityPattern.FindStringSubmatch(s)
	if m == nil {
		return Quantity{}, simerr.Invalid("quantity", s, "is not a number followed by a unit")
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Quantity{}, simerr.Invalid("quantity", s, "has an unreadable magnitude")
	}
	if m[2] == "" {
		if !def.Valid() {
			return Quantity{}, simerr.Invalid("quantity", s, "has no unit")
		}
		return New(v, def), nil
	}
	u, err := ParseUnit(m[2])
	if err != nil {
		return Quantity{}, err
	}
	return New(v, u), nil
}

// MustParse is like Parse but panics on error.
// Use only in tests or for compile-time constants.
func MustParse(s string) Quantity {
	q, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return q
}

// Dimension returns the dimension of q's unit.
func (q Quantity) Dimension() Dimension { return q.Unit.Dimension() }

// To converts q into unit u of the same dimension.
func (q Quantity) To(u Unit) (Quantity, error) {
	f, err := q.Unit.factorTo(u)
	if err != nil {
		return Quantity{}, err
	}
	return New(q.Value*f, u), nil
}

// In returns q's magnitude expressed in unit u.
func (q Quantity) In(u Unit) (float64, error) {
	c, err := q.To(u)
	if err != nil {
		return 0, err
	}
	return c.Value, nil
}

// Require returns a DimensionMismatch error unless q has dimension d.
func (q Quantity) Require(d Dimension) error {
	if q.Dimension() != d {
		return simerr.New(simerr.DimensionMismatch, "expected %s, got %s", d, q).
			With("expected", d.String()).
			With("unit", q.Unit.String())
	}
	return nil
}

// Add returns q + o in q's unit.
func (q Quantity) Add(o Quantity) (Quantity, error) {
	ov, err := o.In(q.Unit)
	if err != nil {
		return Quantity{}, err
	}
	return New(q.Value+ov, q.Unit), nil
}

// Sub returns q - o in q's unit.
func (q Quantity) Sub(o Quantity) (Quantity, error) {
	ov, err := o.In(q.Unit)
	if err != nil {
		return Quantity{}, err
	}
	return New(q.Value-ov, q.Unit), nil
}

// Scale multiplies q by a dimensionless factor.
func (q Quantity) Scale(f float64) Quantity { return New(q.Value*f, q.Unit) }

// Div divides q by a dimensionless divisor.
func (q Quantity) Div(d float64) Quantity { return New(q.Value/d, q.Unit) }

// Ratio returns the dimensionless q / o.
func (q Quantity) Ratio(o Quantity) (float64, error) {
	ov, err := o.In(q.Unit)
	if err != nil {
		return 0, err
	}
	return q.Value / ov, nil
}

// Compare returns -1, 0 or +1 as q is less than, equal to or greater than o.
func (q Quantity) Compare(o Quantity) (int, error) {
	ov, err := o.In(q.Unit)
	if err != nil {
		return 0, err
	}
	switch {
	case q.Value < ov:
		return -1, nil
	case q.Value > ov:
		return 1, nil
	}
	return 0, nil
}

// IsFinite reports whether q's magnitude is neither NaN nor infinite.
func (q Quantity) IsFinite() bool {
	return !math.IsNaN(q.Value) && !math.IsInf(q.Value, 0)
}

func (q Quantity) String() string {
	var b strings.Builder
	b.WriteString(strconv.FormatFloat(q.Value, 'g', -1, 64))
	if q.Unit == Percent {
		b.WriteString("%")
		return b.String()
	}
	b.WriteByte(' ')
	b.WriteString(q.Unit.String())
	return b.String()
}
