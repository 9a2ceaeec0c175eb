package quantity

import (
	"github.com/roach88/gelsim/internal/simerr"
)

// Vector is a sequence of magnitudes sharing one unit.
type Vector struct {
	Values []float64
	Unit   Unit
}

// NewVector creates a Vector. The values slice is copied.
func NewVector(u Unit, values ...float64) Vector {
	vs := make([]float64, len(values))
	copy(vs, values)
	return Vector{Values: vs, Unit: u}
}

// Len returns the number of elements.
func (v Vector) Len() int { return len(v.Values) }

// At returns element i as a Quantity.
func (v Vector) At(i int) Quantity { return New(v.Values[i], v.Unit) }

// To converts every element into unit u.
func (v Vector) To(u Unit) (Vector, error) {
	f, err := v.Unit.factorTo(u)
	if err != nil {
		return Vector{}, err
	}
	out := make([]float64, len(v.Values))
	for i, x := range v.Values {
		out[i] = x * f
	}
	return Vector{Values: out, Unit: u}, nil
}

// In returns the magnitudes expressed in unit u.
func (v Vector) In(u Unit) ([]float64, error) {
	c, err := v.To(u)
	if err != nil {
		return nil, err
	}
	return c.Values, nil
}

// Add returns the element-wise sum in v's unit.
func (v Vector) Add(o Vector) (Vector, error) {
	if len(v.Values) != len(o.Values) {
		return Vector{}, simerr.New(simerr.ShapeMismatch, "cannot add vectors of length %d and %d", len(v.Values), len(o.Values))
	}
	ov, err := o.In(v.Unit)
	if err != nil {
		return Vector{}, err
	}
	out := make([]float64, len(v.Values))
	for i := range v.Values {
		out[i] = v.Values[i] + ov[i]
	}
	return Vector{Values: out, Unit: v.Unit}, nil
}

// Scale multiplies every element by f.
func (v Vector) Scale(f float64) Vector {
	out := make([]float64, len(v.Values))
	for i, x := range v.Values {
		out[i] = x * f
	}
	return Vector{Values: out, Unit: v.Unit}
}

// Sum returns the total of all elements.
func (v Vector) Sum() Quantity {
	total := 0.0
	for _, x := range v.Values {
		total += x
	}
	return New(total, v.Unit)
}

// Quantities expands v into individual quantities.
func (v Vector) Quantities() []Quantity {
	out := make([]Quantity, len(v.Values))
	for i, x := range v.Values {
		out[i] = New(x, v.Unit)
	}
	return out
}
