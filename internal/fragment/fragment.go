// Package fragment models DNA fragments and the samples (lanes) that hold them.
//
// A Fragment stores its molar amount only. Mass is always derived through
// MolecularWeight so that every caller agrees on the same formula.
package fragment

import (
	"fmt"

	"github.com/roach88/gelsim/internal/quantity"
)

// Topology is the shape of a double-stranded molecule.
type Topology int

const (
	Linear Topology = iota
	Circular
)

func (t Topology) String() string {
	if t == Circular {
		return "circular"
	}
	return "linear"
}

// ParseTopology accepts "linear" or "circular" (empty means linear).
func ParseTopology(s string) (Topology, error) {
	switch s {
	case "", "linear":
		return Linear, nil
	case "circular":
		return Circular, nil
	}
	return Linear, fmt.Errorf("unknown topology %q", s)
}

// Average molecular weight contributions in g/mol, from the per-nucleotide
// weights A 313.2, T 304.2, C 289.2, G 329.2 and the 79.0 end term.
const (
	// BasePairWeight is the mean weight of an A·T (617.4) and a G·C (618.4) pair.
	BasePairWeight = 617.9

	// EndWeight is added once for molecules with free ends.
	EndWeight = 79.0
)

// MolecularWeight returns the weight in g/mol of a double-stranded fragment.
// Circular molecules have no free ends and omit EndWeight.
func MolecularWeight(bp int, topo Topology) float64 {
	mw := BasePairWeight * float64(bp)
	if topo == Linear {
		mw += EndWeight
	}
	return mw
}

// Fragment is one double-stranded DNA molecule species in a lane.
type Fragment struct {
	Name     string
	Length   int // bp
	Topology Topology
	Amount   quantity.Quantity // moles
}

// MolecularWeight returns the fragment's weight in g/mol.
func (f Fragment) MolecularWeight() float64 {
	return MolecularWeight(f.Length, f.Topology)
}

// Mass returns the fragment mass in nanograms.
func (f Fragment) Mass() quantity.Quantity {
	mol, err := f.Amount.In(quantity.Mole)
	if err != nil {
		return quantity.New(0, quantity.Nanogram)
	}
	return quantity.New(mol*f.MolecularWeight()*1e9, quantity.Nanogram)
}

// amountForMass converts a mass into the molar amount of a fragment.
func amountForMass(mass quantity.Quantity, bp int, topo Topology) (quantity.Quantity, error) {
	g, err := mass.In(quantity.Gram)
	if err != nil {
		return quantity.Quantity{}, err
	}
	return quantity.New(g/MolecularWeight(bp, topo)*1e12, quantity.Picomole), nil
}

// Sample is the ordered set of fragments loaded into one well.
type Sample struct {
	Name      string
	Fragments []Fragment
}

// Len returns the number of fragments.
func (s Sample) Len() int { return len(s.Fragments) }

// Sizes returns the fragment lengths in bp.
func (s Sample) Sizes() []int {
	out := make([]int, len(s.Fragments))
	for i, f := range s.Fragments {
		out[i] = f.Length
	}
	return out
}

// Masses returns the fragment masses in nanograms.
func (s Sample) Masses() quantity.Vector {
	out := make([]float64, len(s.Fragments))
	for i, f := range s.Fragments {
		out[i] = f.Mass().Value
	}
	return quantity.Vector{Values: out, Unit: quantity.Nanogram}
}

// TotalMass returns the summed fragment mass in nanograms.
func (s Sample) TotalMass() quantity.Quantity {
	return s.Masses().Sum()
}

// Clone returns a deep copy of s.
func (s Sample) Clone() Sample {
	frags := make([]Fragment, len(s.Fragments))
	copy(frags, s.Fragments)
	return Sample{Name: s.Name, Fragments: frags}
}
