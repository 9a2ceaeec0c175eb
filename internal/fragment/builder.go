package fragment

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/roach88/gelsim/internal/ladder"
	"github.com/roach88/gelsim/internal/quantity"
	"github.com/roach88/gelsim/internal/simerr"
)

// DefaultLadderMass is the total mass loaded for a weight standard when none is given.
var DefaultLadderMass = quantity.New(500, quantity.Nanogram)

// DefaultRandomAmount is the molar amount given to every placeholder fragment.
var DefaultRandomAmount = quantity.New(0.05, quantity.Picomole)

// BuildSample creates a sample from fragment sizes and quantities.
//
// With one quantity per size, each quantity is that fragment's mass or molar
// amount. With a single quantity for several sizes the sample is treated as a
// digest: a mass is a total split in proportion to length, and an amount is
// the molar amount of the parent molecule, which every fragment inherits.
// All fragments are linear.
func BuildSample(sizes []int, quantities []quantity.Quantity) (Sample, error) {
	if err := validateSizes(sizes); err != nil {
		return Sample{}, err
	}

	if len(quantities) == 1 && len(sizes) > 1 {
		q := quantities[0]
		switch q.Dimension() {
		case quantity.Mass:
			return BuildSampleFromTotal(sizes, q)
		case quantity.Amount:
			return buildEach(sizes, repeat(q, len(sizes)), Linear)
		}
		return Sample{}, q.Require(quantity.Mass)
	}

	if len(quantities) != len(sizes) {
		return Sample{}, simerr.New(simerr.ShapeMismatch, "%d sizes but %d quantities", len(sizes), len(quantities)).
			With("sizes", fmt.Sprint(len(sizes))).
			With("quantities", fmt.Sprint(len(quantities)))
	}
	return buildEach(sizes, quantities, Linear)
}

// BuildSampleWithTopology is BuildSample with one quantity per fragment and an
// explicit topology for every fragment.
func BuildSampleWithTopology(sizes []int, quantities []quantity.Quantity, topo Topology) (Sample, error) {
	if err := validateSizes(sizes); err != nil {
		return Sample{}, err
	}
	if len(quantities) != len(sizes) {
		return Sample{}, simerr.New(simerr.ShapeMismatch, "%d sizes but %d quantities", len(sizes), len(quantities))
	}
	return buildEach(sizes, quantities, topo)
}

// BuildSampleFromTotal distributes a total mass across fragments in
// proportion to their length.
func BuildSampleFromTotal(sizes []int, total quantity.Quantity) (Sample, error) {
	if err := validateSizes(sizes); err != nil {
		return Sample{}, err
	}
	if err := total.Require(quantity.Mass); err != nil {
		return Sample{}, err
	}
	if err := positive("total", total); err != nil {
		return Sample{}, err
	}

	sum := 0
	for _, s := range sizes {
		sum += s
	}
	masses := make([]quantity.Quantity, len(sizes))
	for i, s := range sizes {
		masses[i] = total.Scale(float64(s) / float64(sum))
	}
	return buildEach(sizes, masses, Linear)
}

// SizesFrom converts a sequence-length vector (bp, kb, Mb) to whole base pairs.
func SizesFrom(v quantity.Vector) ([]int, error) {
	bp, err := v.In(quantity.BasePair)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(bp))
	for i, x := range bp {
		out[i] = int(math.Round(x))
	}
	return out, nil
}

// BuildWeightStandardSample loads the named ladder from table with the given
// total mass (DefaultLadderMass when nil). Fragments are ordered by
// descending size.
func BuildWeightStandardSample(table *ladder.Table, name string, total *quantity.Quantity) (Sample, error) {
	entry, err := table.Lookup(name)
	if err != nil {
		return Sample{}, err
	}

	load := DefaultLadderMass
	if total != nil {
		load = *total
	}
	if err := load.Require(quantity.Mass); err != nil {
		return Sample{}, err
	}
	if err := positive("total", load); err != nil {
		return Sample{}, err
	}

	masses := make([]quantity.Quantity, len(entry.Sizes))
	for i, f := range entry.MassFractions {
		masses[i] = load.Scale(f)
	}
	s, err := buildEach(entry.Sizes, masses, Linear)
	if err != nil {
		return Sample{}, err
	}
	sort.SliceStable(s.Fragments, func(i, j int) bool {
		return s.Fragments[i].Length > s.Fragments[j].Length
	})
	s.Name = entry.Name
	return s, nil
}

// RandomOption configures RandomSample.
type RandomOption func(*randomOptions)

type randomOptions struct {
	seed    uint64
	seeded  bool
	nameLen int
}

// WithSeed makes the placeholder sequences, and therefore the fragment
// names, reproducible.
func WithSeed(seed uint64) RandomOption {
	return func(o *randomOptions) {
		o.seed = seed
		o.seeded = true
	}
}

// RandomSample builds placeholder fragments for demonstration lanes. Each
// fragment carries a random ACGT sequence of its length, reduced to a short
// hash in its name, and every fragment receives DefaultRandomAmount.
func RandomSample(sizes []int, opts ...RandomOption) (Sample, error) {
	o := randomOptions{nameLen: 8}
	for _, opt := range opts {
		opt(&o)
	}
	if err := validateSizes(sizes); err != nil {
		return Sample{}, err
	}
	s, err := buildEach(sizes, repeat(DefaultRandomAmount, len(sizes)), Linear)
	if err != nil {
		return Sample{}, err
	}

	seed := o.seed
	if !o.seeded {
		seed = rand.Uint64()
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	for i := range s.Fragments {
		seq := placeholderSequence(rng, sizes[i])
		sum := sha256.Sum256(seq)
		s.Fragments[i].Name = fmt.Sprintf("random_%d_%s", i+1, hex.EncodeToString(sum[:])[:o.nameLen])
	}
	return s, nil
}

func placeholderSequence(rng *rand.Rand, n int) []byte {
	const bases = "ACGT"
	seq := make([]byte, n)
	for i := range seq {
		seq[i] = bases[rng.IntN(len(bases))]
	}
	return seq
}

func buildEach(sizes []int, quantities []quantity.Quantity, topo Topology) (Sample, error) {
	frags := make([]Fragment, len(sizes))
	for i, bp := range sizes {
		q := quantities[i]
		if err := positive("quantity", q); err != nil {
			return Sample{}, err
		}
		var amount quantity.Quantity
		switch q.Dimension() {
		case quantity.Mass:
			a, err := amountForMass(q, bp, topo)
			if err != nil {
				return Sample{}, err
			}
			amount = a
		case quantity.Amount:
			amount = q
		default:
			return Sample{}, simerr.New(simerr.DimensionMismatch, "fragment %d: quantity %s is neither a mass nor an amount", i, q).
				With("unit", q.Unit.String())
		}
		frags[i] = Fragment{
			Name:     fmt.Sprintf("%dbp", bp),
			Length:   bp,
			Topology: topo,
			Amount:   amount,
		}
	}
	return Sample{Fragments: frags}, nil
}

func validateSizes(sizes []int) error {
	if len(sizes) == 0 {
		return simerr.Invalid("sizes", "[]", "must be non-empty")
	}
	for _, s := range sizes {
		if s <= 0 {
			return simerr.Invalid("sizes", s, "must be positive")
		}
	}
	return nil
}

func positive(name string, q quantity.Quantity) error {
	if !q.IsFinite() || q.Value <= 0 {
		return simerr.Invalid(name, q, "must be positive")
	}
	return nil
}

func repeat(q quantity.Quantity, n int) []quantity.Quantity {
	out := make([]quantity.Quantity, n)
	for i := range out {
		out[i] = q
	}
	return out
}
