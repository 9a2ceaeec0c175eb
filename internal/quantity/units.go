package quantity

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/gelsim/internal/simerr"
)

// Dimension is a physical dimension. Units convert only within a dimension.
type Dimension int

const (
	Mass Dimension = iota + 1
	Amount
	Length
	Time
	Concentration
	FieldStrength
	SequenceLength
)

var dimensionNames = map[Dimension]string{
	Mass:           "mass",
	Amount:         "amount",
	Length:         "length",
	Time:           "time",
	Concentration:  "concentration",
	FieldStrength:  "field strength",
	SequenceLength: "sequence length",
}

func (d Dimension) String() string {
	if name, ok := dimensionNames[d]; ok {
		return name
	}
	return fmt.Sprintf("dimension(%d)", int(d))
}

// Unit is a member of the closed unit table below.
// The zero Unit is invalid.
type Unit int

const (
	Gram Unit = iota + 1
	Milligram
	Microgram
	Nanogram
	Picogram

	Mole
	Millimole
	Micromole
	Nanomole
	Picomole
	Femtomole

	Meter
	Centimeter
	Millimeter
	Micrometer

	Second
	Minute
	Hour

	Percent // % w/v, grams per 100 mL
	GramPerLiter
	GramPerMilliliter
	MilligramPerMilliliter

	VoltPerCentimeter
	VoltPerMeter
	VoltPerMillimeter

	BasePair
	Kilobase
	Megabase

	unitCount
)

// unitInfo describes one unit. factor converts a magnitude in this unit into
// the dimension's base unit (g, mol, cm, s, %, V/cm, bp).
type unitInfo struct {
	symbol  string
	dim     Dimension
	factor  float64
	aliases []string
}

var unitTable = [unitCount]unitInfo{
	Gram:      {"g", Mass, 1, []string{"gram", "grams"}},
	Milligram: {"mg", Mass, 1e-3, nil},
	Microgram: {"µg", Mass, 1e-6, []string{"ug", "mcg"}},
	Nanogram:  {"ng", Mass, 1e-9, nil},
	Picogram:  {"pg", Mass, 1e-12, nil},

	Mole:      {"mol", Amount, 1, []string{"mole", "moles"}},
	Millimole: {"mmol", Amount, 1e-3, nil},
	Micromole: {"µmol", Amount, 1e-6, []string{"umol"}},
	Nanomole:  {"nmol", Amount, 1e-9, nil},
	Picomole:  {"pmol", Amount, 1e-12, nil},
	Femtomole: {"fmol", Amount, 1e-15, nil},

	Meter:      {"m", Length, 100, []string{"meter", "meters"}},
	Centimeter: {"cm", Length, 1, nil},
	Millimeter: {"mm", Length, 0.1, nil},
	Micrometer: {"µm", Length, 1e-4, []string{"um"}},

	Second: {"s", Time, 1, []string{"sec", "secs", "second", "seconds"}},
	Minute: {"min", Time, 60, []string{"mins", "minute", "minutes"}},
	Hour:   {"h", Time, 3600, []string{"hr", "hrs", "hour", "hours"}},

	Percent:                {"%", Concentration, 1, []string{"%w/v", "percent"}},
	GramPerLiter:           {"g/L", Concentration, 0.1, nil},
	GramPerMilliliter:      {"g/mL", Concentration, 100, nil},
	MilligramPerMilliliter: {"mg/mL", Concentration, 0.1, nil},

	VoltPerCentimeter: {"V/cm", FieldStrength, 1, nil},
	VoltPerMeter:      {"V/m", FieldStrength, 0.01, nil},
	VoltPerMillimeter: {"V/mm", FieldStrength, 10, nil},

	BasePair: {"bp", SequenceLength, 1, nil},
	Kilobase: {"kb", SequenceLength, 1e3, []string{"kbp"}},
	Megabase: {"Mb", SequenceLength, 1e6, []string{"mbp"}},
}

// symbolIndex maps normalized symbols and aliases to units.
var symbolIndex = buildSymbolIndex()

func buildSymbolIndex() map[string]Unit {
	idx := make(map[string]Unit)
	for u := Gram; u < unitCount; u++ {
		info := unitTable[u]
		idx[normalizeSymbol(info.symbol)] = u
		for _, a := range info.aliases {
			idx[normalizeSymbol(a)] = u
		}
	}
	return idx
}

// normalizeSymbol folds a unit symbol to its lookup key. NFKC maps the micro
// sign (U+00B5) onto Greek mu (U+03BC) so both spellings of "µg" agree.
func normalizeSymbol(s string) string {
	s = norm.NFKC.String(s)
	s = strings.Join(strings.Fields(s), "")
	return strings.ToLower(s)
}

// ParseUnit resolves a unit symbol such as "ng", "µg", "V/cm" or "kb".
func ParseUnit(symbol string) (Unit, error) {
	if u, ok := symbolIndex[normalizeSymbol(symbol)]; ok {
		return u, nil
	}
	return 0, simerr.New(simerr.DimensionMismatch, "unknown unit %q", symbol).With("unit", symbol)
}

// Valid reports whether u is a member of the unit table.
func (u Unit) Valid() bool { return u > 0 && u < unitCount }

// Dimension returns the unit's dimension, or 0 for invalid units.
func (u Unit) Dimension() Dimension {
	if !u.Valid() {
		return 0
	}
	return unitTable[u].dim
}

func (u Unit) String() string {
	if !u.Valid() {
		return fmt.Sprintf("unit(%d)", int(u))
	}
	return unitTable[u].symbol
}

// factorTo returns the multiplier converting magnitudes in u into magnitudes in to.
func (u Unit) factorTo(to Unit) (float64, error) {
	if !u.Valid() || !to.Valid() {
		return 0, simerr.New(simerr.DimensionMismatch, "invalid unit %v -> %v", u, to)
	}
	from, dest := unitTable[u], unitTable[to]
	if from.dim != dest.dim {
		return 0, mismatch(u, to)
	}
	if u == to {
		return 1, nil
	}
	return from.factor / dest.factor, nil
}

func mismatch(a, b Unit) *simerr.Error {
	return simerr.New(simerr.DimensionMismatch, "cannot combine %s (%s) with %s (%s)",
		a, a.Dimension(), b, b.Dimension()).
		With("left", a.String()).
		With("right", b.String())
}
