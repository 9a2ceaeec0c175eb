// Package ladder holds the weight-standard reference table.
//
// A Table is read-only after construction. The process builds one at start
// (Default) and passes it explicitly to whatever needs ladder lookups.
package ladder

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/gelsim/internal/simerr"
)

//go:embed ladders.yaml
var defaultLadders []byte

// Entry is one named weight standard.
type Entry struct {
	Name          string
	Description   string
	Sizes         []int     // bp, in table order
	MassFractions []float64 // positive, sum to 1
}

// Table maps ladder names to entries.
type Table struct {
	entries map[string]Entry
}

type fileFormat struct {
	Ladders []rawEntry `yaml:"ladders"`
}

type rawEntry struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Sizes       []int     `yaml:"sizes"`
	MassesNG    []float64 `yaml:"masses_ng"`
}

// Load parses a ladder YAML document. Unknown fields are rejected.
func Load(r io.Reader) (*Table, error) {
	var f fileFormat
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse ladder table: %w", err)
	}

	t := &Table{entries: make(map[string]Entry, len(f.Ladders))}
	for i, raw := range f.Ladders {
		e, err := raw.toEntry()
		if err != nil {
			return nil, fmt.Errorf("ladders[%d]: %w", i, err)
		}
		if _, dup := t.entries[e.Name]; dup {
			return nil, fmt.Errorf("ladders[%d]: duplicate name %q", i, e.Name)
		}
		t.entries[e.Name] = e
	}
	return t, nil
}

// Default parses the embedded table.
func Default() (*Table, error) {
	return Load(bytes.NewReader(defaultLadders))
}

func (r rawEntry) toEntry() (Entry, error) {
	if r.Name == "" {
		return Entry{}, fmt.Errorf("name is required")
	}
	if len(r.Sizes) == 0 {
		return Entry{}, fmt.Errorf("%s: sizes must be non-empty", r.Name)
	}
	if len(r.Sizes) != len(r.MassesNG) {
		return Entry{}, simerr.New(simerr.ShapeMismatch, "%s: %d sizes but %d masses", r.Name, len(r.Sizes), len(r.MassesNG))
	}

	total := 0.0
	for i := range r.Sizes {
		if r.Sizes[i] <= 0 {
			return Entry{}, simerr.Invalid("sizes", r.Sizes[i], "must be positive")
		}
		if r.MassesNG[i] <= 0 {
			return Entry{}, simerr.Invalid("masses_ng", r.MassesNG[i], "must be positive")
		}
		total += r.MassesNG[i]
	}

	fractions := make([]float64, len(r.MassesNG))
	for i, m := range r.MassesNG {
		fractions[i] = m / total
	}
	sizes := make([]int, len(r.Sizes))
	copy(sizes, r.Sizes)

	return Entry{
		Name:          r.Name,
		Description:   r.Description,
		Sizes:         sizes,
		MassFractions: fractions,
	}, nil
}

// Lookup returns the named entry or a NotFound error.
// The returned slices are copies.
func (t *Table) Lookup(name string) (Entry, error) {
	e, ok := t.entries[name]
	if !ok {
		return Entry{}, simerr.New(simerr.NotFound, "weight standard %q not found", name).With("name", name)
	}
	sizes := make([]int, len(e.Sizes))
	copy(sizes, e.Sizes)
	fractions := make([]float64, len(e.MassFractions))
	copy(fractions, e.MassFractions)
	e.Sizes, e.MassFractions = sizes, fractions
	return e, nil
}

// Names returns all ladder names in sorted order.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.entries))
	for n := range t.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of entries.
func (t *Table) Len() int { return len(t.entries) }
