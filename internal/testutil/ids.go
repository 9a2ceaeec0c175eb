// Package testutil holds helpers shared by tests and the scenario harness.
package testutil

// FixedIDGenerator returns the same run ID every time.
//
// Golden snapshots embed the run ID, so scenario runs need a stable one.
// Unlike gel.FixedGenerator, which hands out a sequence and panics when it
// runs out, this generator never exhausts.
//
// FixedIDGenerator is stateless and safe for concurrent use.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a generator for id.
// If id is empty, Generate returns "test-run-default".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed ID. Implements gel.IDGenerator.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}
