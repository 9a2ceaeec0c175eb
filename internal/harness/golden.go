package harness

import (
	"context"
	"math"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/gelsim/internal/canon"
	"github.com/roach88/gelsim/internal/store"
)

// Snapshot is the golden-file view of a run. Distances and masses are
// rounded to 0.01 and elapsed time to whole seconds, so that the last bits
// of floating point do not churn golden files.
type Snapshot struct {
	ScenarioName string
	Run          store.Run
}

// CanonicalValue implements canon.Marshaler.
func (s Snapshot) CanonicalValue() any {
	lanes := make([]any, len(s.Run.Conditions.Lanes))
	saturated := 0
	for i, name := range s.Run.Conditions.Lanes {
		bands := []any{}
		for _, b := range s.Run.Bands {
			if b.Lane != i {
				continue
			}
			if b.Saturated {
				saturated++
			}
			bands = append(bands, map[string]any{
				"name":        b.Name,
				"bp":          b.BP,
				"topology":    b.Topology,
				"distance_cm": round(b.DistanceCm, 100),
				"mass_ng":     round(b.MassNg, 100),
				"saturated":   b.Saturated,
			})
		}
		lanes[i] = map[string]any{"name": name, "bands": bands}
	}

	return map[string]any{
		"scenario_name":   s.ScenarioName,
		"run_id":          s.Run.ID,
		"stop_reason":     s.Run.StopReason,
		"elapsed_seconds": math.Round(s.Run.ElapsedSeconds),
		"saturated":       saturated,
		"lanes":           lanes,
	}
}

func round(v, scale float64) float64 {
	return math.Round(v*scale) / scale
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := canon.Marshal(Snapshot{ScenarioName: scenarioName, Run: result.Run})
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
