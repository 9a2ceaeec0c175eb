package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/gelsim/internal/gel"
	"github.com/roach88/gelsim/internal/gelspec"
	"github.com/roach88/gelsim/internal/quantity"
)

// Scenario is one gel simulation with expectations about its outcome.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Gel is the path to a CUE gel definition, relative to the scenario file.
	Gel string `yaml:"gel"`

	// RunID fixes the run ID for golden comparison.
	// If empty, defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`

	// Run overrides the gel definition's run settings.
	Run *RunSettings `yaml:"run,omitempty"`

	// Assertions validate the archived run.
	Assertions []Assertion `yaml:"assertions"`
}

// RunSettings are scenario-level run overrides. Unset fields keep the
// definition's (or the default) value.
type RunSettings struct {
	TillLen  *float64 `yaml:"till_len,omitempty"`
	TillTime string   `yaml:"till_time,omitempty"` // e.g. "30 min"; bare numbers are minutes
	Exposure *float64 `yaml:"exposure,omitempty"`
}

// overrides converts s to gelspec overrides.
func (s *RunSettings) overrides() (gelspec.RunOverrides, error) {
	var o gelspec.RunOverrides
	if s == nil {
		return o, nil
	}
	o.TillLen = s.TillLen
	o.Exposure = s.Exposure
	if s.TillTime != "" {
		q, err := quantity.ParseDefault(s.TillTime, quantity.Minute)
		if err != nil {
			return o, fmt.Errorf("till_time: %w", err)
		}
		o.TillTime = &q
	}
	return o, nil
}

// params layers the definition's run block and the scenario's run block
// over the defaults.
func (s *Scenario) params(def *gelspec.Definition) (gel.RunParams, error) {
	p := def.Run.Apply(gel.DefaultRunParams())
	o, err := s.Run.overrides()
	if err != nil {
		return gel.RunParams{}, err
	}
	return o.Apply(p), nil
}

// Assertion validates one property of the archived run.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Expect is the expected stop reason (stop_reason).
	Expect string `yaml:"expect,omitempty"`

	// Lane names a lane (band_order, lane_mass). Empty means every lane
	// for band_order.
	Lane string `yaml:"lane,omitempty"`

	// Mass is the expected lane mass, e.g. "500 ng" (lane_mass).
	Mass string `yaml:"mass,omitempty"`

	// Tolerance is the relative tolerance for lane_mass.
	Tolerance float64 `yaml:"tolerance,omitempty"`

	// Count is the expected count (lane_count, saturated_count).
	Count *int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertStopReason     = "stop_reason"
	AssertLaneCount      = "lane_count"
	AssertBandOrder      = "band_order"
	AssertLaneMass       = "lane_mass"
	AssertSaturatedCount = "saturated_count"
)

// GelNotFoundError is returned when a scenario references a missing gel file.
type GelNotFoundError struct {
	Scenario     string
	GelPath      string
	ResolvedPath string
}

func (e *GelNotFoundError) Error() string {
	return fmt.Sprintf("scenario %q references gel file %q which does not exist (resolved to: %s)",
		e.Scenario, e.GelPath, e.ResolvedPath)
}

// LoadScenario reads and parses a scenario YAML file, resolving the gel path
// relative to the file. Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	raw := scenario.Gel
	if raw != "" && !filepath.IsAbs(raw) {
		scenario.Gel = filepath.Join(filepath.Dir(path), raw)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if _, err := os.Stat(scenario.Gel); os.IsNotExist(err) {
		return nil, &GelNotFoundError{Scenario: scenario.Name, GelPath: raw, ResolvedPath: scenario.Gel}
	}
	return &scenario, nil
}

// LoadScenarios loads every .yaml file in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	out := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		out = append(out, s)
	}
	return out, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Gel == "" {
		return fmt.Errorf("gel is required")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if _, err := s.Run.overrides(); err != nil {
		return fmt.Errorf("run.%w", err)
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertStopReason:
		if a.Expect != string(gel.StopDistance) && a.Expect != string(gel.StopTime) {
			return fmt.Errorf("assertions[%d]: expect must be %q or %q for stop_reason", index, gel.StopDistance, gel.StopTime)
		}
	case AssertLaneCount, AssertSaturatedCount:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for %s", index, a.Type)
		}
		if *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertBandOrder:
	case AssertLaneMass:
		if a.Lane == "" {
			return fmt.Errorf("assertions[%d]: lane is required for lane_mass", index)
		}
		q, err := quantity.ParseDefault(a.Mass, quantity.Nanogram)
		if err != nil {
			return fmt.Errorf("assertions[%d]: mass: %w", index, err)
		}
		if err := q.Require(quantity.Mass); err != nil {
			return fmt.Errorf("assertions[%d]: mass: %w", index, err)
		}
		if a.Tolerance < 0 {
			return fmt.Errorf("assertions[%d]: tolerance must be non-negative", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
