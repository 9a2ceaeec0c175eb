package harness

import (
	"fmt"
	"math"
	"strings"

	"github.com/roach88/gelsim/internal/quantity"
	"github.com/roach88/gelsim/internal/store"
)

// defaultMassTolerance is the relative tolerance for lane_mass.
const defaultMassTolerance = 1e-6

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Bands    []store.Band // context for debugging; may be empty
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Bands) > 0 {
		fmt.Fprintf(&buf, "\nBands:\n")
		for _, b := range e.Bands {
			fmt.Fprintf(&buf, "  [%s/%d] %s %d bp %.3f cm %.3f ng\n", b.LaneName, b.Idx, b.Name, b.BP, b.DistanceCm, b.MassNg)
		}
	}
	return buf.String()
}

func assertStopReason(run store.Run, a Assertion) error {
	if run.StopReason != a.Expect {
		return &AssertionError{
			Type:     AssertStopReason,
			Expected: a.Expect,
			Actual:   fmt.Sprintf("%s after %.1f s", run.StopReason, run.ElapsedSeconds),
		}
	}
	return nil
}

func assertLaneCount(run store.Run, a Assertion) error {
	if a.Count == nil {
		return fmt.Errorf("lane_count assertion requires count")
	}
	if n := len(run.Conditions.Lanes); n != *a.Count {
		return &AssertionError{
			Type:     AssertLaneCount,
			Expected: fmt.Sprintf("%d lanes", *a.Count),
			Actual:   fmt.Sprintf("%d lanes %v", n, run.Conditions.Lanes),
		}
	}
	return nil
}

// assertBandOrder checks that no fragment travelled further than a shorter
// fragment of the same lane and topology.
func assertBandOrder(run store.Run, a Assertion) error {
	names := run.Conditions.Lanes
	if a.Lane != "" {
		names = []string{a.Lane}
	}

	for _, name := range names {
		bands := lane(run, name)
		if len(bands) == 0 {
			return &AssertionError{
				Type:     AssertBandOrder,
				Expected: fmt.Sprintf("lane %q", name),
				Actual:   "lane not found",
			}
		}
		for i := range bands {
			for j := range bands {
				bi, bj := bands[i], bands[j]
				if bi.Topology != bj.Topology || bi.BP <= bj.BP {
					continue
				}
				if bi.DistanceCm > bj.DistanceCm {
					return &AssertionError{
						Type:     AssertBandOrder,
						Expected: fmt.Sprintf("%d bp no further than %d bp in lane %q", bi.BP, bj.BP, name),
						Actual:   fmt.Sprintf("%.4f cm > %.4f cm", bi.DistanceCm, bj.DistanceCm),
						Bands:    bands,
					}
				}
			}
		}
	}
	return nil
}

func assertLaneMass(run store.Run, a Assertion) error {
	want, err := quantity.ParseDefault(a.Mass, quantity.Nanogram)
	if err != nil {
		return err
	}
	wantNg, err := want.In(quantity.Nanogram)
	if err != nil {
		return err
	}

	bands := lane(run, a.Lane)
	if len(bands) == 0 {
		return &AssertionError{
			Type:     AssertLaneMass,
			Expected: fmt.Sprintf("lane %q", a.Lane),
			Actual:   "lane not found",
		}
	}
	total := 0.0
	for _, b := range bands {
		total += b.MassNg
	}

	tol := a.Tolerance
	if tol == 0 {
		tol = defaultMassTolerance
	}
	if math.Abs(total-wantNg) > tol*math.Abs(wantNg) {
		return &AssertionError{
			Type:     AssertLaneMass,
			Expected: fmt.Sprintf("%g ng in lane %q", wantNg, a.Lane),
			Actual:   fmt.Sprintf("%g ng", total),
			Bands:    bands,
		}
	}
	return nil
}

func assertSaturatedCount(run store.Run, a Assertion) error {
	if a.Count == nil {
		return fmt.Errorf("saturated_count assertion requires count")
	}
	n := 0
	for _, b := range run.Bands {
		if b.Saturated {
			n++
		}
	}
	if n != *a.Count {
		return &AssertionError{
			Type:     AssertSaturatedCount,
			Expected: fmt.Sprintf("%d saturated bands", *a.Count),
			Actual:   fmt.Sprintf("%d saturated bands (threshold %.3f ng/cm)", n, run.Threshold),
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against an archived run and
// returns a message for each failure.
func EvaluateAssertions(run store.Run, assertions []Assertion) []string {
	var errors []string

	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertStopReason:
			err = assertStopReason(run, a)
		case AssertLaneCount:
			err = assertLaneCount(run, a)
		case AssertBandOrder:
			err = assertBandOrder(run, a)
		case AssertLaneMass:
			err = assertLaneMass(run, a)
		case AssertSaturatedCount:
			err = assertSaturatedCount(run, a)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}
		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}
