// Package harness runs gel scenarios against the real run controller.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: ladder_digest
//	description: "What this scenario validates"
//	gel: ../gels/ladder_digest.cue
//	run_id: scenario-ladder-digest
//	run:
//	  till_len: 0.75
//	  till_time: "30 min"
//	  exposure: 0.5
//	assertions:
//	  - type: stop_reason
//	    expect: distance
//	  - type: lane_count
//	    count: 2
//	  - type: band_order
//	    lane: digest
//	  - type: lane_mass
//	    lane: ladder
//	    mass: "500 ng"
//	  - type: saturated_count
//	    count: 4
//
// The gel path is resolved relative to the scenario file. Run settings in
// the scenario override those in the gel definition.
//
// # Assertion Types
//
//   - stop_reason: the bound that ended the run ("distance" or "time")
//   - lane_count: number of lanes on the gel
//   - band_order: within a lane (or every lane when lane is empty), longer
//     fragments travelled no further than shorter ones
//   - lane_mass: total band mass of a lane, within tolerance (relative, default 1e-6)
//   - saturated_count: number of bands brighter than the saturation threshold
//
// # Deterministic Testing
//
// Every scenario runs with a fixed run ID (run_id, or "test-run-default"),
// and its result is archived to a fresh in-memory SQLite store and read back
// before assertions are evaluated. Assertions and golden snapshots therefore
// see exactly what the archive holds.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/ladder_digest.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(ctx, scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
