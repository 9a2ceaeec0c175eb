package store

import (
	"path/filepath"
	"testing"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun creates a run with two lanes of bands.
func createTestRun(id, fingerprint string) Run {
	return Run{
		ID:          id,
		Fingerprint: fingerprint,
		Source:      "test.cue",
		Conditions: Conditions{
			AgarosePct: 1,
			FieldVcm:   5,
			LengthCm:   10,
			Resolution: 400,
			Lanes:      []string{"ladder", "digest"},
		},
		StopReason:     "distance",
		ElapsedSeconds: 10086.3,
		Exposure:       0.5,
		Threshold:      296.1,
		Bands: []Band{
			{Lane: 0, Idx: 0, LaneName: "ladder", Name: "1000bp", BP: 1000, Topology: "linear", DistanceCm: 5.1, MassNg: 60, Peak: 239.4, Saturated: false},
			{Lane: 0, Idx: 1, LaneName: "ladder", Name: "500bp", BP: 500, Topology: "linear", DistanceCm: 6.3, MassNg: 25, Peak: 105.9, Saturated: false},
			{Lane: 1, Idx: 0, LaneName: "digest", Name: "5000bp", BP: 5000, Topology: "linear", DistanceCm: 3.0, MassNg: 153.8, Peak: 538.2, Saturated: true},
		},
	}
}
