package store

import (
	"github.com/roach88/gelsim/internal/gel"
	"github.com/roach88/gelsim/internal/quantity"
)

// Conditions are the physical gel settings a run used.
type Conditions struct {
	AgarosePct float64  `json:"agarose_pct"`
	FieldVcm   float64  `json:"field_v_cm"`
	LengthCm   float64  `json:"length_cm"`
	Resolution int      `json:"resolution"`
	Lanes      []string `json:"lanes"`
}

// CanonicalValue implements canon.Marshaler.
func (c Conditions) CanonicalValue() any {
	lanes := c.Lanes
	if lanes == nil {
		lanes = []string{}
	}
	return map[string]any{
		"agarose_pct": c.AgarosePct,
		"field_v_cm":  c.FieldVcm,
		"length_cm":   c.LengthCm,
		"resolution":  c.Resolution,
		"lanes":       lanes,
	}
}

// Run is one archived gel run.
type Run struct {
	ID             string     `json:"id"`
	Seq            int64      `json:"seq"`
	Fingerprint    string     `json:"fingerprint"`
	Source         string     `json:"source"`
	Conditions     Conditions `json:"conditions"`
	StopReason     string     `json:"stop_reason"`
	ElapsedSeconds float64    `json:"elapsed_seconds"`
	Exposure       float64    `json:"exposure"`
	Threshold      float64    `json:"threshold"`
	Bands          []Band     `json:"bands"`
}

// Band is one archived fragment band.
type Band struct {
	Lane       int     `json:"lane"`
	Idx        int     `json:"idx"`
	LaneName   string  `json:"lane_name"`
	Name       string  `json:"name"`
	BP         int     `json:"bp"`
	Topology   string  `json:"topology"`
	DistanceCm float64 `json:"distance_cm"`
	MassNg     float64 `json:"mass_ng"`
	Peak       float64 `json:"peak"`
	Saturated  bool    `json:"saturated"`
}

// RunFromResult flattens a rendered gel into an archive record.
// Seq is assigned by WriteRun.
func RunFromResult(res *gel.Result, source string) Run {
	cfg := res.Config()
	agarose, _ := cfg.Agarose.In(quantity.Percent)
	field, _ := cfg.Field.In(quantity.VoltPerCentimeter)
	length, _ := cfg.Length.In(quantity.Centimeter)
	names := res.LaneNames()

	bands := []Band{}
	for i, lane := range res.Bands {
		for j, b := range lane {
			dist, _ := b.Distance.In(quantity.Centimeter)
			mass, _ := b.Mass.In(quantity.Nanogram)
			bands = append(bands, Band{
				Lane:       i,
				Idx:        j,
				LaneName:   names[i],
				Name:       b.Name,
				BP:         b.Length,
				Topology:   b.Topology.String(),
				DistanceCm: dist,
				MassNg:     mass,
				Peak:       b.Peak,
				Saturated:  b.Saturated,
			})
		}
	}

	elapsed, _ := res.Elapsed.In(quantity.Second)
	return Run{
		ID:          res.RunID,
		Fingerprint: res.Fingerprint,
		Source:      source,
		Conditions: Conditions{
			AgarosePct: agarose,
			FieldVcm:   field,
			LengthCm:   length,
			Resolution: cfg.Resolution,
			Lanes:      names,
		},
		StopReason:     string(res.StopReason),
		ElapsedSeconds: elapsed,
		Exposure:       res.Exposure,
		Threshold:      res.Threshold,
		Bands:          bands,
	}
}
