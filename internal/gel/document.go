package gel

import "github.com/roach88/gelsim/internal/quantity"

// Document is the JSON form of a Result.
type Document struct {
	RunID          string         `json:"run_id"`
	Fingerprint    string         `json:"fingerprint"`
	StopReason     StopReason     `json:"stop_reason"`
	ElapsedSeconds float64        `json:"elapsed_seconds"`
	Exposure       float64        `json:"exposure"`
	Threshold      float64        `json:"threshold"`
	Scale          float64        `json:"scale"`
	Agarose        string         `json:"agarose"`
	Field          string         `json:"field"`
	Length         string         `json:"length"`
	PositionsCm    []float64      `json:"positions_cm"`
	Lanes          []LaneDocument `json:"lanes"`
}

// LaneDocument is one lane of a Document.
type LaneDocument struct {
	Name      string         `json:"name"`
	Intensity []float64      `json:"intensity,omitempty"`
	Bands     []BandDocument `json:"bands"`
}

// BandDocument is one band of a LaneDocument.
type BandDocument struct {
	Name       string  `json:"name"`
	BP         int     `json:"bp"`
	Topology   string  `json:"topology"`
	DistanceCm float64 `json:"distance_cm"`
	MassNg     float64 `json:"mass_ng"`
	Peak       float64 `json:"peak"`
	Saturated  bool    `json:"saturated"`
	OnGel      bool    `json:"on_gel"`
}

// Document builds the JSON form. withField controls whether the per-lane
// intensity profile is included.
func (r *Result) Document(withField bool) Document {
	cfg := r.cfg
	names := r.LaneNames()
	lanes := make([]LaneDocument, len(r.Bands))
	for i, lane := range r.Bands {
		bands := make([]BandDocument, len(lane))
		for j, b := range lane {
			dist, _ := b.Distance.In(quantity.Centimeter)
			mass, _ := b.Mass.In(quantity.Nanogram)
			bands[j] = BandDocument{
				Name:       b.Name,
				BP:         b.Length,
				Topology:   b.Topology.String(),
				DistanceCm: dist,
				MassNg:     mass,
				Peak:       b.Peak,
				Saturated:  b.Saturated,
				OnGel:      b.OnGel,
			}
		}
		lanes[i] = LaneDocument{Name: names[i], Bands: bands}
		if withField {
			lanes[i].Intensity = append([]float64(nil), r.Field[i]...)
		}
	}

	elapsed, _ := r.Elapsed.In(quantity.Second)
	doc := Document{
		RunID:          r.RunID,
		Fingerprint:    r.Fingerprint,
		StopReason:     r.StopReason,
		ElapsedSeconds: elapsed,
		Exposure:       r.Exposure,
		Threshold:      r.Threshold,
		Scale:          r.Scale,
		Agarose:        cfg.Agarose.String(),
		Field:          cfg.Field.String(),
		Length:         cfg.Length.String(),
		Lanes:          lanes,
	}
	if withField {
		doc.PositionsCm = append([]float64(nil), r.Positions...)
	}
	return doc
}
