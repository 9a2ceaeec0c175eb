// Package gelspec compiles CUE gel definitions into gel configurations.
//
// A definition looks like:
//
//	gel: {
//		agarose: "1%"
//		field:   "5 V/cm"
//		length:  "10 cm"
//		lanes: [
//			{name: "ladder", ladder: "1kb_GeneRuler"},
//			{name: "digest", sizes: [500, 1000, 5000], total: "200 ng"},
//			{name: "pcr", sizes: [3000, 1500], quantities: ["100 ng", "100 ng"]},
//			{name: "plasmid", sizes: [4000], quantities: ["0.05 pmol"], topology: "circular"},
//			{name: "demo", random: [800, 1600], seed: 1},
//		]
//	}
//	run: {till_len: 0.75, till_time: "45 min", exposure: 0.5}
//
// Bare numbers are base pairs for sizes and nanograms for quantities.
package gelspec

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/gelsim/internal/fragment"
	"github.com/roach88/gelsim/internal/gel"
	"github.com/roach88/gelsim/internal/ladder"
	"github.com/roach88/gelsim/internal/quantity"
)

// RunOverrides are the run parameters a definition sets. Nil fields are unset.
type RunOverrides struct {
	TillLen  *float64
	TillTime *quantity.Quantity
	Exposure *float64
}

// Apply returns p with every set override copied in.
func (o RunOverrides) Apply(p gel.RunParams) gel.RunParams {
	if o.TillLen != nil {
		p.TillLen = *o.TillLen
	}
	if o.TillTime != nil {
		t := *o.TillTime
		p.TillTime = &t
	}
	if o.Exposure != nil {
		p.Exposure = *o.Exposure
	}
	return p
}

// Definition is a compiled gel definition.
type Definition struct {
	Source string
	Config gel.Config
	Run    RunOverrides
}

// LoadFile compiles a single .cue file.
func LoadFile(path string, table *ladder.Table) (*Definition, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gel definition: %w", err)
	}
	def, err := CompileBytes(src, path, table)
	if err != nil {
		return nil, err
	}
	return def, nil
}

// LoadDir compiles the CUE package in dir, unifying all of its files.
func LoadDir(dir string, table *ladder.Table) (*Definition, error) {
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances in %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("load %s: %w", dir, inst.Err)
	}
	v := cuecontext.New().BuildInstance(inst)
	def, err := Compile(v, table)
	if err != nil {
		return nil, err
	}
	def.Source = dir
	return def, nil
}

// CompileBytes compiles CUE source; filename is used in positions only.
func CompileBytes(src []byte, filename string, table *ladder.Table) (*Definition, error) {
	v := cuecontext.New().CompileBytes(src, cue.Filename(filename))
	def, err := Compile(v, table)
	if err != nil {
		return nil, err
	}
	def.Source = filename
	return def, nil
}

// Compile turns a CUE value with a gel field into a Definition.
// Ladder lanes are resolved against table.
func Compile(v cue.Value, table *ladder.Table) (*Definition, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	g := v.LookupPath(cue.ParsePath("gel"))
	if !g.Exists() {
		return nil, &CompileError{Field: "gel", Message: "gel is required", Pos: v.Pos()}
	}

	cfg := gel.Config{}
	var err error
	if cfg.Agarose, err = optionalQuantity(g, "agarose", quantity.Percent, "gel"); err != nil {
		return nil, err
	}
	if cfg.Field, err = optionalQuantity(g, "field", quantity.VoltPerCentimeter, "gel"); err != nil {
		return nil, err
	}
	if cfg.Length, err = optionalQuantity(g, "length", quantity.Centimeter, "gel"); err != nil {
		return nil, err
	}
	if r := g.LookupPath(cue.ParsePath("resolution")); r.Exists() {
		n, err := r.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		cfg.Resolution = int(n)
	}

	cfg.Lanes, err = compileLanes(g, table)
	if err != nil {
		return nil, err
	}

	run, err := compileRun(v)
	if err != nil {
		return nil, err
	}

	// Range and unit checks belong to the controller; run them here so that
	// validate reports them without simulating.
	if _, err := gel.New(cfg); err != nil {
		return nil, fieldError("gel", g.Pos(), err)
	}
	if err := run.Apply(gel.DefaultRunParams()).Validate(); err != nil {
		return nil, fieldError("run", v.LookupPath(cue.ParsePath("run")).Pos(), err)
	}

	return &Definition{Config: cfg, Run: run}, nil
}

func compileLanes(g cue.Value, table *ladder.Table) ([]fragment.Sample, error) {
	lanesVal := g.LookupPath(cue.ParsePath("lanes"))
	if !lanesVal.Exists() {
		return nil, &CompileError{Field: "gel.lanes", Message: "lanes is required", Pos: g.Pos()}
	}
	iter, err := lanesVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	lanes := []fragment.Sample{}
	for i := 0; iter.Next(); i++ {
		field := fmt.Sprintf("gel.lanes[%d]", i)
		s, err := compileLane(iter.Value(), field, table)
		if err != nil {
			return nil, err
		}
		if s.Name == "" {
			s.Name = fmt.Sprintf("lane %d", i+1)
		}
		lanes = append(lanes, s)
	}
	return lanes, nil
}

func compileLane(v cue.Value, field string, table *ladder.Table) (fragment.Sample, error) {
	name, err := optionalString(v, "name")
	if err != nil {
		return fragment.Sample{}, err
	}

	var (
		s    fragment.Sample
		kind string
	)
	switch {
	case v.LookupPath(cue.ParsePath("ladder")).Exists():
		kind = "ladder"
		s, err = compileLadderLane(v, field, table)
	case v.LookupPath(cue.ParsePath("random")).Exists():
		kind = "random"
		s, err = compileRandomLane(v, field)
	case v.LookupPath(cue.ParsePath("sizes")).Exists():
		kind = "sizes"
		s, err = compileSizesLane(v, field)
	default:
		return fragment.Sample{}, &CompileError{
			Field:   field,
			Message: "lane needs one of ladder, sizes or random",
			Pos:     v.Pos(),
		}
	}
	if err != nil {
		return fragment.Sample{}, err
	}
	if name != "" || kind != "ladder" {
		s.Name = name
	}
	return s, nil
}

func compileLadderLane(v cue.Value, field string, table *ladder.Table) (fragment.Sample, error) {
	lv := v.LookupPath(cue.ParsePath("ladder"))
	name, err := lv.String()
	if err != nil {
		return fragment.Sample{}, formatCUEError(err)
	}

	var total *quantity.Quantity
	if tv := v.LookupPath(cue.ParsePath("total")); tv.Exists() {
		q, err := quantityValue(tv, quantity.Nanogram, field+".total")
		if err != nil {
			return fragment.Sample{}, err
		}
		total = &q
	}

	s, err := fragment.BuildWeightStandardSample(table, name, total)
	if err != nil {
		return fragment.Sample{}, fieldError(field+".ladder", lv.Pos(), err)
	}
	return s, nil
}

func compileRandomLane(v cue.Value, field string) (fragment.Sample, error) {
	rv := v.LookupPath(cue.ParsePath("random"))
	sizes, err := sizeList(rv, field+".random")
	if err != nil {
		return fragment.Sample{}, err
	}

	var opts []fragment.RandomOption
	if sv := v.LookupPath(cue.ParsePath("seed")); sv.Exists() {
		seed, err := sv.Uint64()
		if err != nil {
			return fragment.Sample{}, formatCUEError(err)
		}
		opts = append(opts, fragment.WithSeed(seed))
	}

	s, err := fragment.RandomSample(sizes, opts...)
	if err != nil {
		return fragment.Sample{}, fieldError(field+".random", rv.Pos(), err)
	}
	return s, nil
}

func compileSizesLane(v cue.Value, field string) (fragment.Sample, error) {
	sv := v.LookupPath(cue.ParsePath("sizes"))
	sizes, err := sizeList(sv, field+".sizes")
	if err != nil {
		return fragment.Sample{}, err
	}

	topoName, err := optionalString(v, "topology")
	if err != nil {
		return fragment.Sample{}, err
	}
	topo, err := fragment.ParseTopology(topoName)
	if err != nil {
		return fragment.Sample{}, &CompileError{
			Field:   field + ".topology",
			Message: err.Error(),
			Pos:     v.LookupPath(cue.ParsePath("topology")).Pos(),
		}
	}

	tv := v.LookupPath(cue.ParsePath("total"))
	qv := v.LookupPath(cue.ParsePath("quantities"))
	switch {
	case tv.Exists() && qv.Exists():
		return fragment.Sample{}, &CompileError{
			Field:   field,
			Message: "total and quantities are mutually exclusive",
			Pos:     v.Pos(),
		}
	case tv.Exists():
		total, err := quantityValue(tv, quantity.Nanogram, field+".total")
		if err != nil {
			return fragment.Sample{}, err
		}
		if topo != fragment.Linear {
			return fragment.Sample{}, &CompileError{
				Field:   field + ".topology",
				Message: "total applies to linear digests only",
				Pos:     v.LookupPath(cue.ParsePath("topology")).Pos(),
			}
		}
		s, err := fragment.BuildSample(sizes, []quantity.Quantity{total})
		if err != nil {
			return fragment.Sample{}, fieldError(field, v.Pos(), err)
		}
		return s, nil
	case qv.Exists():
		qs, err := quantityList(qv, field+".quantities")
		if err != nil {
			return fragment.Sample{}, err
		}
		var s fragment.Sample
		if topo == fragment.Linear {
			s, err = fragment.BuildSample(sizes, qs)
		} else {
			s, err = fragment.BuildSampleWithTopology(sizes, qs, topo)
		}
		if err != nil {
			return fragment.Sample{}, fieldError(field, v.Pos(), err)
		}
		return s, nil
	}
	return fragment.Sample{}, &CompileError{
		Field:   field,
		Message: "sizes need total or quantities",
		Pos:     v.Pos(),
	}
}

func compileRun(v cue.Value) (RunOverrides, error) {
	var o RunOverrides
	rv := v.LookupPath(cue.ParsePath("run"))
	if !rv.Exists() {
		return o, nil
	}
	if f := rv.LookupPath(cue.ParsePath("till_len")); f.Exists() {
		x, err := f.Float64()
		if err != nil {
			return o, formatCUEError(err)
		}
		o.TillLen = &x
	}
	if f := rv.LookupPath(cue.ParsePath("exposure")); f.Exists() {
		x, err := f.Float64()
		if err != nil {
			return o, formatCUEError(err)
		}
		o.Exposure = &x
	}
	if f := rv.LookupPath(cue.ParsePath("till_time")); f.Exists() {
		q, err := quantityValue(f, quantity.Minute, "run.till_time")
		if err != nil {
			return o, err
		}
		o.TillTime = &q
	}
	return o, nil
}

// quantityValue decodes a string with unit, or a bare number in def.
func quantityValue(v cue.Value, def quantity.Unit, field string) (quantity.Quantity, error) {
	switch v.IncompleteKind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return quantity.Quantity{}, formatCUEError(err)
		}
		q, err := quantity.ParseDefault(s, def)
		if err != nil {
			return quantity.Quantity{}, fieldError(field, v.Pos(), err)
		}
		return q, nil
	case cue.IntKind, cue.FloatKind, cue.NumberKind:
		x, err := v.Float64()
		if err != nil {
			return quantity.Quantity{}, formatCUEError(err)
		}
		return quantity.New(x, def), nil
	}
	return quantity.Quantity{}, &CompileError{
		Field:   field,
		Message: "must be a number or a string with unit",
		Pos:     v.Pos(),
	}
}

func optionalQuantity(parent cue.Value, name string, def quantity.Unit, prefix string) (quantity.Quantity, error) {
	v := parent.LookupPath(cue.ParsePath(name))
	if !v.Exists() {
		return quantity.Quantity{}, nil
	}
	return quantityValue(v, def, prefix+"."+name)
}

func optionalString(parent cue.Value, name string) (string, error) {
	v := parent.LookupPath(cue.ParsePath(name))
	if !v.Exists() {
		return "", nil
	}
	s, err := v.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func quantityList(v cue.Value, field string) ([]quantity.Quantity, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	out := []quantity.Quantity{}
	for i := 0; iter.Next(); i++ {
		q, err := quantityValue(iter.Value(), quantity.Nanogram, fmt.Sprintf("%s[%d]", field, i))
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

// sizeList accepts integers in bp or strings such as "1.5 kb".
func sizeList(v cue.Value, field string) ([]int, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	lengths := []float64{}
	for i := 0; iter.Next(); i++ {
		q, err := quantityValue(iter.Value(), quantity.BasePair, fmt.Sprintf("%s[%d]", field, i))
		if err != nil {
			return nil, err
		}
		bp, err := q.In(quantity.BasePair)
		if err != nil {
			return nil, fieldError(fmt.Sprintf("%s[%d]", field, i), iter.Value().Pos(), err)
		}
		lengths = append(lengths, bp)
	}
	return fragment.SizesFrom(quantity.NewVector(quantity.BasePair, lengths...))
}
