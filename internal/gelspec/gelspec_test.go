package gelspec

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gelsim/internal/fragment"
	"github.com/roach88/gelsim/internal/gel"
	"github.com/roach88/gelsim/internal/ladder"
	"github.com/roach88/gelsim/internal/quantity"
	"github.com/roach88/gelsim/internal/simerr"
)

func table(t *testing.T) *ladder.Table {
	t.Helper()
	tb, err := ladder.Default()
	require.NoError(t, err)
	return tb
}

func TestLoadFile_AllLaneKinds(t *testing.T) {
	def, err := LoadFile(filepath.Join("testdata", "basic.cue"), table(t))
	require.NoError(t, err)

	cfg := def.Config
	assert.Equal(t, quantity.New(1.2, quantity.Percent), cfg.Agarose)
	assert.Equal(t, quantity.New(6, quantity.VoltPerCentimeter), cfg.Field)
	assert.Equal(t, quantity.New(8, quantity.Centimeter), cfg.Length)
	assert.Zero(t, cfg.Resolution)
	require.Len(t, cfg.Lanes, 5)

	assert.Equal(t, "ladder", cfg.Lanes[0].Name)
	assert.Equal(t, 14, cfg.Lanes[0].Len())
	assert.InDelta(t, 500, cfg.Lanes[0].TotalMass().Value, 1e-9)

	assert.InDeltaSlice(t, []float64{15.38, 30.77, 153.85}, cfg.Lanes[1].Masses().Values, 0.01)

	assert.Equal(t, []int{3000, 1500}, cfg.Lanes[2].Sizes())
	assert.InDeltaSlice(t, []float64{100, 100}, cfg.Lanes[2].Masses().Values, 1e-9)

	assert.Equal(t, fragment.Circular, cfg.Lanes[3].Fragments[0].Topology)
	assert.Equal(t, quantity.New(0.05, quantity.Picomole), cfg.Lanes[3].Fragments[0].Amount)

	assert.Equal(t, "lane 5", cfg.Lanes[4].Name)
	assert.Equal(t, fragment.DefaultRandomAmount, cfg.Lanes[4].Fragments[1].Amount)

	require.NotNil(t, def.Run.TillTime)
	assert.Equal(t, quantity.New(45, quantity.Minute), *def.Run.TillTime)
	require.NotNil(t, def.Run.Exposure)
	assert.Equal(t, 0.3, *def.Run.Exposure)
	assert.Nil(t, def.Run.TillLen)

	p := def.Run.Apply(gel.DefaultRunParams())
	assert.Equal(t, 0.75, p.TillLen)
	assert.Equal(t, 0.3, p.Exposure)
}

func TestLoadFile_RandomLaneIsReproducible(t *testing.T) {
	a, err := LoadFile(filepath.Join("testdata", "basic.cue"), table(t))
	require.NoError(t, err)
	b, err := LoadFile(filepath.Join("testdata", "basic.cue"), table(t))
	require.NoError(t, err)
	assert.Equal(t, a.Config.Lanes[4], b.Config.Lanes[4])
}

func TestLoadDir_UnifiesPackage(t *testing.T) {
	def, err := LoadDir(filepath.Join("testdata", "split"), table(t))
	require.NoError(t, err)

	assert.Equal(t, quantity.New(0.8, quantity.Percent), def.Config.Agarose)
	assert.InDelta(t, 250, def.Config.Lanes[0].TotalMass().Value, 1e-9)
	require.NotNil(t, def.Run.TillLen)
	assert.Equal(t, 0.5, *def.Run.TillLen)
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
		code  simerr.Code
	}{
		{"missing gel", `run: {}`, "gel", ""},
		{"missing lanes", `gel: {}`, "gel.lanes", ""},
		{"unknown ladder", `gel: lanes: [{ladder: "nope"}]`, "gel.lanes[0].ladder", simerr.NotFound},
		{"shape mismatch", `gel: lanes: [{sizes: [1, 2], quantities: [1, 2, 3]}]`, "gel.lanes[0]", simerr.ShapeMismatch},
		{"bad unit", `gel: lanes: [{sizes: [100], quantities: ["5 cm"]}]`, "gel.lanes[0]", simerr.DimensionMismatch},
		{"no quantity", `gel: lanes: [{sizes: [100]}]`, "gel.lanes[0]", ""},
		{"bad lane", `gel: lanes: [{name: "x"}]`, "gel.lanes[0]", ""},
		{"bad topology", `gel: lanes: [{sizes: [100], quantities: [1], topology: "knotted"}]`, "gel.lanes[0].topology", ""},
		{"empty gel", `gel: lanes: []`, "gel", simerr.EmptyGel},
		{"bad agarose", `gel: {agarose: "1 V/cm", lanes: [{sizes: [100], total: 1}]}`, "gel", simerr.DimensionMismatch},
		{"bad exposure", `gel: lanes: [{sizes: [100], total: 1}]
run: exposure: 3`, "run", simerr.InvalidParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileBytes([]byte(tt.src), "inline.cue", table(t))
			require.Error(t, err)

			var ce *CompileError
			require.True(t, errors.As(err, &ce), "got %T: %v", err, err)
			assert.Equal(t, tt.field, ce.Field)
			if tt.code != "" {
				assert.Equal(t, tt.code, simerr.CodeOf(err))
			}
		})
	}
}

func TestCompile_CUESyntaxErrorHasPosition(t *testing.T) {
	_, err := CompileBytes([]byte("gel: {\n  lanes: [\n"), "broken.cue", table(t))
	require.Error(t, err)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.True(t, ce.Pos.IsValid())
	assert.Contains(t, err.Error(), "broken.cue")
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.cue"), table(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read gel definition")
}
