package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gelsim/internal/export"
	"github.com/roach88/gelsim/internal/gel"
	"github.com/roach88/gelsim/internal/store"
)

var digestGel = filepath.Join("testdata", "digest.cue")

// runCommand builds a run command with fixed run IDs.
func runCommand(format string, ids ...string) *RunOptions {
	return &RunOptions{
		RootOptions: &RootOptions{Format: format},
		IDGenerator: gel.NewFixedGenerator(ids...),
	}
}

func TestRunCommand_Text(t *testing.T) {
	stdout, _, err := executeCommand(t, newRunCommand(runCommand("text", "run-text")), digestGel)
	require.NoError(t, err)

	assert.Contains(t, stdout, "Run run-text")
	assert.Contains(t, stdout, "stopped by distance after 2h48m6s")
	assert.Contains(t, stdout, "LANE")
	assert.Contains(t, stdout, "digest")
	assert.Contains(t, stdout, "5000bp")
	assert.Contains(t, stdout, "saturated")
}

func TestRunCommand_JSON(t *testing.T) {
	stdout, _, err := executeCommand(t, newRunCommand(runCommand("json", "run-json")), digestGel)
	require.NoError(t, err)

	var out RunOutput
	resp := decode(t, stdout, &out)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-json", out.RunID)
	assert.Equal(t, gel.StopDistance, out.StopReason)
	assert.InDelta(t, 10086, out.ElapsedSeconds, 1)
	require.Len(t, out.Lanes, 2)
	assert.Equal(t, "ladder", out.Lanes[0].Name)
	assert.Len(t, out.Lanes[1].Bands, 3)
	assert.Empty(t, out.Lanes[0].Intensity)
	assert.Empty(t, out.PositionsCm)
	assert.Zero(t, out.ArchiveSeq)
}

func TestRunCommand_FlagsOverrideDefinition(t *testing.T) {
	stdout, _, err := executeCommand(t, newRunCommand(runCommand("json", "run-flags")),
		digestGel, "--till-time", "30", "--exposure", "0.2", "--with-field", "--field", "6 V/cm")
	require.NoError(t, err)

	var out RunOutput
	decode(t, stdout, &out)
	assert.Equal(t, gel.StopTime, out.StopReason)
	assert.InDelta(t, 1800, out.ElapsedSeconds, 1e-9)
	assert.Equal(t, 0.2, out.Exposure)
	assert.Equal(t, "6 V/cm", out.Field)
	assert.NotEmpty(t, out.PositionsCm)
	assert.Len(t, out.Lanes[0].Intensity, len(out.PositionsCm))
}

func TestRunCommand_InvalidParameters(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode string
		wantExit int
	}{
		{"exposure out of range", []string{digestGel, "--exposure", "1.5"}, ErrCodeInvalidParam, ExitCommandError},
		{"till_len zero", []string{digestGel, "--till-len", "0"}, ErrCodeInvalidParam, ExitCommandError},
		{"till_time wrong unit", []string{digestGel, "--till-time", "3 cm"}, ErrCodeDimension, ExitCommandError},
		{"missing gel", []string{filepath.Join("testdata", "missing.cue")}, ErrCodeNotFound, ExitCommandError},
		{"unknown ladder", []string{filepath.Join("testdata", "unknown_ladder.cue")}, ErrCodeUnknownLadder, ExitCommandError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := executeCommand(t, newRunCommand(runCommand("json", "run-bad")), tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.wantExit, GetExitCode(err))

			resp := decode(t, stdout, nil)
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestRunCommand_ArchiveThenHistoryAndShow(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")

	stdout, _, err := executeCommand(t, newRunCommand(runCommand("json", "run-a")), digestGel, "--db", db)
	require.NoError(t, err)
	var out RunOutput
	decode(t, stdout, &out)
	assert.Equal(t, int64(1), out.ArchiveSeq)

	_, _, err = executeCommand(t, newRunCommand(runCommand("text", "run-b")), digestGel, "--db", db, "--till-time", "1 h")
	require.NoError(t, err)

	stdout, _, err = execute(t, "history", "--db", db, "--format", "json")
	require.NoError(t, err)
	var runs []RunSummary
	decode(t, stdout, &runs)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-b", runs[0].ID)
	assert.Equal(t, "time", runs[0].StopReason)
	assert.Equal(t, "run-a", runs[1].ID)
	assert.Equal(t, 2, runs[1].Lanes)
	assert.Equal(t, digestGel, runs[1].Source)
	assert.NotEqual(t, runs[0].Fingerprint, runs[1].Fingerprint)

	stdout, _, err = execute(t, "history", "--db", db, "--fingerprint", runs[1].Fingerprint, "--format", "json")
	require.NoError(t, err)
	var byFingerprint []RunSummary
	decode(t, stdout, &byFingerprint)
	require.Len(t, byFingerprint, 1)
	assert.Equal(t, "run-a", byFingerprint[0].ID)

	stdout, _, err = execute(t, "history", "--db", db, "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "run-b")
	assert.NotContains(t, stdout, "run-a")

	stdout, _, err = execute(t, "show", "run-a", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Run run-a (#1)")
	assert.Contains(t, stdout, "stopped by distance")
	assert.Contains(t, stdout, "10000bp")

	stdout, _, err = execute(t, "show", "run-a", "--db", db, "--format", "json")
	require.NoError(t, err)
	var run store.Run
	decode(t, stdout, &run)
	assert.Equal(t, "run-a", run.ID)
	assert.Len(t, run.Bands, 17)
	assert.Equal(t, []string{"ladder", "digest"}, run.Conditions.Lanes)
}

func TestShowCommand_Errors(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	st, err := store.Open(db)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	stdout, _, err := execute(t, "show", "nope", "--db", db, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	resp := decode(t, stdout, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)

	_, _, err = execute(t, "show", "nope", "--db", filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "database not found")

	_, _, err = execute(t, "history")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "db" not set`)

	stdout, _, err = execute(t, "history", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, stdout, "No runs archived.")
}

func TestRunCommand_ExportAndMetrics(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")
	metricsFile := filepath.Join(dir, "gelsim.prom")

	stdout, _, err := executeCommand(t, newRunCommand(runCommand("json", "run-export")),
		digestGel, "--export", "fs:"+outDir, "--metrics-file", metricsFile)
	require.NoError(t, err)

	var out RunOutput
	decode(t, stdout, &out)
	assert.Equal(t, export.ResultKey("run-export"), out.ExportKey)

	fs, err := export.NewFilesystem(outDir)
	require.NoError(t, err)
	doc, err := export.ReadResult(context.Background(), fs, "run-export")
	require.NoError(t, err)
	assert.Equal(t, out.Fingerprint, doc.Fingerprint)
	assert.NotEmpty(t, doc.PositionsCm)

	stdout, _, err = execute(t, "show", "run-export", "--export", "fs:"+outDir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Run run-export (exported)")
	assert.Contains(t, stdout, "stopped by distance after 2h48m6s")
	assert.Contains(t, stdout, "5000bp")

	stdout, _, err = execute(t, "show", "run-export", "--export", "fs:"+outDir, "--format", "json")
	require.NoError(t, err)
	var shown gel.Document
	decode(t, stdout, &shown)
	assert.Equal(t, out.Fingerprint, shown.Fingerprint)
	assert.Len(t, shown.Lanes[0].Intensity, len(shown.PositionsCm))

	stdout, _, err = execute(t, "exports", "fs:"+outDir, "--format", "json")
	require.NoError(t, err)
	var infos []export.Info
	decode(t, stdout, &infos)
	require.Len(t, infos, 1)
	assert.Equal(t, export.ResultKey("run-export"), infos[0].Key)

	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `gelsim_runs_total{stop_reason="distance"} 1`)
	assert.Contains(t, string(prom), "gelsim_fragments_simulated_total 17")
}

func TestShowCommand_ExportErrors(t *testing.T) {
	outDir := t.TempDir()

	stdout, _, err := execute(t, "show", "nope", "--export", "fs:"+outDir, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	resp := decode(t, stdout, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)

	_, _, err = execute(t, "show", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db export")

	_, _, err = execute(t, "show", "nope", "--export", "ftp:host")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	stdout, _, err = execute(t, "exports", "fs:"+outDir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "No exports.")
}

func TestRunCommand_BadExportTarget(t *testing.T) {
	_, _, err := executeCommand(t, newRunCommand(runCommand("text", "x")), digestGel, "--export", "ftp:host")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `unknown export driver "ftp"`)
}

func TestRunCommand_SettingsFile(t *testing.T) {
	settings := filepath.Join(t.TempDir(), "gelsim.yaml")
	require.NoError(t, os.WriteFile(settings, []byte("run:\n  exposure: 0.1\n  till_len: 0.5\n"), 0644))

	stdout, _, err := executeCommand(t, newRunCommand(runCommand("json", "run-settings")),
		digestGel, "--config", settings)
	require.NoError(t, err)

	var out RunOutput
	decode(t, stdout, &out)
	assert.Equal(t, 0.1, out.Exposure)
	assert.InDelta(t, 6724, out.ElapsedSeconds, 1)
}

// syncBuffer is a bytes.Buffer safe for concurrent writers and readers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRunCommand_WatchRerunsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gel.cue")
	src, err := os.ReadFile(digestGel)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, src, 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := newRunCommand(runCommand("json", "watch-1", "watch-2"))
	stdout, stderr := &syncBuffer{}, &syncBuffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs([]string{path, "--watch"})
	cmd.SetContext(ctx)

	done := make(chan error, 1)
	go func() { done <- cmd.Execute() }()

	require.Eventually(t, func() bool {
		return strings.Contains(stderr.String(), "watching for changes")
	}, 5*time.Second, 10*time.Millisecond)
	assert.Contains(t, stdout.String(), `"run_id":"watch-1"`)

	require.NoError(t, os.WriteFile(path, append(src, []byte("\nrun: till_time: \"20 min\"\n")...), 0644))

	require.Eventually(t, func() bool {
		return strings.Contains(stdout.String(), `"run_id":"watch-2"`)
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}
