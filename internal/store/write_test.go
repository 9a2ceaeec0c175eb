package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRun_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	want := createTestRun("run-1", "fp-a")

	seq, err := s.WriteRun(ctx, want)
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)

	got, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)

	want.Seq = 1
	assert.Equal(t, want, got)
}

func TestWriteRun_AssignsIncreasingSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i, id := range []string{"run-a", "run-b", "run-c"} {
		seq, err := s.WriteRun(ctx, createTestRun(id, "fp"))
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), seq)
	}
}

func TestWriteRun_LookupFailureIsReturned(t *testing.T) {
	s := createTestStore(t)
	_, err := s.DB().Exec(`DROP TABLE runs`)
	require.NoError(t, err)

	_, err = s.WriteRun(context.Background(), createTestRun("run-x", "fp"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookup run-x")
}

func TestWriteRun_CanceledContext(t *testing.T) {
	s := createTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.WriteRun(ctx, createTestRun("run-x", "fp"))
	require.ErrorIs(t, err, context.Canceled)

	runs, err := s.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestWriteRun_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first, err := s.WriteRun(ctx, createTestRun("run-1", "fp"))
	require.NoError(t, err)
	again, err := s.WriteRun(ctx, createTestRun("run-1", "fp"))
	require.NoError(t, err)
	assert.Equal(t, first, again)

	var bands int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM bands WHERE run_id = 'run-1'").Scan(&bands))
	assert.Equal(t, 3, bands)
}

func TestWriteRun_InvalidBandRollsBack(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	run := createTestRun("run-bad", "fp")
	run.Bands[2].Topology = "supercoiled"

	_, err := s.WriteRun(ctx, run)
	require.Error(t, err)

	_, err = s.ReadRun(ctx, "run-bad")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestWriteRun_CascadeDelete(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.WriteRun(ctx, createTestRun("run-1", "fp"))
	require.NoError(t, err)

	_, err = s.db.Exec("DELETE FROM runs WHERE id = 'run-1'")
	require.NoError(t, err)

	var bands int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM bands").Scan(&bands))
	assert.Zero(t, bands)
}
