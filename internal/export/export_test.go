package export

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gelsim/internal/fragment"
	"github.com/roach88/gelsim/internal/gel"
	"github.com/roach88/gelsim/internal/quantity"
)

func simulate(t *testing.T, runID string) *gel.Result {
	t.Helper()
	lane, err := fragment.BuildSample([]int{3000, 1500}, []quantity.Quantity{
		quantity.New(100, quantity.Nanogram), quantity.New(100, quantity.Nanogram),
	})
	require.NoError(t, err)
	lane.Name = "pcr"

	res, err := gel.Simulate(context.Background(), gel.DefaultConfig(lane), gel.DefaultRunParams(),
		gel.WithIDGenerator(gel.NewFixedGenerator(runID)))
	require.NoError(t, err)
	return res
}

func stores(t *testing.T) map[string]Store {
	fsStore, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)
	return map[string]Store{
		"fs":     fsStore,
		"memory": NewMemory(),
		"s3":     newMockS3Store(t),
	}
}

func TestStores_PutGetList(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			info, err := s.Put(ctx, "runs/a.json", strings.NewReader(`{"a":1}`), PutOptions{ContentType: "application/json"})
			require.NoError(t, err)
			assert.Equal(t, "runs/a.json", info.Key)
			assert.Equal(t, int64(7), info.Size)

			_, err = s.Put(ctx, "other/b.json", strings.NewReader(`{}`), PutOptions{})
			require.NoError(t, err)

			_, rc, err := s.Get(ctx, "runs/a.json")
			require.NoError(t, err)
			body, err := io.ReadAll(rc)
			require.NoError(t, rc.Close())
			require.NoError(t, err)
			assert.Equal(t, `{"a":1}`, string(body))

			list, err := s.List(ctx, "runs/")
			require.NoError(t, err)
			require.Len(t, list, 1)
			assert.Equal(t, "runs/a.json", list[0].Key)

			all, err := s.List(ctx, "")
			require.NoError(t, err)
			assert.Len(t, all, 2)

			_, err = s.Put(ctx, "runs/a.json", strings.NewReader(`{}`), PutOptions{})
			assert.True(t, errors.Is(err, ErrExists), "got %v", err)
		})
	}
}

func TestWriteResult_RoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			res := simulate(t, "run-"+name)

			info, err := WriteResult(ctx, s, res)
			require.NoError(t, err)
			assert.Equal(t, "runs/run-"+name+".json", info.Key)

			doc, err := ReadResult(ctx, s, res.RunID)
			require.NoError(t, err)
			assert.Equal(t, res.Document(true), doc)
		})
	}
}

func TestMemory_GetMissing(t *testing.T) {
	_, _, err := NewMemory().Get(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestFilesystem_GetMissingAndTraversal(t *testing.T) {
	s, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)

	_, _, err = s.Get(context.Background(), "nope.json")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.Put(context.Background(), "../escape.json", strings.NewReader("x"), PutOptions{})
	assert.Error(t, err)
	_, err = s.Put(context.Background(), "/abs.json", strings.NewReader("x"), PutOptions{})
	assert.Error(t, err)
}

func TestParseTarget(t *testing.T) {
	cfg, err := ParseTarget("fs:out/gels")
	require.NoError(t, err)
	assert.Equal(t, Config{Driver: DriverFilesystem, Root: "out/gels"}, cfg)

	cfg, err = ParseTarget("s3:my-bucket")
	require.NoError(t, err)
	assert.Equal(t, DriverS3, cfg.Driver)
	assert.Equal(t, "my-bucket", cfg.S3.Bucket)

	cfg, err = ParseTarget("memory")
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.Driver)

	for _, bad := range []string{"fs:", "s3", "ftp:host"} {
		_, err := ParseTarget(bad)
		assert.Error(t, err, bad)
	}
}

func TestOpen(t *testing.T) {
	s, err := Open(context.Background(), Config{Driver: DriverMemory})
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, s.Driver())

	s, err = Open(context.Background(), Config{Driver: DriverFilesystem, Root: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, DriverFilesystem, s.Driver())

	_, err = Open(context.Background(), Config{Driver: "tape"})
	assert.Error(t, err)

	_, err = NewS3(context.Background(), S3Config{})
	assert.Error(t, err)
}
