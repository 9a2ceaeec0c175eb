// Package export writes rendered gels to blob storage.
//
// Three drivers are available: a local filesystem tree, process memory
// (tests) and any S3-compatible service. Blobs are create-only; writing an
// existing key fails.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/roach88/gelsim/internal/gel"
)

// Driver identifies a blob storage backend.
type Driver string

const (
	DriverFilesystem Driver = "fs"     // local filesystem
	DriverS3         Driver = "s3"     // S3 / MinIO compatible
	DriverMemory     Driver = "memory" // in-memory (tests)
)

// Info describes a stored blob.
type Info struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size_bytes"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// PutOptions specifies optional parameters for Put.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// Store is the blob store used for exports.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]Info, error)
	Driver() Driver
}

// ErrExists is returned by Put when the key is already taken.
var ErrExists = errors.New("blob already exists")

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("blob not found")

// Config selects and configures a driver.
type Config struct {
	Driver Driver
	Root   string   // fs: directory
	S3     S3Config // s3: bucket and endpoint
}

// ParseTarget parses a CLI export target: "fs:<dir>", "s3:<bucket>" or
// "memory".
func ParseTarget(target string) (Config, error) {
	driver, arg, _ := strings.Cut(target, ":")
	switch Driver(driver) {
	case DriverFilesystem:
		if arg == "" {
			return Config{}, fmt.Errorf("export target %q: directory required", target)
		}
		return Config{Driver: DriverFilesystem, Root: arg}, nil
	case DriverS3:
		if arg == "" {
			return Config{}, fmt.Errorf("export target %q: bucket required", target)
		}
		return Config{Driver: DriverS3, S3: S3Config{Bucket: arg}}, nil
	case DriverMemory:
		return Config{Driver: DriverMemory}, nil
	}
	return Config{}, fmt.Errorf("unknown export driver %q", driver)
}

// Open constructs the configured store.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case DriverFilesystem, "":
		return NewFilesystem(cfg.Root)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	case DriverMemory:
		return NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown export driver %q", cfg.Driver)
}

// ResultKey is the blob key for a run.
func ResultKey(runID string) string {
	return "runs/" + runID + ".json"
}

// WriteResult stores the full result document, intensity field included,
// under ResultKey.
func WriteResult(ctx context.Context, s Store, res *gel.Result) (Info, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res.Document(true)); err != nil {
		return Info{}, fmt.Errorf("encode result %s: %w", res.RunID, err)
	}
	info, err := s.Put(ctx, ResultKey(res.RunID), bytes.NewReader(buf.Bytes()), PutOptions{
		ContentType: "application/json",
		Metadata: map[string]string{
			"fingerprint": res.Fingerprint,
			"stop-reason": string(res.StopReason),
		},
	})
	if err != nil {
		return Info{}, fmt.Errorf("export %s: %w", res.RunID, err)
	}
	return info, nil
}

// ReadResult loads a document written by WriteResult.
func ReadResult(ctx context.Context, s Store, runID string) (gel.Document, error) {
	_, rc, err := s.Get(ctx, ResultKey(runID))
	if err != nil {
		return gel.Document{}, fmt.Errorf("read export %s: %w", runID, err)
	}
	defer rc.Close()

	var doc gel.Document
	if err := json.NewDecoder(rc).Decode(&doc); err != nil {
		return gel.Document{}, fmt.Errorf("decode export %s: %w", runID, err)
	}
	return doc, nil
}
