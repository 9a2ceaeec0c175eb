package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ReadRun returns a run with its bands ordered by lane, idx.
// A missing run returns an error wrapping sql.ErrNoRows.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, seq, fingerprint, source, conditions, stop_reason, elapsed_seconds, exposure, threshold
		FROM runs
		WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}

	bands, err := s.readBands(ctx, id)
	if err != nil {
		return Run{}, err
	}
	run.Bands = bands
	return run, nil
}

// ListRuns returns the most recent runs without bands, newest first.
// limit <= 0 means no limit. Returns an empty slice (not nil) if none exist.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, fingerprint, source, conditions, stop_reason, elapsed_seconds, exposure, threshold
		FROM runs
		ORDER BY seq DESC, id COLLATE BINARY ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()
	return collectRuns(rows)
}

// RunsByFingerprint returns earlier runs with identical inputs, oldest first.
func (s *Store) RunsByFingerprint(ctx context.Context, fingerprint string) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, fingerprint, source, conditions, stop_reason, elapsed_seconds, exposure, threshold
		FROM runs
		WHERE fingerprint = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("query runs by fingerprint: %w", err)
	}
	defer rows.Close()
	return collectRuns(rows)
}

func collectRuns(rows *sql.Rows) ([]Run, error) {
	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		run.Bands = []Band{}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

func (s *Store) readBands(ctx context.Context, runID string) ([]Band, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT lane, idx, lane_name, name, bp, topology, distance_cm, mass_ng, peak, saturated
		FROM bands
		WHERE run_id = ?
		ORDER BY lane ASC, idx ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query bands: %w", err)
	}
	defer rows.Close()

	bands := []Band{}
	for rows.Next() {
		var (
			b         Band
			saturated int
		)
		if err := rows.Scan(&b.Lane, &b.Idx, &b.LaneName, &b.Name, &b.BP, &b.Topology,
			&b.DistanceCm, &b.MassNg, &b.Peak, &saturated); err != nil {
			return nil, fmt.Errorf("scan band: %w", err)
		}
		b.Saturated = saturated != 0
		bands = append(bands, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bands: %w", err)
	}
	return bands, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run        Run
		conditions string
	)
	err := row.Scan(&run.ID, &run.Seq, &run.Fingerprint, &run.Source, &conditions,
		&run.StopReason, &run.ElapsedSeconds, &run.Exposure, &run.Threshold)
	if err != nil {
		return Run{}, err
	}
	run.Conditions, err = unmarshalConditions(conditions)
	if err != nil {
		return Run{}, err
	}
	return run, nil
}
