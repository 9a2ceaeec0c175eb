package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// WriteRun inserts a run and its bands in one transaction and returns the
// assigned seq.
//
// Writing the same run ID twice keeps the first row and returns its seq.
func (s *Store) WriteRun(ctx context.Context, run Run) (int64, error) {
	conditions, err := marshalConditions(run.Conditions)
	if err != nil {
		return 0, fmt.Errorf("write run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("write run: begin: %w", err)
	}
	defer tx.Rollback()

	var existing int64
	err = tx.QueryRowContext(ctx, `SELECT seq FROM runs WHERE id = ?`, run.ID).Scan(&existing)
	switch {
	case err == nil:
		return existing, nil
	case !errors.Is(err, sql.ErrNoRows):
		return 0, fmt.Errorf("write run: lookup %s: %w", run.ID, err)
	}

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM runs`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("write run: next seq: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, fingerprint, source, conditions, stop_reason, elapsed_seconds, exposure, threshold)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		seq,
		run.Fingerprint,
		run.Source,
		conditions,
		run.StopReason,
		run.ElapsedSeconds,
		run.Exposure,
		run.Threshold,
	)
	if err != nil {
		return 0, fmt.Errorf("write run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bands
		(run_id, lane, idx, lane_name, name, bp, topology, distance_cm, mass_ng, peak, saturated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("write bands: prepare: %w", err)
	}
	defer stmt.Close()

	for _, b := range run.Bands {
		_, err := stmt.ExecContext(ctx,
			run.ID,
			b.Lane,
			b.Idx,
			b.LaneName,
			b.Name,
			b.BP,
			b.Topology,
			b.DistanceCm,
			b.MassNg,
			b.Peak,
			boolToInt(b.Saturated),
		)
		if err != nil {
			return 0, fmt.Errorf("write band %d/%d: %w", b.Lane, b.Idx, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("write run: commit: %w", err)
	}
	return seq, nil
}
