package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/phimhub/ingest/internal/catalog"
)

const runColumns = `id, type, source, status, total, movies_added, movies_updated, movies_skipped,
	movies_failed, episodes_added, duration_ms, message, started_at, finished_at`

// StartRun inserts a running ledger entry
func (s *Store) StartRun(ctx context.Context, run *catalog.Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	run.Status = catalog.RunRunning
	run.FinishedAt = nil

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`, run.ID, run.Type, run.Source, string(run.Status), run.Total, run.MoviesAdded, run.MoviesUpdated,
		run.MoviesSkipped, run.MoviesFailed, run.EpisodesAdded, run.Duration.Milliseconds(), run.Message,
		run.StartedAt.UTC())
	return err
}

// UpdateRunProgress refreshes the counters of a running entry
func (s *Store) UpdateRunProgress(ctx context.Context, run *catalog.Run) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET total = ?, movies_added = ?, movies_updated = ?, movies_skipped = ?, movies_failed = ?,
		    episodes_added = ?, duration_ms = ?
		WHERE id = ? AND status = ?
	`, run.Total, run.MoviesAdded, run.MoviesUpdated, run.MoviesSkipped, run.MoviesFailed,
		run.EpisodesAdded, run.Duration.Milliseconds(), run.ID, string(catalog.RunRunning))
	if err != nil {
		return err
	}
	return s.checkRunWrite(ctx, res, run.ID)
}

// FinishRun finalizes a running entry. The status guard in the WHERE clause
// keeps a finished entry immutable.
func (s *Store) FinishRun(ctx context.Context, run *catalog.Run) error {
	if run.FinishedAt == nil {
		now := time.Now()
		run.FinishedAt = &now
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, total = ?, movies_added = ?, movies_updated = ?, movies_skipped = ?, movies_failed = ?,
		    episodes_added = ?, duration_ms = ?, message = ?, finished_at = ?
		WHERE id = ? AND status = ?
	`, string(run.Status), run.Total, run.MoviesAdded, run.MoviesUpdated, run.MoviesSkipped, run.MoviesFailed,
		run.EpisodesAdded, run.Duration.Milliseconds(), run.Message, run.FinishedAt.UTC(),
		run.ID, string(catalog.RunRunning))
	if err != nil {
		return err
	}
	return s.checkRunWrite(ctx, res, run.ID)
}

// checkRunWrite tells an unknown id apart from a finished one when an
// update matched no row
func (s *Store) checkRunWrite(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var exists int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs WHERE id = ?", id).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return catalog.ErrNotFound
	}
	return catalog.ErrRunFinished
}

// ListRuns returns the newest runs first; limit <= 0 returns all
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*catalog.Run, error) {
	query := "SELECT " + runColumns + " FROM runs ORDER BY started_at DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*catalog.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// GetRun returns catalog.ErrNotFound for an unknown id
func (s *Store) GetRun(ctx context.Context, id string) (*catalog.Run, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.ErrNotFound
	}
	return run, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*catalog.Run, error) {
	var run catalog.Run
	var status string
	var durationMs int64
	var finished sql.NullTime

	err := row.Scan(&run.ID, &run.Type, &run.Source, &status, &run.Total, &run.MoviesAdded, &run.MoviesUpdated,
		&run.MoviesSkipped, &run.MoviesFailed, &run.EpisodesAdded, &durationMs, &run.Message,
		&run.StartedAt, &finished)
	if err != nil {
		return nil, err
	}

	run.Status = catalog.RunStatus(status)
	run.Duration = time.Duration(durationMs) * time.Millisecond
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return &run, nil
}
