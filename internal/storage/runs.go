package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/card-purpose/internal/common"
)

// RunRecord is the persisted summary of one classify invocation.
type RunRecord struct {
	StartedAt     time.Time
	FinishedAt    time.Time
	ID            string
	InputPath     string
	Total         int
	AutoConfirmed int
	AIRevised     int
	ManualReview  int
	Unclassified  int
	Canceled      bool
}

// SaveRun records a classification run.
func (s *SQLiteStorage) SaveRun(ctx context.Context, run RunRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRun(run); err != nil {
		return err
	}

	var finished any
	if !run.FinishedAt.IsZero() {
		finished = run.FinishedAt.UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO classification_runs
			(id, started_at, finished_at, input_path, total, auto_confirmed, ai_revised, manual_review, unclassified, canceled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			finished_at = excluded.finished_at,
			total = excluded.total,
			auto_confirmed = excluded.auto_confirmed,
			ai_revised = excluded.ai_revised,
			manual_review = excluded.manual_review,
			unclassified = excluded.unclassified,
			canceled = excluded.canceled
	`, run.ID, run.StartedAt.UTC(), finished, run.InputPath, run.Total,
		run.AutoConfirmed, run.AIRevised, run.ManualReview, run.Unclassified, run.Canceled)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *SQLiteStorage) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, COALESCE(input_path, ''), total,
			auto_confirmed, ai_revised, manual_review, unclassified, canceled
		FROM classification_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []RunRecord
	for rows.Next() {
		var run RunRecord
		var finished sql.NullTime
		if err := rows.Scan(&run.ID, &run.StartedAt, &finished, &run.InputPath, &run.Total,
			&run.AutoConfirmed, &run.AIRevised, &run.ManualReview, &run.Unclassified, &run.Canceled); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if finished.Valid {
			run.FinishedAt = finished.Time
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

func notFoundOr(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrNotFound
	}
	return fmt.Errorf("%s: %w", msg, err)
}
