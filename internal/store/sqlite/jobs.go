package sqlite

import (
	"context"
	"fmt"
	"time"
)

func (s *Store) StartJobRun(ctx context.Context, id, jobType string, at time.Time) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO job_runs (id, job_type, status, started_at) VALUES (?, ?, 'running', ?)
	`, id, jobType, formatTime(at))
	if err != nil {
		return fmt.Errorf("insert job run: %w", err)
	}
	return nil
}

func (s *Store) FinishJobRun(ctx context.Context, id, status string, details []byte, at time.Time) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		UPDATE job_runs SET status = ?, details_json = ?, completed_at = ? WHERE id = ?
	`, status, nullBytes(details), formatTime(at), id)
	if err != nil {
		return fmt.Errorf("update job run: %w", err)
	}
	return nil
}
