package postgres

import (
	"context"
	"fmt"
	"time"
)

func (s *Store) StartJobRun(ctx context.Context, id, jobType string, at time.Time) error {
	_, err := s.q(ctx).Exec(ctx, `
    INSERT INTO job_runs (id, job_type, status, started_at) VALUES ($1,$2,'running',$3)
  `, id, jobType, at)
	if err != nil {
		return fmt.Errorf("insert job run: %w", err)
	}
	return nil
}

func (s *Store) FinishJobRun(ctx context.Context, id, status string, details []byte, at time.Time) error {
	_, err := s.q(ctx).Exec(ctx, `
    UPDATE job_runs SET status = $1, details_json = $2, completed_at = $3 WHERE id = $4
  `, status, nullBytes(details), at, id)
	if err != nil {
		return fmt.Errorf("update job run: %w", err)
	}
	return nil
}
