package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"intranet/internal/domain/leave"
	"intranet/internal/platform/config"
)

const (
	JobLeaveYearInit     = "leave_year_init"
	JobLeaveExpiryNotice = "leave_expiry_notice"
	JobRetention         = "notification_retention"
)

var errPanicked = errors.New("job panicked")

// RunStore records job runs.
type RunStore interface {
	StartJobRun(ctx context.Context, id, jobType string, at time.Time) error
	FinishJobRun(ctx context.Context, id, status string, details []byte, at time.Time) error
}

// LeaveLedger is the part of the leave ledger the scheduled jobs drive.
type LeaveLedger interface {
	InitializeForYear(ctx context.Context, year int) (leave.InitSummary, error)
	GetExpiringLeaves(ctx context.Context, withinDays int) ([]leave.AnnualLeave, error)
}

// ExpiryNotifier tells owners about expiring balances and returns how many
// notices went out.
type ExpiryNotifier interface {
	NotifyExpiring(ctx context.Context, entries []leave.AnnualLeave) int
}

// Purger deletes read notifications past the retention window.
type Purger interface {
	PurgeRead(ctx context.Context, retention time.Duration) (int64, error)
}

type Service struct {
	Runs     RunStore
	Ledger   LeaveLedger
	Notifier ExpiryNotifier
	Purger   Purger
	Cfg      config.Config
	Now      func() time.Time
	queue    chan job
}

type job struct {
	Type string
	Run  func(context.Context) (any, error)
}

func New(runs RunStore, ledger LeaveLedger, notifier ExpiryNotifier, cfg config.Config) *Service {
	return &Service{
		Runs:     runs,
		Ledger:   ledger,
		Notifier: notifier,
		Cfg:      cfg,
		Now:      time.Now,
		queue:    make(chan job, 128),
	}
}

// Start runs the worker and the schedulers until ctx is cancelled. The year
// initialization is enqueued once at startup so a fresh deployment has
// entries for the current year.
func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
	if s.Cfg.LeaveInitInterval > 0 {
		s.Enqueue(JobLeaveYearInit, s.InitializeCurrentYear)
		go s.schedule(ctx, s.Cfg.LeaveInitInterval, JobLeaveYearInit, s.InitializeCurrentYear)
	}
	if s.Cfg.LeaveExpiryNoticeInterval > 0 && s.Notifier != nil {
		go s.schedule(ctx, s.Cfg.LeaveExpiryNoticeInterval, JobLeaveExpiryNotice, s.NotifyExpiring)
	}
	if s.Cfg.RetentionInterval > 0 && s.Cfg.NotificationRetention > 0 && s.Purger != nil {
		go s.schedule(ctx, s.Cfg.RetentionInterval, JobRetention, s.ApplyRetention)
	}
}

func (s *Service) Enqueue(jobType string, run func(context.Context) (any, error)) {
	select {
	case s.queue <- job{Type: jobType, Run: run}:
	default:
		slog.Warn("job queue full", "jobType", jobType)
	}
}

func (s *Service) RunNow(ctx context.Context, jobType string, run func(context.Context) (any, error)) (any, error) {
	return s.runJob(ctx, job{Type: jobType, Run: run})
}

// InitializeCurrentYear creates missing ledger entries for the current year.
func (s *Service) InitializeCurrentYear(ctx context.Context) (any, error) {
	return s.Ledger.InitializeForYear(ctx, s.Now().UTC().Year())
}

// NotifyExpiring sends a notice for every balance expiring within the
// configured window.
func (s *Service) NotifyExpiring(ctx context.Context) (any, error) {
	entries, err := s.Ledger.GetExpiringLeaves(ctx, s.Cfg.LeaveExpiryNoticeDays)
	if err != nil {
		return nil, err
	}
	sent := 0
	if s.Notifier != nil {
		sent = s.Notifier.NotifyExpiring(ctx, entries)
	}
	return map[string]any{
		"withinDays": s.Cfg.LeaveExpiryNoticeDays,
		"expiring":   len(entries),
		"notified":   sent,
	}, nil
}

// ApplyRetention purges read notifications older than the configured window.
func (s *Service) ApplyRetention(ctx context.Context) (any, error) {
	if s.Purger == nil {
		return map[string]any{"deleted": 0}, nil
	}
	deleted, err := s.Purger.PurgeRead(ctx, s.Cfg.NotificationRetention)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"retentionDays": int(s.Cfg.NotificationRetention / (24 * time.Hour)),
		"deleted":       deleted,
	}, nil
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (details any, err error) {
	runID := uuid.NewString()
	if s.Runs != nil {
		if startErr := s.Runs.StartJobRun(ctx, runID, j.Type, s.Now().UTC()); startErr != nil {
			slog.Warn("job run insert failed", "err", startErr)
			runID = ""
		}
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("job panicked", "jobType", j.Type, "panic", r)
			err = errPanicked
			s.finish(ctx, runID, "failed", nil)
		}
	}()

	details, err = j.Run(ctx)
	status := "completed"
	if err != nil {
		status = "failed"
	}
	s.finish(ctx, runID, status, details)
	return details, err
}

func (s *Service) finish(ctx context.Context, runID, status string, details any) {
	if runID == "" || s.Runs == nil {
		return
	}
	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		slog.Warn("job details marshal failed", "err", marshalErr)
		detailsJSON = []byte("{}")
	}
	if err := s.Runs.FinishJobRun(ctx, runID, status, detailsJSON, s.Now().UTC()); err != nil {
		slog.Warn("job run update failed", "err", err)
	}
}

func (s *Service) schedule(ctx context.Context, interval time.Duration, jobType string, run func(context.Context) (any, error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Enqueue(jobType, run)
		}
	}
}
