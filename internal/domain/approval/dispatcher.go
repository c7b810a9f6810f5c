package approval

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"intranet/internal/domain/apperr"
	"intranet/internal/domain/leave"
	"intranet/internal/requestctx"
)

// Ledger is the part of the leave ledger the dispatcher mutates.
type Ledger interface {
	UseLeave(ctx context.Context, userID string, year int, hours decimal.Decimal) (leave.AnnualLeave, error)
	RestoreLeave(ctx context.Context, userID string, year int, hours decimal.Decimal) (leave.AnnualLeave, error)
}

// Hook runs the side effects of a terminal transition.
type Hook interface {
	OnApproved(ctx context.Context, doc Document) error
	OnRejected(ctx context.Context, doc Document) error
}

// Dispatcher routes terminal documents to their ledger by type. It is the only
// caller of ledger mutations from the workflow.
type Dispatcher struct {
	ledger  Ledger
	metrics Recorder
}

func NewDispatcher(ledger Ledger, metrics Recorder) *Dispatcher {
	return &Dispatcher{ledger: ledger, metrics: metrics}
}

func (d *Dispatcher) OnApproved(ctx context.Context, doc Document) error {
	detail, ok, err := annualLeave(doc)
	if err != nil || !ok {
		return err
	}
	if _, err := d.ledger.UseLeave(ctx, doc.DrafterID, detail.StartAt.Year(), detail.Hours); err != nil {
		return err
	}
	if d.metrics != nil {
		d.metrics.IncLeaveUsed()
	}
	logger(ctx).Info("annual leave deducted", "document_id", doc.ID, "user_id", doc.DrafterID, "hours", detail.Hours.String())
	return nil
}

func (d *Dispatcher) OnRejected(ctx context.Context, doc Document) error {
	detail, ok, err := annualLeave(doc)
	if err != nil || !ok {
		return err
	}
	if _, err := d.ledger.RestoreLeave(ctx, doc.DrafterID, detail.StartAt.Year(), detail.Hours); err != nil {
		return err
	}
	if d.metrics != nil {
		d.metrics.IncLeaveRestored()
	}
	logger(ctx).Info("annual leave restored", "document_id", doc.ID, "user_id", doc.DrafterID, "hours", detail.Hours.String())
	return nil
}

// annualLeave extracts the leave detail of an ANNUAL leave request. ok is
// false for every document that has no ledger effect.
func annualLeave(doc Document) (*LeaveDetail, bool, error) {
	if doc.Type != TypeLeaveRequest {
		slog.Debug("no side effect for document type", "document_id", doc.ID, "type", doc.Type)
		return nil, false, nil
	}
	detail, ok := doc.Payload.(*LeaveDetail)
	if !ok || detail == nil {
		return nil, false, apperr.Validation("payload", "leave request "+doc.ID+" has no leave details")
	}
	if detail.LeaveType != LeaveAnnual {
		return nil, false, nil
	}
	return detail, true, nil
}

func logger(ctx context.Context) *slog.Logger {
	return slog.With(requestctx.LogAttrs(ctx)...)
}
