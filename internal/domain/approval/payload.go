package approval

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"intranet/internal/domain/apperr"
	"intranet/internal/domain/leave"
)

// Payload is the type-specific part of a document. The set of implementations
// is closed: LeaveDetail, OvertimeDetail and ExpenseDetail.
type Payload interface {
	PayloadType() DocumentType
	normalize() error
}

type LeaveDetail struct {
	LeaveType LeaveType       `json:"leaveType"`
	StartAt   time.Time       `json:"startAt"`
	EndAt     time.Time       `json:"endAt"`
	Hourly    bool            `json:"hourly"`
	Hours     decimal.Decimal `json:"hours"`
	Days      decimal.Decimal `json:"days"`
	Reason    string          `json:"reason,omitempty"`
}

func (*LeaveDetail) PayloadType() DocumentType { return TypeLeaveRequest }

func (d *LeaveDetail) normalize() error {
	if !d.LeaveType.Valid() {
		return apperr.Validation("payload.leaveType", "unknown leave type")
	}
	hours, days, err := leave.CalculateLeaveHours(d.StartAt, d.EndAt, d.Hourly)
	if err != nil {
		return err
	}
	d.Hours, d.Days = hours, days
	d.Reason = strings.TrimSpace(d.Reason)
	return nil
}

type OvertimeDetail struct {
	WorkDate time.Time       `json:"workDate"`
	StartAt  time.Time       `json:"startAt"`
	EndAt    time.Time       `json:"endAt"`
	Hours    decimal.Decimal `json:"hours"`
	Reason   string          `json:"reason,omitempty"`
}

func (*OvertimeDetail) PayloadType() DocumentType { return TypeOvertimeRequest }

func (d *OvertimeDetail) normalize() error {
	if d.StartAt.IsZero() || d.EndAt.IsZero() {
		return apperr.Validation("payload.period", "start and end are required")
	}
	if !d.EndAt.After(d.StartAt) {
		return apperr.Validation("payload.period", "end must be after start")
	}
	span := d.EndAt.Sub(d.StartAt)
	if span > 24*time.Hour {
		return apperr.Validation("payload.period", "overtime cannot exceed 24 hours")
	}
	if d.WorkDate.IsZero() {
		d.WorkDate = time.Date(d.StartAt.Year(), d.StartAt.Month(), d.StartAt.Day(), 0, 0, 0, 0, time.UTC)
	}
	minutes := int64(span / time.Minute)
	d.Hours = decimal.NewFromInt(minutes).Div(decimal.NewFromInt(60)).Round(2)
	d.Reason = strings.TrimSpace(d.Reason)
	return nil
}

type ExpenseDetail struct {
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	SpentOn     time.Time       `json:"spentOn"`
	Description string          `json:"description,omitempty"`
}

func (*ExpenseDetail) PayloadType() DocumentType { return TypeExpenseRequest }

func (d *ExpenseDetail) normalize() error {
	d.Category = strings.TrimSpace(d.Category)
	d.Currency = strings.ToUpper(strings.TrimSpace(d.Currency))
	if d.Category == "" {
		return apperr.Validation("payload.category", "required")
	}
	if !d.Amount.IsPositive() {
		return apperr.Validation("payload.amount", "must be greater than zero")
	}
	if len(d.Currency) != 3 {
		return apperr.Validation("payload.currency", "must be a 3 letter ISO code")
	}
	if d.SpentOn.IsZero() {
		return apperr.Validation("payload.spentOn", "required")
	}
	return nil
}

// checkPayload validates p against the document type it is attached to.
func checkPayload(docType DocumentType, p Payload) error {
	if p == nil {
		if docType == TypeLeaveRequest {
			return apperr.Validation("payload", "leave requests require leave details")
		}
		return nil
	}
	if p.PayloadType() != docType {
		return apperr.Validation("payload", "payload of type "+string(p.PayloadType())+" does not match document type "+string(docType))
	}
	return p.normalize()
}

// EncodePayload returns the stored JSON form of p; nil for no payload.
func EncodePayload(p Payload) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

// DecodePayload parses raw using docType as the discriminant.
func DecodePayload(docType DocumentType, raw []byte) (Payload, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var p Payload
	switch docType {
	case TypeLeaveRequest:
		p = &LeaveDetail{}
	case TypeOvertimeRequest:
		p = &OvertimeDetail{}
	case TypeExpenseRequest:
		p = &ExpenseDetail{}
	default:
		return nil, apperr.Validation("payload", "document type "+string(docType)+" carries no payload")
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, apperr.Validation("payload", "malformed: "+err.Error())
	}
	return p, nil
}
