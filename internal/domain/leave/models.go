package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

// AnnualLeave is one user's annual-leave balance for one calendar year.
// RemainingHours always equals TotalHours + CarriedOverHours - UsedHours.
type AnnualLeave struct {
	ID               string          `json:"id"`
	UserID           string          `json:"userId"`
	Year             int             `json:"year"`
	TotalHours       decimal.Decimal `json:"totalHours"`
	UsedHours        decimal.Decimal `json:"usedHours"`
	RemainingHours   decimal.Decimal `json:"remainingHours"`
	CarriedOverHours decimal.Decimal `json:"carriedOverHours"`
	GrantedDate      time.Time       `json:"grantedDate"`
	ExpiryDate       time.Time       `json:"expiryDate"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

func (l *AnnualLeave) recalculate() {
	l.RemainingHours = l.TotalHours.Add(l.CarriedOverHours).Sub(l.UsedHours)
}

// Balanced reports whether the remaining-hours invariant holds.
func (l AnnualLeave) Balanced() bool {
	return l.RemainingHours.Equal(l.TotalHours.Add(l.CarriedOverHours).Sub(l.UsedHours))
}

func (l AnnualLeave) RemainingDays() decimal.Decimal {
	return HoursToDays(l.RemainingHours)
}

// Adjustment is the audit row written by every administrative adjustment.
type Adjustment struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Year      int             `json:"year"`
	Hours     decimal.Decimal `json:"hours"`
	Reason    string          `json:"reason"`
	CreatedBy string          `json:"createdBy"`
	CreatedAt time.Time       `json:"createdAt"`
}

// DepartmentEntry is a ledger entry joined with the owner's department.
type DepartmentEntry struct {
	Department string
	Leave      AnnualLeave
}

type DepartmentStatistics struct {
	Department        string          `json:"department"`
	Employees         int             `json:"employees"`
	AvgUsedHours      decimal.Decimal `json:"avgUsedHours"`
	AvgRemainingHours decimal.Decimal `json:"avgRemainingHours"`
	AvgUsedDays       decimal.Decimal `json:"avgUsedDays"`
	AvgRemainingDays  decimal.Decimal `json:"avgRemainingDays"`
}

type InitSummary struct {
	Year    int `json:"year"`
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}
