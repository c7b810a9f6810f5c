package leave

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"intranet/internal/domain/apperr"
	"intranet/internal/platform/tracing"
)

type Service struct {
	store StoreAPI
	users Directory
	Now   func() time.Time
}

func NewService(store StoreAPI, users Directory) *Service {
	return &Service{store: store, users: users, Now: time.Now}
}

// GetOrCreate returns the entry for (userID, year), creating and accruing it
// on first access.
func (s *Service) GetOrCreate(ctx context.Context, userID string, year int) (entry AnnualLeave, err error) {
	ctx, span := tracing.Start(ctx, "leave.GetOrCreate", "user.id", userID, "leave.year", strconv.Itoa(year))
	defer func() { span.End(err) }()

	if err := validateYear(year); err != nil {
		return AnnualLeave{}, err
	}
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		var txErr error
		entry, txErr = s.getOrCreate(ctx, userID, year)
		return txErr
	})
	return entry, err
}

func (s *Service) getOrCreate(ctx context.Context, userID string, year int) (AnnualLeave, error) {
	entry, err := s.store.FindLeave(ctx, userID, year)
	if err == nil {
		return entry, nil
	}
	if !apperr.IsNotFound(err) {
		return AnnualLeave{}, err
	}

	user, err := s.users.Resolve(ctx, userID)
	if err != nil {
		return AnnualLeave{}, err
	}

	carried := decimal.Zero
	prior, err := s.store.FindLeave(ctx, userID, year-1)
	switch {
	case err == nil:
		carried = CarryOver(prior.RemainingHours)
	case !apperr.IsNotFound(err):
		return AnnualLeave{}, err
	}

	now := s.Now().UTC()
	entry = AnnualLeave{
		ID:               uuid.NewString(),
		UserID:           user.ID,
		Year:             year,
		TotalHours:       AccrualHours(user.HireDate, year),
		UsedHours:        decimal.Zero,
		CarriedOverHours: carried,
		GrantedDate:      grantedDate(user.HireDate, year),
		ExpiryDate:       expiryDate(year),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	entry.recalculate()

	created, err := s.store.InsertLeaveIfAbsent(ctx, entry)
	if err != nil {
		return AnnualLeave{}, err
	}
	if !created {
		// lost the race against a concurrent first access
		return s.store.FindLeave(ctx, userID, year)
	}
	return entry, nil
}

func (s *Service) lockOrCreate(ctx context.Context, userID string, year int) (AnnualLeave, error) {
	if _, err := s.getOrCreate(ctx, userID, year); err != nil {
		return AnnualLeave{}, err
	}
	return s.store.LockLeave(ctx, userID, year)
}

// UseLeave deducts hours from the entry. It fails with an
// InsufficientBalanceError when hours exceed the remaining balance.
func (s *Service) UseLeave(ctx context.Context, userID string, year int, hours decimal.Decimal) (entry AnnualLeave, err error) {
	ctx, span := tracing.Start(ctx, "leave.UseLeave", "user.id", userID, "leave.hours", hours.String())
	defer func() { span.End(err) }()

	if err := validateYear(year); err != nil {
		return AnnualLeave{}, err
	}
	if !hours.IsPositive() {
		return AnnualLeave{}, apperr.Validation("hours", "must be greater than zero")
	}
	if err := validatePrecision(hours); err != nil {
		return AnnualLeave{}, err
	}
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		current, err := s.lockOrCreate(ctx, userID, year)
		if err != nil {
			return err
		}
		if hours.GreaterThan(current.RemainingHours) {
			return &apperr.InsufficientBalanceError{
				UserID:    userID,
				Year:      year,
				Available: current.RemainingHours,
				Requested: hours,
			}
		}
		current.UsedHours = current.UsedHours.Add(hours)
		entry, err = s.save(ctx, current)
		return err
	})
	return entry, err
}

// RestoreLeave gives hours back to the entry. Used hours never drop below zero.
func (s *Service) RestoreLeave(ctx context.Context, userID string, year int, hours decimal.Decimal) (entry AnnualLeave, err error) {
	ctx, span := tracing.Start(ctx, "leave.RestoreLeave", "user.id", userID, "leave.hours", hours.String())
	defer func() { span.End(err) }()

	if err := validateYear(year); err != nil {
		return AnnualLeave{}, err
	}
	if !hours.IsPositive() {
		return AnnualLeave{}, apperr.Validation("hours", "must be greater than zero")
	}
	if err := validatePrecision(hours); err != nil {
		return AnnualLeave{}, err
	}
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		current, err := s.lockOrCreate(ctx, userID, year)
		if err != nil {
			return err
		}
		current.UsedHours = decimal.Max(current.UsedHours.Sub(hours), decimal.Zero)
		entry, err = s.save(ctx, current)
		return err
	})
	return entry, err
}

// AdjustLeave applies an administrative correction. Positive hours grant extra
// entitlement, negative hours are booked as used.
func (s *Service) AdjustLeave(ctx context.Context, userID string, year int, hours decimal.Decimal, reason, actorID string) (entry AnnualLeave, err error) {
	ctx, span := tracing.Start(ctx, "leave.AdjustLeave", "user.id", userID, "leave.hours", hours.String())
	defer func() { span.End(err) }()

	if err := validateYear(year); err != nil {
		return AnnualLeave{}, err
	}
	if hours.IsZero() {
		return AnnualLeave{}, apperr.Validation("hours", "must not be zero")
	}
	if err := validatePrecision(hours); err != nil {
		return AnnualLeave{}, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return AnnualLeave{}, apperr.Validation("reason", "required")
	}
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		current, err := s.lockOrCreate(ctx, userID, year)
		if err != nil {
			return err
		}
		if hours.IsPositive() {
			current.TotalHours = current.TotalHours.Add(hours)
		} else {
			current.UsedHours = current.UsedHours.Add(hours.Abs())
		}
		entry, err = s.save(ctx, current)
		if err != nil {
			return err
		}
		return s.store.InsertAdjustment(ctx, Adjustment{
			ID:        uuid.NewString(),
			UserID:    userID,
			Year:      year,
			Hours:     hours,
			Reason:    reason,
			CreatedBy: actorID,
			CreatedAt: s.Now().UTC(),
		})
	})
	return entry, err
}

func (s *Service) save(ctx context.Context, entry AnnualLeave) (AnnualLeave, error) {
	entry.recalculate()
	entry.UpdatedAt = s.Now().UTC()
	if err := s.store.UpdateLeave(ctx, entry); err != nil {
		return AnnualLeave{}, err
	}
	return entry, nil
}

func (s *Service) ListAdjustments(ctx context.Context, userID string, year int) ([]Adjustment, error) {
	if err := validateYear(year); err != nil {
		return nil, err
	}
	return s.store.ListAdjustments(ctx, userID, year)
}

// GetDepartmentStatistics averages used and remaining hours per department.
func (s *Service) GetDepartmentStatistics(ctx context.Context, year int) ([]DepartmentStatistics, error) {
	if err := validateYear(year); err != nil {
		return nil, err
	}
	entries, err := s.store.ListLeavesWithDepartment(ctx, year)
	if err != nil {
		return nil, err
	}

	type acc struct {
		count     int64
		used      decimal.Decimal
		remaining decimal.Decimal
	}
	byDept := map[string]*acc{}
	for _, e := range entries {
		a, ok := byDept[e.Department]
		if !ok {
			a = &acc{}
			byDept[e.Department] = a
		}
		a.count++
		a.used = a.used.Add(e.Leave.UsedHours)
		a.remaining = a.remaining.Add(e.Leave.RemainingHours)
	}

	out := make([]DepartmentStatistics, 0, len(byDept))
	for dept, a := range byDept {
		n := decimal.NewFromInt(a.count)
		avgUsed := a.used.Div(n).Round(2)
		avgRemaining := a.remaining.Div(n).Round(2)
		out = append(out, DepartmentStatistics{
			Department:        dept,
			Employees:         int(a.count),
			AvgUsedHours:      avgUsed,
			AvgRemainingHours: avgRemaining,
			AvgUsedDays:       HoursToDays(avgUsed),
			AvgRemainingDays:  HoursToDays(avgRemaining),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Department < out[j].Department })
	return out, nil
}

// GetExpiringLeaves lists entries with a positive balance that expire within
// the next withinDays days.
func (s *Service) GetExpiringLeaves(ctx context.Context, withinDays int) ([]AnnualLeave, error) {
	if withinDays <= 0 {
		return nil, apperr.Validation("withinDays", "must be greater than zero")
	}
	today := truncateDay(s.Now().UTC())
	return s.store.ListExpiringLeaves(ctx, today, today.AddDate(0, 0, withinDays))
}

// InitializeForYear makes sure every active user has an entry for year.
func (s *Service) InitializeForYear(ctx context.Context, year int) (summary InitSummary, err error) {
	ctx, span := tracing.Start(ctx, "leave.InitializeForYear", "leave.year", strconv.Itoa(year))
	defer func() { span.End(err) }()

	summary.Year = year
	if err := validateYear(year); err != nil {
		return summary, err
	}
	users, err := s.users.ListActive(ctx)
	if err != nil {
		return summary, err
	}
	existing, err := s.store.LeaveUserIDs(ctx, year)
	if err != nil {
		return summary, err
	}
	for _, user := range users {
		if existing[user.ID] {
			summary.Skipped++
			continue
		}
		if _, err := s.GetOrCreate(ctx, user.ID, year); err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				summary.Skipped++
				continue
			}
			return summary, err
		}
		summary.Created++
	}
	return summary, nil
}

// validatePrecision keeps hours at the two decimal places the balance
// columns store, so every persisted entry stays balanced.
func validatePrecision(hours decimal.Decimal) error {
	if !hours.Equal(hours.Round(2)) {
		return apperr.Validation("hours", "at most two decimal places")
	}
	return nil
}

func validateYear(year int) error {
	if year < 1970 || year > 9999 {
		return apperr.Validation("year", "out of range")
	}
	return nil
}
