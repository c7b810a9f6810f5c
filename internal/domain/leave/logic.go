package leave

import (
	"time"

	"github.com/shopspring/decimal"

	"intranet/internal/domain/apperr"
)

// CalculateLeaveHours returns the hours and day equivalent of a leave range.
// Hourly requests count the clock time between start and end on one day;
// daily requests count weekdays in [start, end] at eight hours each.
func CalculateLeaveHours(start, end time.Time, hourly bool) (decimal.Decimal, decimal.Decimal, error) {
	if start.IsZero() || end.IsZero() {
		return decimal.Zero, decimal.Zero, apperr.Validation("period", "start and end are required")
	}
	if hourly {
		if !end.After(start) {
			return decimal.Zero, decimal.Zero, apperr.Validation("period", "end must be after start")
		}
		if !sameDay(start, end) {
			return decimal.Zero, decimal.Zero, apperr.Validation("period", "hourly leave must start and end on the same day")
		}
		minutes := int64(end.Sub(start) / time.Minute)
		hours := decimal.NewFromInt(minutes).Div(decimal.NewFromInt(60)).Round(2)
		if hours.IsZero() {
			return decimal.Zero, decimal.Zero, apperr.Validation("period", "must cover at least one minute")
		}
		return hours, HoursToDays(hours), nil
	}

	days, err := CountWorkdays(start, end)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if days == 0 {
		return decimal.Zero, decimal.Zero, apperr.Validation("period", "range contains no working days")
	}
	d := decimal.NewFromInt(int64(days))
	return d.Mul(hoursPerDay), d, nil
}

// CountWorkdays returns the inclusive number of Monday-Friday dates in range.
func CountWorkdays(start, end time.Time) (int, error) {
	from := truncateDay(start)
	to := truncateDay(end)
	if to.Before(from) {
		return 0, apperr.Validation("period", "end date before start date")
	}
	count := 0
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			count++
		}
	}
	return count, nil
}

func HoursToDays(hours decimal.Decimal) decimal.Decimal {
	return hours.Div(hoursPerDay).Round(2)
}

func DaysToHours(days decimal.Decimal) decimal.Decimal {
	return days.Mul(hoursPerDay)
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
