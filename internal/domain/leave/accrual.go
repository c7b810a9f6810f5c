package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccrualHours is the entitlement granted when the entry for year is created.
//
// A user hired during year gets 8 hours for each remaining full calendar month
// (the hire month counts only when hired on the 1st). From the following year
// on the allotment is 15 days plus one day per two further years of service,
// capped at 25 days. Unknown hire dates get the base allotment.
func AccrualHours(hireDate *time.Time, year int) decimal.Decimal {
	if hireDate == nil {
		return DaysToHours(decimal.NewFromInt(BaseAnnualDays))
	}
	hire := hireDate.UTC()
	switch {
	case hire.Year() > year:
		return decimal.Zero
	case hire.Year() == year:
		months := 12 - int(hire.Month())
		if hire.Day() == 1 {
			months++
		}
		return decimal.NewFromInt(int64(months)).Mul(hoursPerDay)
	}

	years := ServiceYears(hire, year)
	if years < 1 {
		years = 1
	}
	days := BaseAnnualDays + (years-1)/2
	if days > MaxAnnualDays {
		days = MaxAnnualDays
	}
	return DaysToHours(decimal.NewFromInt(int64(days)))
}

// ServiceYears counts full years of service completed by January 1 of year.
func ServiceYears(hire time.Time, year int) int {
	ref := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	start := time.Date(hire.Year(), hire.Month(), hire.Day(), 0, 0, 0, 0, time.UTC)
	if start.After(ref) {
		return 0
	}
	years := ref.Year() - start.Year()
	if start.AddDate(years, 0, 0).After(ref) {
		years--
	}
	return years
}

// CarryOver is the part of the prior year's remaining balance moved into the
// new year's entry.
func CarryOver(priorRemaining decimal.Decimal) decimal.Decimal {
	if !priorRemaining.IsPositive() {
		return decimal.Zero
	}
	return decimal.Min(priorRemaining, carryOverCapHours)
}

func grantedDate(hireDate *time.Time, year int) time.Time {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	if hireDate != nil && hireDate.Year() == year {
		return time.Date(year, hireDate.Month(), hireDate.Day(), 0, 0, 0, 0, time.UTC)
	}
	return start
}

func expiryDate(year int) time.Time {
	return time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
}
