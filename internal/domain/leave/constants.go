package leave

import "github.com/shopspring/decimal"

const (
	HoursPerDay    = 8
	BaseAnnualDays = 15
	MaxAnnualDays  = 25
)

var (
	hoursPerDay       = decimal.NewFromInt(HoursPerDay)
	carryOverCapHours = decimal.NewFromInt(40)
)
