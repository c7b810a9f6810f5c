package leave

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intranet/internal/domain/apperr"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculateLeaveHoursDaily(t *testing.T) {
	// Monday to Wednesday
	hours, days, err := CalculateLeaveHours(
		time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC),
		false)
	require.NoError(t, err)
	assert.True(t, hours.Equal(dec("24")), hours.String())
	assert.True(t, days.Equal(dec("3")), days.String())

	// Friday to Monday skips the weekend
	hours, days, err = CalculateLeaveHours(
		time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		false)
	require.NoError(t, err)
	assert.True(t, hours.Equal(dec("16")), hours.String())
	assert.True(t, days.Equal(dec("2")), days.String())
}

func TestCalculateLeaveHoursHourly(t *testing.T) {
	hours, days, err := CalculateLeaveHours(
		time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 4, 13, 30, 0, 0, time.UTC),
		true)
	require.NoError(t, err)
	assert.True(t, hours.Equal(dec("4.5")), hours.String())
	assert.True(t, days.Equal(dec("0.56")), days.String())
}

func TestCalculateLeaveHoursInvalid(t *testing.T) {
	cases := []struct {
		name       string
		start, end time.Time
		hourly     bool
	}{
		{"end before start", time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC), time.Date(2025, 2, 9, 0, 0, 0, 0, time.UTC), false},
		{"weekend only", time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC), time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC), false},
		{"hourly across days", time.Date(2025, 3, 4, 17, 0, 0, 0, time.UTC), time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC), true},
		{"hourly empty range", time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC), time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC), true},
		{"hourly under a minute", time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC), time.Date(2025, 3, 4, 10, 0, 30, 0, time.UTC), true},
		{"missing start", time.Time{}, time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := CalculateLeaveHours(tc.start, tc.end, tc.hourly)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
}

func TestHoursToDays(t *testing.T) {
	assert.True(t, HoursToDays(dec("20")).Equal(dec("2.5")))
	assert.True(t, HoursToDays(dec("104")).Equal(dec("13")))
	assert.True(t, DaysToHours(dec("5")).Equal(dec("40")))
}
