package leave

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestAccrualHours(t *testing.T) {
	cases := []struct {
		name string
		hire *time.Time
		year int
		want string
	}{
		{"unknown hire date", nil, 2025, "120"},
		{"hired mid month", date(2025, 3, 15), 2025, "72"},
		{"hired on the first", date(2025, 3, 1), 2025, "80"},
		{"hired in december", date(2025, 12, 10), 2025, "0"},
		{"hired after the year", date(2026, 1, 1), 2025, "0"},
		{"less than a full year", date(2024, 6, 10), 2025, "120"},
		{"three years", date(2022, 1, 1), 2025, "128"},
		{"five years", date(2020, 1, 1), 2025, "136"},
		{"capped", date(2000, 1, 1), 2025, "200"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := AccrualHours(tc.hire, tc.year)
			assert.True(t, got.Equal(dec(tc.want)), "got %s want %s", got, tc.want)
		})
	}
}

func TestServiceYears(t *testing.T) {
	assert.Equal(t, 5, ServiceYears(*date(2020, 1, 1), 2025))
	assert.Equal(t, 4, ServiceYears(*date(2020, 1, 2), 2025))
	assert.Equal(t, 0, ServiceYears(*date(2025, 5, 1), 2025))
}

func TestCarryOverIsCapped(t *testing.T) {
	assert.True(t, CarryOver(dec("80")).Equal(dec("40")))
	assert.True(t, CarryOver(dec("24")).Equal(dec("24")))
	assert.True(t, CarryOver(dec("0")).IsZero())
	assert.True(t, CarryOver(dec("-8")).IsZero())
}

func TestGrantedAndExpiryDates(t *testing.T) {
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), grantedDate(nil, 2025))
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), grantedDate(date(2019, 4, 1), 2025))
	assert.Equal(t, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), grantedDate(date(2025, 3, 15), 2025))
	assert.Equal(t, time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), expiryDate(2025))
}
