package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNextAnchorDate(t *testing.T) {
	tests := []struct {
		name      string
		from      time.Time
		anchorDay int
		want      time.Time
	}{
		{"same day", date(2025, 3, 15), 15, date(2025, 3, 15)},
		{"later this month", date(2025, 3, 10), 15, date(2025, 3, 15)},
		{"already passed", date(2025, 3, 20), 15, date(2025, 4, 15)},
		{"clamped february", date(2025, 2, 1), 31, date(2025, 2, 28)},
		{"leap february", date(2024, 2, 1), 30, date(2024, 2, 29)},
		{"year rollover", date(2025, 12, 20), 15, date(2026, 1, 15)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextAnchorDate(tt.from, tt.anchorDay)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextAnchorDateRejectsInvalidDay(t *testing.T) {
	for _, day := range []int{0, -1, 32} {
		_, err := NextAnchorDate(date(2025, 3, 1), day)
		assert.Error(t, err, "day %d", day)
	}
}

func TestAdvanceAnchorDateRecoversFromShortMonths(t *testing.T) {
	// A 31st anchor clamps through February and recovers in March
	current := date(2025, 1, 31)
	current = AdvanceAnchorDate(current, 31, 1)
	assert.Equal(t, date(2025, 2, 28), current)

	current = AdvanceAnchorDate(current, 31, 1)
	assert.Equal(t, date(2025, 3, 31), current)
}

func TestAdvanceAnchorDateAnnual(t *testing.T) {
	got := AdvanceAnchorDate(date(2024, 2, 29), 29, 12)
	assert.Equal(t, date(2025, 2, 28), got)
}

func TestCalendarBusinessDays(t *testing.T) {
	cal, err := NewCalendar([]string{"2025-04-18", "2025-04-21"}) // Good Friday, Easter Monday
	require.NoError(t, err)

	assert.True(t, cal.IsBusinessDay(date(2025, 4, 15)))   // Tuesday
	assert.False(t, cal.IsBusinessDay(date(2025, 4, 19)))  // Saturday
	assert.False(t, cal.IsBusinessDay(date(2025, 4, 20)))  // Sunday
	assert.False(t, cal.IsBusinessDay(date(2025, 4, 18)))  // holiday
	assert.False(t, cal.IsBusinessDay(date(2025, 4, 21)))  // holiday

	// The long weekend collapses to the following Tuesday
	assert.Equal(t, date(2025, 4, 22), cal.NextBusinessDay(date(2025, 4, 18)))
	assert.Equal(t, date(2025, 4, 15), cal.NextBusinessDay(date(2025, 4, 15)))
}

func TestCalendarSubtractBusinessDays(t *testing.T) {
	cal, err := NewCalendar(nil)
	require.NoError(t, err)

	// Walking 2 business days back from Monday crosses the weekend
	got := cal.SubtractBusinessDays(date(2025, 6, 16), 2)
	assert.Equal(t, date(2025, 6, 12), got)
	assert.Equal(t, time.Thursday, got.Weekday())

	// 5 business days back from a Tuesday
	got = cal.SubtractBusinessDays(date(2025, 4, 15), 5)
	assert.Equal(t, date(2025, 4, 8), got)

	// The result is never a weekend day
	for n := 1; n <= 10; n++ {
		d := cal.SubtractBusinessDays(date(2025, 6, 16), n)
		assert.NotEqual(t, time.Saturday, d.Weekday())
		assert.NotEqual(t, time.Sunday, d.Weekday())
	}
}

func TestCalendarRejectsInvalidHoliday(t *testing.T) {
	_, err := NewCalendar([]string{"18.04.2025"})
	assert.Error(t, err)
}
