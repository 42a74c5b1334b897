package types

import (
	"time"

	ierr "github.com/duespay/duespay/internal/errors"
)

// AddClampedDate adds years/months/days to t while clamping the day of month
// to the target month's length, so an anchor day of 31 lands on Apr 30 and
// Feb 28/29 instead of spilling into the next month the way time.AddDate
// does.
func AddClampedDate(t time.Time, years, months, days int) time.Time {
	y, m, d := t.Date()
	h, min, sec := t.Clock()

	newY := y + years
	newM := time.Month(int(m) + months)

	for newM > 12 {
		newM -= 12
		newY++
	}
	for newM < 1 {
		newM += 12
		newY--
	}

	// Find the last valid day of the new month
	firstOfNextMonth := time.Date(newY, newM+1, 1, 0, 0, 0, 0, t.Location())
	lastDay := firstOfNextMonth.Add(-24 * time.Hour).Day()

	newD := d + days
	if newD > lastDay {
		newD = lastDay
	}

	return time.Date(newY, newM, newD, h, min, sec, t.Nanosecond(), t.Location())
}

// NextAnchorDate returns the first occurrence of anchorDay that is >= from,
// clamped to month length. anchorDay must be in [1, 31].
func NextAnchorDate(from time.Time, anchorDay int) (time.Time, error) {
	if anchorDay < 1 || anchorDay > 31 {
		return time.Time{}, ierr.NewErrorf("anchor day %d out of range", anchorDay).
			WithHint("Anchor day must be between 1 and 31").
			Mark(ierr.ErrValidation)
	}

	candidate := anchorInMonth(from.Year(), from.Month(), anchorDay, from.Location())
	if candidate.Before(DateOnly(from)) {
		y, m := from.Year(), from.Month()
		if m == time.December {
			y, m = y+1, time.January
		} else {
			m++
		}
		candidate = anchorInMonth(y, m, anchorDay, from.Location())
	}
	return candidate, nil
}

// AdvanceAnchorDate moves an anchor date forward by the given number of
// months, re-clamping against the original anchor day so a 31st anchor
// recovers from short months (Jan 31 → Feb 28 → Mar 31).
func AdvanceAnchorDate(current time.Time, anchorDay, months int) time.Time {
	y, m := current.Year(), current.Month()
	mi := int(m) + months
	for mi > 12 {
		mi -= 12
		y++
	}
	return anchorInMonth(y, time.Month(mi), anchorDay, current.Location())
}

func anchorInMonth(year int, month time.Month, anchorDay int, loc *time.Location) time.Time {
	firstOfNextMonth := time.Date(year, month+1, 1, 0, 0, 0, 0, loc)
	lastDay := firstOfNextMonth.Add(-24 * time.Hour).Day()
	day := anchorDay
	if day > lastDay {
		day = lastDay
	}
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

// DateOnly truncates t to midnight UTC-of-location
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Calendar answers business-day questions for collection scheduling. The
// holiday set comes from configuration; weekends are always non-business.
type Calendar struct {
	holidays map[string]struct{}
}

// NewCalendar builds a calendar from ISO dates (2006-01-02). Invalid entries
// are rejected so a misconfigured holiday list fails the run at startup.
func NewCalendar(holidays []string) (*Calendar, error) {
	set := make(map[string]struct{}, len(holidays))
	for _, h := range holidays {
		if _, err := time.Parse(time.DateOnly, h); err != nil {
			return nil, ierr.WithError(err).
				WithHintf("Invalid holiday date %q, expected YYYY-MM-DD", h).
				Mark(ierr.ErrValidation)
		}
		set[h] = struct{}{}
	}
	return &Calendar{holidays: set}, nil
}

// IsBusinessDay reports whether t is a bank business day
func (c *Calendar) IsBusinessDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	_, holiday := c.holidays[t.Format(time.DateOnly)]
	return !holiday
}

// NextBusinessDay returns t if it is a business day, otherwise the first
// business day after it.
func (c *Calendar) NextBusinessDay(t time.Time) time.Time {
	for !c.IsBusinessDay(t) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

// SubtractBusinessDays walks backwards from t by n business days. The
// resulting day is itself a business day, so submission deadlines never land
// on a weekend.
func (c *Calendar) SubtractBusinessDays(t time.Time, n int) time.Time {
	for n > 0 {
		t = t.AddDate(0, 0, -1)
		if c.IsBusinessDay(t) {
			n--
		}
	}
	return c.prevBusinessDay(t)
}

func (c *Calendar) prevBusinessDay(t time.Time) time.Time {
	for !c.IsBusinessDay(t) {
		t = t.AddDate(0, 0, -1)
	}
	return t
}
