// Package streak maintains per-user counts of consecutive practice days.
//
// Streaks are keyed by civil (calendar) dates rather than timestamps. The
// caller converts a completion instant into a date in whichever timezone the
// deployment considers "the user's day" using [DateIn].
package streak

import (
	"fmt"
	"time"

	"cantogame/internal/models"
)

// Date is a calendar day with no time or zone
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateIn returns the calendar date of t as observed in loc
func DateIn(t time.Time, loc *time.Location) Date {
	y, m, d := t.In(loc).Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a date in models.CivilDateLayout
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(models.CivilDateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// String formats the date in models.CivilDateLayout
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// daysSince returns the number of calendar days from earlier to d
func (d Date) daysSince(earlier Date) int {
	a := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
	b := time.Date(earlier.Year, earlier.Month, earlier.Day, 0, 0, 0, 0, time.UTC)
	return int(a.Sub(b).Hours() / 24)
}

// Advance applies one session completion on day to the user's streak record.
// A nil record means the user has never completed a session.
//
// Completing on the same day as the last completion leaves the record
// unchanged, the following day extends the streak, and any later day starts
// a new streak of 1. A completion dated before the last one (clock skew) is
// ignored. LongestStreak never decreases.
func Advance(userID string, record *models.StreakRecord, day Date) models.StreakRecord {
	if record == nil || record.LastCompletionDate == "" {
		return models.StreakRecord{
			UserID:             userID,
			CurrentStreak:      1,
			LongestStreak:      1,
			LastCompletionDate: day.String(),
		}
	}

	next := *record
	next.UserID = userID

	last, err := ParseDate(record.LastCompletionDate)
	if err != nil {
		// An unreadable date cannot be continued; start over
		next.CurrentStreak = 1
	} else {
		switch gap := day.daysSince(last); {
		case gap <= 0:
			return next
		case gap == 1:
			next.CurrentStreak++
		default:
			next.CurrentStreak = 1
		}
	}

	if next.CurrentStreak < 1 {
		next.CurrentStreak = 1
	}
	if next.CurrentStreak > next.LongestStreak {
		next.LongestStreak = next.CurrentStreak
	}
	next.LastCompletionDate = day.String()
	return next
}
