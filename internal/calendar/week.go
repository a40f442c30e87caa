// Package calendar computes week boundaries and day sequences for the meal calendar.
// Weeks follow ISO ordering: Monday is the first day and Sunday the last.
package calendar

import (
	"fmt"
	"time"
)

// DaysPerWeek is the number of days in a calendar week.
const DaysPerWeek = 7

// WeekStart returns the Monday on or before reference.
func WeekStart(reference Date) Date {
	// Sunday=0 becomes 6, Monday=1 becomes 0.
	offset := (int(reference.Weekday()) + 6) % DaysPerWeek
	return reference.AddDays(-offset)
}

// WeekDays returns the seven consecutive dates starting at weekStart.
func WeekDays(weekStart Date) []Date {
	days := make([]Date, DaysPerWeek)
	for i := range days {
		days[i] = weekStart.AddDays(i)
	}
	return days
}

// FormatRange renders the seven-day span starting at weekStart, e.g. "Jun 10 - 16, 2024".
// The month is only repeated when the span crosses into the next month.
func FormatRange(weekStart Date) string {
	start := weekStart.Time(time.UTC)
	end := weekStart.AddDays(DaysPerWeek - 1).Time(time.UTC)
	if start.Month() == end.Month() {
		return fmt.Sprintf("%s - %s", start.Format("Jan 2"), end.Format("2, 2006"))
	}
	return fmt.Sprintf("%s - %s", start.Format("Jan 2"), end.Format("Jan 2, 2006"))
}

// Week is a seven-day window identified by its Monday.
type Week struct {
	Start Date
}

// WeekOf returns the week containing d.
func WeekOf(d Date) Week {
	return Week{Start: WeekStart(d)}
}

// CurrentWeek returns the week containing now.
func CurrentWeek(now time.Time) Week {
	return WeekOf(DateOf(now))
}

// ParseWeekKey parses a week key. Dates that are not Mondays are normalized to their week.
func ParseWeekKey(key string) (Week, error) {
	d, err := ParseDate(key)
	if err != nil {
		return Week{}, err
	}
	return WeekOf(d), nil
}

// Key returns the week key: the Monday as YYYY-MM-DD.
func (w Week) Key() string {
	return WeekStart(w.Start).String()
}

// Days returns the seven dates of the week.
func (w Week) Days() []Date {
	return WeekDays(WeekStart(w.Start))
}

// End returns the Sunday closing the week.
func (w Week) End() Date {
	return WeekStart(w.Start).AddDays(DaysPerWeek - 1)
}

// Contains reports whether d falls inside the week.
func (w Week) Contains(d Date) bool {
	start := WeekStart(w.Start)
	return !d.Before(start) && !d.After(w.End())
}

// Previous returns the week before w.
func (w Week) Previous() Week {
	return WeekOf(w.Start.AddDays(-DaysPerWeek))
}

// Next returns the week after w.
func (w Week) Next() Week {
	return WeekOf(w.Start.AddDays(DaysPerWeek))
}

// Label returns the human-readable range of the week.
func (w Week) Label() string {
	return FormatRange(WeekStart(w.Start))
}

func (w Week) String() string { return w.Key() }
