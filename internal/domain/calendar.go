package domain

import (
	"time"

	"cloud.google.com/go/civil"
)

// Window is one business day expressed as an inclusive timestamp range.
type Window struct {
	Date  civil.Date
	Start time.Time
	End   time.Time
}

// DayWindow returns the full day of date in loc, from midnight through the
// last nanosecond. A nil loc means UTC.
func DayWindow(date civil.Date, loc *time.Location) Window {
	if loc == nil {
		loc = time.UTC
	}
	start := date.In(loc)
	end := date.AddDays(1).In(loc).Add(-time.Nanosecond)
	return Window{Date: date, Start: start, End: end}
}

// Contains reports whether t falls inside the window, both ends inclusive.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Today returns the current civil date in loc.
func Today(now time.Time, loc *time.Location) civil.Date {
	if loc == nil {
		loc = time.UTC
	}
	return civil.DateOf(now.In(loc))
}
