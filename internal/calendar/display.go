package calendar

import (
	"time"
)

// Status is where an event sits relative to now.
type Status int

const (
	StatusPast Status = iota
	StatusInProgress
	StatusUpcoming
)

// String returns the legend label of the status.
func (s Status) String() string {
	switch s {
	case StatusInProgress:
		return "In Progress"
	case StatusUpcoming:
		return "Upcoming"
	default:
		return "Past"
	}
}

// Bounds returns the start and end instants of the event in loc. For all-day
// events the end is the exclusive next-day midnight.
func (e Event) Bounds(loc *time.Location) (start, end time.Time) {
	switch t := e.Time.(type) {
	case Timed:
		return t.Start.In(loc), t.End.In(loc)
	case AllDay:
		return t.StartDate.In(loc), t.EndDate.In(loc)
	}
	return time.Time{}, time.Time{}
}

// StatusAt classifies the event against now.
func (e Event) StatusAt(now time.Time, loc *time.Location) Status {
	start, end := e.Bounds(loc)
	switch {
	case now.Before(start):
		return StatusUpcoming
	case now.After(end):
		return StatusPast
	default:
		return StatusInProgress
	}
}

// Span renders the event's time for humans. All-day ends are exclusive, so
// the last displayed day is one before EndDate.
func (e Event) Span(loc *time.Location) string {
	switch t := e.Time.(type) {
	case Timed:
		return t.Start.In(loc).Format("2006/01/02 15:04") + " ~ " + t.End.In(loc).Format("2006/01/02 15:04")
	case AllDay:
		last := t.EndDate.AddDays(-1)
		first := t.StartDate.In(time.UTC).Format("2006/01/02")
		if !t.StartDate.Before(last) {
			return first + " (All Day)"
		}
		return first + " ~ " + last.In(time.UTC).Format("2006/01/02") + " (Multi-Day All Day)"
	}
	return ""
}
