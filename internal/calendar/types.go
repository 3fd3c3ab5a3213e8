package calendar

import (
	"encoding/json"
	"fmt"
	"time"

	calendar "google.golang.org/api/calendar/v3"

	"github.com/calm-cli/calm/internal/apperr"
)

// PrimaryCalendarID is the only calendar calm reads or writes.
const PrimaryCalendarID = "primary"

const dateLayout = "2006-01-02"

// Date is a civil calendar date without a zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d == Date{}
}

// In returns local midnight of d in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// AddDays returns d shifted by n days.
func (d Date) AddDays(n int) Date {
	return DateOf(d.In(time.UTC).AddDate(0, 0, n))
}

// Before reports whether d is strictly before o.
func (d Date) Before(o Date) bool {
	return d.In(time.UTC).Before(o.In(time.UTC))
}

// TimeSpec is the time of an event: either Timed or AllDay.
type TimeSpec interface {
	validate(op string) error
	isTimeSpec()
}

// Timed is an event with start and end instants.
type Timed struct {
	Start time.Time
	End   time.Time

	// TimeZone is the IANA zone the Store renders the event in.
	// Empty means the configured default.
	TimeZone string
}

func (Timed) isTimeSpec() {}

func (t Timed) validate(op string) error {
	if t.Start.IsZero() || t.End.IsZero() {
		return apperr.Invalid(op, "timed event needs both start and end")
	}
	if !t.End.After(t.Start) {
		return apperr.Invalid(op, "end %s is not after start %s",
			t.End.Format(time.RFC3339), t.Start.Format(time.RFC3339))
	}
	if t.TimeZone != "" {
		if _, err := time.LoadLocation(t.TimeZone); err != nil {
			return apperr.Invalid(op, "unknown time zone %q", t.TimeZone)
		}
	}
	return nil
}

// AllDay is an event spanning whole days. EndDate is exclusive.
type AllDay struct {
	StartDate Date
	EndDate   Date
}

func (AllDay) isTimeSpec() {}

func (a AllDay) validate(op string) error {
	if a.StartDate.IsZero() || a.EndDate.IsZero() {
		return apperr.Invalid(op, "all-day event needs both start and end dates")
	}
	if !a.StartDate.Before(a.EndDate) {
		return apperr.Invalid(op, "end date %s must be after start date %s (end is exclusive)", a.EndDate, a.StartDate)
	}
	return nil
}

// Event is one entry of the primary calendar.
type Event struct {
	ID          string
	Title       string
	Description string
	Location    string
	Time        TimeSpec
}

// IsAllDay reports whether the event spans whole days.
func (e Event) IsAllDay() bool {
	_, ok := e.Time.(AllDay)
	return ok
}

// NewEvent is the input of CreateEvent.
type NewEvent struct {
	Title       string
	Description string
	Location    string
	Time        TimeSpec
}

// Patch lists the fields UpdateEvent changes; nil fields are left as they are.
type Patch struct {
	Title       *string
	Description *string
	Location    *string
	Timed       *Timed
	AllDay      *AllDay
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Location == nil && p.Timed == nil && p.AllDay == nil
}

type eventTimeJSON struct {
	DateTime string `json:"dateTime,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
	Date     string `json:"date,omitempty"`
}

type eventJSON struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Location    string        `json:"location,omitempty"`
	Start       eventTimeJSON `json:"start"`
	End         eventTimeJSON `json:"end"`
	AllDay      bool          `json:"all_day"`
}

// MarshalJSON renders the event in the shape used by tool results and --json
// output.
func (e Event) MarshalJSON() ([]byte, error) {
	out := eventJSON{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Location:    e.Location,
	}

	switch t := e.Time.(type) {
	case Timed:
		out.Start = eventTimeJSON{DateTime: t.Start.Format(time.RFC3339), TimeZone: t.TimeZone}
		out.End = eventTimeJSON{DateTime: t.End.Format(time.RFC3339), TimeZone: t.TimeZone}
	case AllDay:
		out.Start = eventTimeJSON{Date: t.StartDate.String()}
		out.End = eventTimeJSON{Date: t.EndDate.String()}
		out.AllDay = true
	}

	return json.Marshal(out)
}

// UnmarshalJSON parses the shape produced by MarshalJSON.
func (e *Event) UnmarshalJSON(data []byte) error {
	var in eventJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	spec, err := timeSpecFrom(in.Start.DateTime, in.Start.Date, in.Start.TimeZone,
		in.End.DateTime, in.End.Date)
	if err != nil {
		return err
	}

	*e = Event{
		ID:          in.ID,
		Title:       in.Title,
		Description: in.Description,
		Location:    in.Location,
		Time:        spec,
	}
	return nil
}

// toEvent converts a Google Calendar event to an Event.
func toEvent(event *calendar.Event) (Event, error) {
	if event == nil {
		return Event{}, fmt.Errorf("empty event")
	}

	var startDT, startDate, tz, endDT, endDate string
	if event.Start != nil {
		startDT, startDate, tz = event.Start.DateTime, event.Start.Date, event.Start.TimeZone
	}
	if event.End != nil {
		endDT, endDate = event.End.DateTime, event.End.Date
	}

	spec, err := timeSpecFrom(startDT, startDate, tz, endDT, endDate)
	if err != nil {
		return Event{}, fmt.Errorf("event %s: %w", event.Id, err)
	}

	return Event{
		ID:          event.Id,
		Title:       event.Summary,
		Description: event.Description,
		Location:    event.Location,
		Time:        spec,
	}, nil
}

func timeSpecFrom(startDT, startDate, tz, endDT, endDate string) (TimeSpec, error) {
	if startDT != "" {
		start, err := time.Parse(time.RFC3339, startDT)
		if err != nil {
			return nil, fmt.Errorf("invalid start dateTime %q: %w", startDT, err)
		}
		end, err := time.Parse(time.RFC3339, endDT)
		if err != nil {
			return nil, fmt.Errorf("invalid end dateTime %q: %w", endDT, err)
		}
		return Timed{Start: start, End: end, TimeZone: tz}, nil
	}

	if startDate != "" {
		start, err := ParseDate(startDate)
		if err != nil {
			return nil, err
		}
		end, err := ParseDate(endDate)
		if err != nil {
			return nil, err
		}
		return AllDay{StartDate: start, EndDate: end}, nil
	}

	return nil, fmt.Errorf("event has neither dateTime nor date")
}

// eventDateTimes renders a TimeSpec as the Store's start and end objects.
func eventDateTimes(spec TimeSpec, defaultZone string) (start, end *calendar.EventDateTime) {
	switch t := spec.(type) {
	case Timed:
		tz := t.TimeZone
		if tz == "" {
			tz = defaultZone
		}
		return &calendar.EventDateTime{DateTime: t.Start.Format(time.RFC3339), TimeZone: tz},
			&calendar.EventDateTime{DateTime: t.End.Format(time.RFC3339), TimeZone: tz}
	case AllDay:
		return &calendar.EventDateTime{Date: t.StartDate.String()},
			&calendar.EventDateTime{Date: t.EndDate.String()}
	}
	return nil, nil
}
