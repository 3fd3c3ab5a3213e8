package calendar

import (
	"fmt"
	"strings"
	"time"
)

// DayRange returns local midnight of date's day through the last second
// before the next local midnight.
func DayRange(date time.Time, loc *time.Location) (start, end time.Time) {
	d := DateOf(date.In(loc))
	start = d.In(loc)
	end = d.AddDays(1).In(loc).Add(-time.Second)
	return start, end
}

// WeekRange returns Monday 00:00:00 through Sunday 23:59:59 of the week
// containing date, in loc.
func WeekRange(date time.Time, loc *time.Location) (start, end time.Time) {
	local := date.In(loc)
	offset := (int(local.Weekday()) + 6) % 7 // Monday=0
	monday := DateOf(local).AddDays(-offset)
	start = monday.In(loc)
	end = monday.AddDays(7).In(loc).Add(-time.Second)
	return start, end
}

// FormatISO renders t in loc as RFC 3339 with second precision.
func FormatISO(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(time.RFC3339)
}

var offsetLessLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseISO parses an ISO 8601 timestamp. Offsets, a trailing Z and fractional
// seconds are accepted; a timestamp without an offset is read in loc.
func ParseISO(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range offsetLessLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid ISO 8601 timestamp %q", s)
}

// ParseDate accepts YYYY-MM-DD or YYYY/MM/DD.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(dateLayout, strings.ReplaceAll(s, "/", "-"))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD or YYYY/MM/DD", s)
	}
	return DateOf(t), nil
}

// ParseLocalDateTime accepts "YYYY-MM-DD HH:MM" or "YYYY/MM/DD HH:MM" in loc.
func ParseLocalDateTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	t, err := time.ParseInLocation("2006-01-02 15:04", strings.ReplaceAll(s, "/", "-"), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid local time %q, expected YYYY-MM-DD HH:MM", s)
	}
	return t, nil
}
