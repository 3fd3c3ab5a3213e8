package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func taipei(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Taipei")
	require.NoError(t, err)
	return loc
}

func TestDayRange(t *testing.T) {
	loc := taipei(t)

	start, end := DayRange(time.Date(2025, 8, 14, 15, 30, 0, 0, loc), loc)

	assert.Equal(t, "2025-08-14T00:00:00+08:00", start.Format(time.RFC3339))
	assert.Equal(t, "2025-08-14T23:59:59+08:00", end.Format(time.RFC3339))
	assert.Equal(t, time.Date(2025, 8, 15, 0, 0, 0, 0, loc), end.Add(time.Second))
}

func TestDayRange_ConvertsToLocalDay(t *testing.T) {
	loc := taipei(t)

	// 20:00 UTC on the 13th is already the 14th in Taipei.
	start, _ := DayRange(time.Date(2025, 8, 13, 20, 0, 0, 0, time.UTC), loc)
	assert.Equal(t, "2025-08-14T00:00:00+08:00", start.Format(time.RFC3339))
}

func TestDayRange_DST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 2025-03-09 has 23 hours in New York.
	start, end := DayRange(time.Date(2025, 3, 9, 12, 0, 0, 0, loc), loc)
	assert.Equal(t, "2025-03-09T00:00:00-05:00", start.Format(time.RFC3339))
	assert.Equal(t, "2025-03-09T23:59:59-04:00", end.Format(time.RFC3339))
}

func TestWeekRange(t *testing.T) {
	loc := taipei(t)

	tests := []struct {
		name   string
		anchor time.Time
	}{
		{"wednesday", time.Date(2025, 8, 13, 9, 0, 0, 0, loc)},
		{"monday", time.Date(2025, 8, 11, 0, 0, 0, 0, loc)},
		{"sunday", time.Date(2025, 8, 17, 23, 59, 59, 0, loc)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := WeekRange(tt.anchor, loc)
			assert.Equal(t, "2025-08-11T00:00:00+08:00", start.Format(time.RFC3339))
			assert.Equal(t, "2025-08-17T23:59:59+08:00", end.Format(time.RFC3339))
			assert.Equal(t, time.Monday, start.Weekday())
			assert.Equal(t, time.Sunday, end.Weekday())
		})
	}
}

func TestWeekRange_AcrossMonth(t *testing.T) {
	loc := taipei(t)

	start, end := WeekRange(time.Date(2025, 10, 1, 12, 0, 0, 0, loc), loc)
	assert.Equal(t, "2025-09-29T00:00:00+08:00", start.Format(time.RFC3339))
	assert.Equal(t, "2025-10-05T23:59:59+08:00", end.Format(time.RFC3339))
}

func TestParseISO(t *testing.T) {
	loc := taipei(t)

	tests := []struct {
		in   string
		want string
	}{
		{"2025-08-14T14:00:00+08:00", "2025-08-14T14:00:00+08:00"},
		{"2025-08-14T06:00:00Z", "2025-08-14T06:00:00Z"},
		{"2025-08-14T14:00:00.250+08:00", "2025-08-14T14:00:00+08:00"},
		{"2025-08-14T14:00:00", "2025-08-14T14:00:00+08:00"},
		{"2025-08-14T14:00", "2025-08-14T14:00:00+08:00"},
		{" 2025-08-14 14:00 ", "2025-08-14T14:00:00+08:00"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseISO(tt.in, loc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Format(time.RFC3339))
		})
	}

	for _, bad := range []string{"", "tomorrow", "2025-08-14", "14:00"} {
		_, err := ParseISO(bad, loc)
		assert.Error(t, err, bad)
	}
}

func TestParseDate(t *testing.T) {
	for _, in := range []string{"2025-08-14", "2025/08/14", " 2025/08/14 "} {
		d, err := ParseDate(in)
		require.NoError(t, err, in)
		assert.Equal(t, Date{Year: 2025, Month: time.August, Day: 14}, d)
	}

	for _, bad := range []string{"", "2025-13-01", "14/08/2025", "2025-08-14T00:00:00Z"} {
		_, err := ParseDate(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseLocalDateTime(t *testing.T) {
	loc := taipei(t)

	for _, in := range []string{"2025-08-14 14:30", "2025/08/14 14:30"} {
		got, err := ParseLocalDateTime(in, loc)
		require.NoError(t, err, in)
		assert.Equal(t, "2025-08-14T14:30:00+08:00", got.Format(time.RFC3339))
	}

	_, err := ParseLocalDateTime("2025-08-14", loc)
	assert.Error(t, err)
}

func TestDate(t *testing.T) {
	d := Date{Year: 2024, Month: time.February, Day: 28}

	assert.Equal(t, "2024-02-28", d.String())
	assert.Equal(t, Date{Year: 2024, Month: time.February, Day: 29}, d.AddDays(1))
	assert.Equal(t, Date{Year: 2024, Month: time.March, Day: 1}, d.AddDays(2))
	assert.True(t, d.Before(d.AddDays(1)))
	assert.False(t, d.Before(d))
	assert.True(t, Date{}.IsZero())
}
