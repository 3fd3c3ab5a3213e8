package calendar

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	calendar "google.golang.org/api/calendar/v3"

	"github.com/calm-cli/calm/internal/apperr"
	"github.com/calm-cli/calm/internal/calendar/calendartest"
	"github.com/calm-cli/calm/internal/config"
)

func newTestClient(t *testing.T) (*Client, *calendartest.Server) {
	t.Helper()

	cfg, err := config.Default().ForZone("Asia/Taipei")
	require.NoError(t, err)

	srv := calendartest.NewServer(t)
	client, err := NewClientWithOptions(context.Background(), cfg, srv.ClientOptions())
	require.NoError(t, err)
	return client, srv
}

func timedAt(loc *time.Location, day, hour int) *calendar.EventDateTime {
	return &calendar.EventDateTime{
		DateTime: time.Date(2025, 8, day, hour, 0, 0, 0, loc).Format(time.RFC3339),
		TimeZone: loc.String(),
	}
}

func TestClient_ListEventsBetween(t *testing.T) {
	client, srv := newTestClient(t)
	loc := client.Location()
	ctx := context.Background()

	srv.Seed(&calendar.Event{Summary: "Late meeting", Start: timedAt(loc, 14, 16), End: timedAt(loc, 14, 17)})
	srv.Seed(&calendar.Event{Summary: "Early meeting", Start: timedAt(loc, 14, 9), End: timedAt(loc, 14, 10)})
	srv.Seed(&calendar.Event{Summary: "Tomorrow", Start: timedAt(loc, 15, 9), End: timedAt(loc, 15, 10)})
	srv.Seed(&calendar.Event{Summary: "Holiday",
		Start: &calendar.EventDateTime{Date: "2025-08-14"}, End: &calendar.EventDateTime{Date: "2025-08-15"}})

	start, end := DayRange(time.Date(2025, 8, 14, 12, 0, 0, 0, loc), loc)
	events, err := client.ListEventsBetween(ctx, start, end, "")
	require.NoError(t, err)

	var titles []string
	for _, ev := range events {
		titles = append(titles, ev.Title)
	}
	assert.Equal(t, []string{"Holiday", "Early meeting", "Late meeting"}, titles)

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Query, "singleEvents=true")
	assert.Contains(t, reqs[0].Query, "orderBy=startTime")
	assert.Contains(t, reqs[0].Query, "timeZone=Asia%2FTaipei")
}

func TestClient_ListEventsBetween_QueryAndPages(t *testing.T) {
	client, srv := newTestClient(t)
	loc := client.Location()
	srv.PageSize = 2

	for h := 8; h < 13; h++ {
		srv.Seed(&calendar.Event{Summary: "Sync", Start: timedAt(loc, 14, h), End: timedAt(loc, 14, h+1)})
	}
	srv.Seed(&calendar.Event{Summary: "Lunch", Location: "大阪", Start: timedAt(loc, 14, 13), End: timedAt(loc, 14, 14)})

	start, end := DayRange(time.Date(2025, 8, 14, 0, 0, 0, 0, loc), loc)

	all, err := client.ListEventsBetween(context.Background(), start, end, "")
	require.NoError(t, err)
	assert.Len(t, all, 6)
	assert.Len(t, srv.Requests(), 3, "six events in pages of two")

	osaka, err := client.ListEventsBetween(context.Background(), start, end, "大阪")
	require.NoError(t, err)
	require.Len(t, osaka, 1)
	assert.Equal(t, "Lunch", osaka[0].Title)
}

func TestClient_ListEventsBetween_InvertedRange(t *testing.T) {
	client, srv := newTestClient(t)
	now := time.Now()

	_, err := client.ListEventsBetween(context.Background(), now, now.Add(-time.Hour), "")
	assert.ErrorIs(t, err, apperr.InvalidArgument)
	assert.Empty(t, srv.Requests())
}

func TestClient_CreateAndGet(t *testing.T) {
	client, srv := newTestClient(t)
	loc := client.Location()
	ctx := context.Background()

	created, err := client.CreateEvent(ctx, NewEvent{
		Title:    "Dentist",
		Location: "Clinic",
		Time: Timed{
			Start: time.Date(2025, 8, 14, 14, 0, 0, 0, loc),
			End:   time.Date(2025, 8, 14, 15, 0, 0, 0, loc),
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "Asia/Taipei", created.Time.(Timed).TimeZone, "default zone applied")

	got, err := client.GetEvent(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dentist", got.Title)
	assert.Equal(t, "Clinic", got.Location)

	allDay, err := client.CreateEvent(ctx, NewEvent{
		Title: "Trip",
		Time:  AllDay{StartDate: Date{2025, time.August, 20}, EndDate: Date{2025, time.August, 23}},
	})
	require.NoError(t, err)
	stored := srv.Event(allDay.ID)
	assert.Equal(t, "2025-08-20", stored.Start.Date)
	assert.Equal(t, "2025-08-23", stored.End.Date, "exclusive end kept exactly")
}

func TestClient_CreateEvent_Invalid(t *testing.T) {
	client, srv := newTestClient(t)
	loc := client.Location()
	at := time.Date(2025, 8, 14, 14, 0, 0, 0, loc)

	tests := []struct {
		name  string
		input NewEvent
	}{
		{"no time", NewEvent{Title: "x"}},
		{"end before start", NewEvent{Title: "x", Time: Timed{Start: at, End: at.Add(-time.Hour)}}},
		{"all-day same date", NewEvent{Title: "x", Time: AllDay{StartDate: DateOf(at), EndDate: DateOf(at)}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.CreateEvent(context.Background(), tt.input)
			assert.ErrorIs(t, err, apperr.InvalidArgument)
		})
	}
	assert.Zero(t, srv.Mutations())
}

func TestClient_UpdateEvent(t *testing.T) {
	client, srv := newTestClient(t)
	loc := client.Location()
	ctx := context.Background()

	id := srv.Seed(&calendar.Event{Summary: "Meeting", Description: "old", Start: timedAt(loc, 14, 9), End: timedAt(loc, 14, 10)})

	title := "Interview"
	updated, err := client.UpdateEvent(ctx, id, Patch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Interview", updated.Title)
	assert.Equal(t, "old", updated.Description, "untouched fields survive")
	assert.Equal(t, time.Date(2025, 8, 14, 9, 0, 0, 0, loc), updated.Time.(Timed).Start.In(loc))

	// Switch to all-day and back.
	updated, err = client.UpdateEvent(ctx, id, Patch{AllDay: &AllDay{
		StartDate: Date{2025, time.August, 16}, EndDate: Date{2025, time.August, 17}}})
	require.NoError(t, err)
	assert.True(t, updated.IsAllDay())
	assert.Empty(t, srv.Event(id).Start.DateTime)

	updated, err = client.UpdateEvent(ctx, id, Patch{Timed: &Timed{
		Start: time.Date(2025, 8, 16, 9, 0, 0, 0, loc),
		End:   time.Date(2025, 8, 16, 11, 0, 0, 0, loc),
	}})
	require.NoError(t, err)
	assert.False(t, updated.IsAllDay())
	assert.Empty(t, srv.Event(id).Start.Date)

	last := srv.Requests()[len(srv.Requests())-1]
	assert.Equal(t, http.MethodPatch, last.Method)
	assert.True(t, strings.Contains(last.Body, `"date":null`), last.Body)
}

func TestClient_UpdateEvent_Invalid(t *testing.T) {
	client, srv := newTestClient(t)
	ctx := context.Background()

	_, err := client.UpdateEvent(ctx, "evt001", Patch{})
	assert.ErrorIs(t, err, apperr.InvalidArgument)

	d := Date{2025, time.August, 16}
	_, err = client.UpdateEvent(ctx, "evt001", Patch{
		Timed:  &Timed{Start: time.Now(), End: time.Now().Add(time.Hour)},
		AllDay: &AllDay{StartDate: d, EndDate: d.AddDays(1)},
	})
	assert.ErrorIs(t, err, apperr.InvalidArgument)

	assert.Empty(t, srv.Requests())
}

func TestClient_DeleteEvent(t *testing.T) {
	client, srv := newTestClient(t)
	loc := client.Location()
	ctx := context.Background()

	id := srv.Seed(&calendar.Event{Summary: "Gone soon", Start: timedAt(loc, 14, 9), End: timedAt(loc, 14, 10)})

	require.NoError(t, client.DeleteEvent(ctx, id))
	assert.Zero(t, srv.Len())

	err := client.DeleteEvent(ctx, id)
	assert.ErrorIs(t, err, apperr.NotFound, "already deleted")

	_, err = client.GetEvent(ctx, "missing")
	assert.ErrorIs(t, err, apperr.NotFound)
}

func TestClient_ErrorClassification(t *testing.T) {
	client, srv := newTestClient(t)
	ctx := context.Background()

	tests := []struct {
		status int
		want   *apperr.Error
	}{
		{http.StatusUnauthorized, apperr.Auth},
		{http.StatusForbidden, apperr.Auth},
		{http.StatusBadRequest, apperr.InvalidArgument},
		{http.StatusInternalServerError, apperr.Upstream},
		{http.StatusNotFound, apperr.NotFound},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv.FailNext(tt.status)
			_, err := client.GetEvent(ctx, "any")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClient_ContextCanceled(t *testing.T) {
	client, _ := newTestClient(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetEvent(ctx, "any")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, apperr.Recoverable(err))
}
