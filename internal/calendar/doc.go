// Package calendar provides typed access to the primary Google Calendar.
//
// Events are normalized into a TimeSpec variant: Timed for events with start
// and end instants, AllDay for whole-day events whose end date is exclusive,
// as the Calendar API defines it. Failures are classified with the apperr
// taxonomy so callers can tell a missing event from a broken transport.
//
// Example usage:
//
//	client, err := calendar.NewClient(ctx, cfg, tokenProvider)
//	if err != nil {
//	    return err
//	}
//
//	start, end := calendar.DayRange(time.Now(), cfg.Location)
//	events, err := client.ListEventsBetween(ctx, start, end, "")
package calendar
