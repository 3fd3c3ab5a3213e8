package google

import calendar "google.golang.org/api/calendar/v3"

// DefaultOAuthScopes are the scopes requested when authorizing calm.
//
// Full calendar access is needed because the agent creates, updates and
// deletes events on the primary calendar.
var DefaultOAuthScopes = []string{
	calendar.CalendarScope,
}
