// Package google manages the OAuth2 credentials calm uses for the Calendar API.
//
// The desktop OAuth client (credentials.json) is imported once through
// ImportClientJSON. The first command that needs the calendar runs the
// loopback authorization flow and persists token.json next to it. Later runs
// refresh the token silently through FileTokenProvider.
//
// The TokenProvider interface decouples the calendar client from where tokens
// come from, so tests can supply a static token.
package google
