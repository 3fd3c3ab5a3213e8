// Package calendartest provides an in-memory fake of the Calendar v3 events
// API for tests.
package calendartest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const eventsPrefix = "/calendars/primary/events"

// Request is one request received by the fake.
type Request struct {
	Method string
	Path   string
	Query  string
	Body   string
}

// Server is a fake Calendar Store backed by a map.
type Server struct {
	*httptest.Server

	// PageSize splits list responses into pages when positive.
	PageSize int

	mu       sync.Mutex
	events   map[string]*calendar.Event
	deleted  map[string]bool
	nextID   int
	requests []Request
	failures []int
}

// NewServer starts a fake server that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		events:  make(map[string]*calendar.Event),
		deleted: make(map[string]bool),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// ClientOptions returns the options that point a Calendar service at s.
func (s *Server) ClientOptions() []option.ClientOption {
	return []option.ClientOption{
		option.WithEndpoint(s.URL + "/"),
		option.WithHTTPClient(s.Client()),
	}
}

// Seed stores a copy of ev and returns its id. An empty id is assigned.
func (s *Server) Seed(ev *calendar.Event) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *ev
	if cp.Id == "" {
		cp.Id = s.newID()
	}
	s.events[cp.Id] = &cp
	return cp.Id
}

// Event returns a copy of the stored event, or nil.
func (s *Server) Event(id string) *calendar.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.events[id]
	if !ok {
		return nil
	}
	cp := *ev
	return &cp
}

// Len returns the number of stored events.
func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// Requests returns every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Mutations counts received insert, patch and delete requests.
func (s *Server) Mutations() int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method != http.MethodGet {
			n++
		}
	}
	return n
}

// FailNext makes the next request fail with the given HTTP status. Calls
// queue up.
func (s *Server) FailNext(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, status)
}

func (s *Server) newID() string {
	s.nextID++
	return fmt.Sprintf("evt%03d", s.nextID)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	var body []byte
	if r.Body != nil {
		var raw json.RawMessage
		_ = json.NewDecoder(r.Body).Decode(&raw)
		body = raw
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: string(body)})

	if len(s.failures) > 0 {
		status := s.failures[0]
		s.failures = s.failures[1:]
		writeError(w, status, http.StatusText(status))
		return
	}

	if !strings.HasPrefix(r.URL.Path, eventsPrefix) {
		writeError(w, http.StatusNotFound, "unknown calendar")
		return
	}
	id := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, eventsPrefix), "/")

	switch {
	case id == "" && r.Method == http.MethodGet:
		s.list(w, r)
	case id == "" && r.Method == http.MethodPost:
		s.insert(w, body)
	case id != "" && r.Method == http.MethodGet:
		s.get(w, id)
	case id != "" && r.Method == http.MethodPatch:
		s.patch(w, id, body)
	case id != "" && r.Method == http.MethodDelete:
		s.remove(w, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	loc := time.UTC
	if tz := q.Get("timeZone"); tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}

	timeMin, err := time.Parse(time.RFC3339, q.Get("timeMin"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid timeMin")
		return
	}
	timeMax, err := time.Parse(time.RFC3339, q.Get("timeMax"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid timeMax")
		return
	}
	keyword := strings.ToLower(q.Get("q"))

	type match struct {
		ev    *calendar.Event
		start time.Time
	}
	var matches []match
	for _, ev := range s.events {
		start, end, ok := bounds(ev, loc)
		if !ok || !start.Before(timeMax) || !end.After(timeMin) {
			continue
		}
		if keyword != "" && !containsFold(ev, keyword) {
			continue
		}
		matches = append(matches, match{ev: ev, start: start})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].start.Equal(matches[j].start) {
			return matches[i].ev.Id < matches[j].ev.Id
		}
		return matches[i].start.Before(matches[j].start)
	})

	offset, _ := strconv.Atoi(q.Get("pageToken"))
	if offset > len(matches) {
		offset = len(matches)
	}
	end := len(matches)
	if s.PageSize > 0 && offset+s.PageSize < end {
		end = offset + s.PageSize
	}

	resp := &calendar.Events{Kind: "calendar#events", TimeZone: loc.String(), Items: []*calendar.Event{}}
	for _, m := range matches[offset:end] {
		resp.Items = append(resp.Items, m.ev)
	}
	if end < len(matches) {
		resp.NextPageToken = strconv.Itoa(end)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) insert(w http.ResponseWriter, body []byte) {
	var ev calendar.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid event body")
		return
	}
	if msg := checkTimes(&ev); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	ev.Id = s.newID()
	ev.Status = "confirmed"
	s.events[ev.Id] = &ev
	writeJSON(w, http.StatusOK, &ev)
}

func (s *Server) get(w http.ResponseWriter, id string) {
	ev, ok := s.lookup(w, id)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) patch(w http.ResponseWriter, id string, body []byte) {
	ev, ok := s.lookup(w, id)
	if !ok {
		return
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		writeError(w, http.StatusBadRequest, "invalid patch body")
		return
	}

	updated := *ev
	for key, raw := range fields {
		var err error
		switch key {
		case "summary":
			err = json.Unmarshal(raw, &updated.Summary)
		case "description":
			err = json.Unmarshal(raw, &updated.Description)
		case "location":
			err = json.Unmarshal(raw, &updated.Location)
		case "start":
			updated.Start = &calendar.EventDateTime{}
			err = json.Unmarshal(raw, updated.Start)
		case "end":
			updated.End = &calendar.EventDateTime{}
			err = json.Unmarshal(raw, updated.End)
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid field "+key)
			return
		}
	}
	if msg := checkTimes(&updated); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	s.events[id] = &updated
	writeJSON(w, http.StatusOK, &updated)
}

func (s *Server) remove(w http.ResponseWriter, id string) {
	if _, ok := s.lookup(w, id); !ok {
		return
	}
	delete(s.events, id)
	s.deleted[id] = true
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) lookup(w http.ResponseWriter, id string) (*calendar.Event, bool) {
	if s.deleted[id] {
		writeError(w, http.StatusGone, "Resource has been deleted")
		return nil, false
	}
	ev, ok := s.events[id]
	if !ok {
		writeError(w, http.StatusNotFound, "Not Found")
		return nil, false
	}
	return ev, true
}

// checkTimes mirrors the Store's rejection of mixed or inverted times.
func checkTimes(ev *calendar.Event) string {
	if ev.Start == nil || ev.End == nil {
		return "Missing start or end"
	}
	if (ev.Start.DateTime == "") != (ev.End.DateTime == "") || (ev.Start.Date == "") != (ev.End.Date == "") {
		return "Start and end must use the same type"
	}
	start, end, ok := bounds(ev, time.UTC)
	if !ok {
		return "Invalid start or end"
	}
	if !end.After(start) {
		return "The specified time range is empty."
	}
	return ""
}

func bounds(ev *calendar.Event, loc *time.Location) (start, end time.Time, ok bool) {
	parse := func(dt *calendar.EventDateTime) (time.Time, bool) {
		if dt == nil {
			return time.Time{}, false
		}
		if dt.DateTime != "" {
			t, err := time.Parse(time.RFC3339, dt.DateTime)
			return t, err == nil
		}
		t, err := time.ParseInLocation("2006-01-02", dt.Date, loc)
		return t, err == nil
	}

	start, okStart := parse(ev.Start)
	end, okEnd := parse(ev.End)
	return start, end, okStart && okEnd
}

func containsFold(ev *calendar.Event, keyword string) bool {
	for _, field := range []string{ev.Summary, ev.Description, ev.Location} {
		if strings.Contains(strings.ToLower(field), keyword) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    status,
			"message": message,
		},
	})
}
