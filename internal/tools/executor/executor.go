package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/calm-cli/calm/internal/apperr"
	"github.com/calm-cli/calm/internal/calendar"
	"github.com/calm-cli/calm/internal/config"
	"github.com/calm-cli/calm/internal/logging"
	"github.com/calm-cli/calm/internal/tools/catalog"
)

// defaultDuration applies when a timed create or update names only a start.
const defaultDuration = time.Hour

// Store is the subset of the calendar client the executor needs.
type Store interface {
	ListEventsBetween(ctx context.Context, start, end time.Time, query string) ([]calendar.Event, error)
	GetEvent(ctx context.Context, id string) (*calendar.Event, error)
	CreateEvent(ctx context.Context, input calendar.NewEvent) (*calendar.Event, error)
	UpdateEvent(ctx context.Context, id string, p calendar.Patch) (*calendar.Event, error)
	DeleteEvent(ctx context.Context, id string) error
}

// ToolExecutor runs one named tool call.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, args map[string]any) Result
}

// Executor maps tool calls onto the calendar store. It holds no state between
// calls.
type Executor struct {
	store  Store
	loc    *time.Location
	logger *slog.Logger
}

// Option customizes an Executor.
type Option func(*Executor)

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// New creates an Executor. Offset-less timestamps are read in cfg's zone.
func New(store Store, cfg *config.Config, opts ...Option) *Executor {
	e := &Executor{
		store:  store,
		loc:    cfg.Location,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the named tool. Failures are reported in the Result, never
// retried.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]any) Result {
	if args == nil {
		args = map[string]any{}
	}

	var res Result
	switch name {
	case catalog.ListEventsBetween:
		res = e.listEventsBetween(ctx, args)
	case catalog.CreateEvent:
		res = e.createEvent(ctx, args)
	case catalog.DeleteEvent:
		res = e.deleteEvent(ctx, args)
	case catalog.UpdateEvent:
		res = e.updateEvent(ctx, args)
	default:
		res = failed(name, apperr.New(apperr.KindUnknownTool, name, "unknown tool: %s", name))
	}

	if e.logger.Enabled(ctx, slog.LevelDebug) {
		logger := logging.WithTool(e.logger, name)
		call := slog.String("call", logging.Truncate(describe(name, args), 512))
		if id, ok := args["event_id"].(string); ok && id != "" {
			logger = logger.With(logging.EventID(id))
		}
		if res.OK {
			logger.Debug("tool call succeeded", call)
		} else {
			logger.Debug("tool call failed", call, logging.Err(res.Err))
		}
	}
	return res
}

// ExecuteJSON decodes a raw JSON argument object and runs the named tool.
// Malformed arguments fail the call with InvalidArgument.
func ExecuteJSON(ctx context.Context, ex ToolExecutor, name, rawArgs string) Result {
	args := map[string]any{}
	if strings.TrimSpace(rawArgs) != "" {
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return failed(name, apperr.Invalid(name, "arguments are not a JSON object: %v", err))
		}
	}
	return ex.Execute(ctx, name, args)
}

func (e *Executor) listEventsBetween(ctx context.Context, args map[string]any) Result {
	const name = catalog.ListEventsBetween
	a := argReader{op: name, args: args}

	startISO := a.required("start_iso")
	endISO := a.required("end_iso")
	query, hasQuery := a.optional("query")
	start := a.timestamp("start_iso", startISO, e.loc)
	end := a.timestamp("end_iso", endISO, e.loc)
	if a.err != nil {
		return failed(name, a.err)
	}

	items, err := e.store.ListEventsBetween(ctx, start, end, query)
	if err != nil {
		return failed(name, err)
	}
	if items == nil {
		items = []calendar.Event{}
	}

	payload := ListPayload{OK: true, Items: items, StartISO: startISO, EndISO: endISO}
	if hasQuery {
		payload.Query = &query
	}
	return success(name, payload)
}

func (e *Executor) createEvent(ctx context.Context, args map[string]any) Result {
	const name = catalog.CreateEvent
	a := argReader{op: name, args: args}

	title := a.required("title")
	startDT, _ := a.optional("start_dt")
	endDT, _ := a.optional("end_dt")
	startDate, _ := a.optional("start_date")
	endDate, _ := a.optional("end_date")
	description, _ := a.optional("description")
	location, _ := a.optional("location")
	tz, _ := a.optional("timezone")
	loc := a.zone("timezone", tz, e.loc)
	if a.err != nil {
		return failed(name, a.err)
	}

	var spec calendar.TimeSpec
	switch {
	case startDT != "":
		start := a.timestamp("start_dt", startDT, loc)
		end := start.Add(defaultDuration)
		if endDT != "" {
			end = a.timestamp("end_dt", endDT, loc)
		}
		spec = calendar.Timed{Start: start, End: end, TimeZone: tz}
	case startDate != "" && endDate != "":
		spec = calendar.AllDay{
			StartDate: a.date("start_date", startDate),
			EndDate:   a.date("end_date", endDate),
		}
	default:
		a.fail("create_event requires (start_dt[,end_dt]) or (start_date,end_date)")
	}
	if a.err != nil {
		return failed(name, a.err)
	}

	created, err := e.store.CreateEvent(ctx, calendar.NewEvent{
		Title:       title,
		Description: description,
		Location:    location,
		Time:        spec,
	})
	if err != nil {
		return failed(name, err)
	}
	return success(name, CreatePayload{OK: true, Created: created})
}

func (e *Executor) deleteEvent(ctx context.Context, args map[string]any) Result {
	const name = catalog.DeleteEvent
	a := argReader{op: name, args: args}

	id := a.required("event_id")
	if a.err != nil {
		return failed(name, a.err)
	}

	before, err := e.store.GetEvent(ctx, id)
	if err != nil {
		return failed(name, err)
	}
	if err := e.store.DeleteEvent(ctx, id); err != nil {
		return failed(name, err)
	}
	return success(name, DeletePayload{OK: true, Before: before, EventID: id})
}

func (e *Executor) updateEvent(ctx context.Context, args map[string]any) Result {
	const name = catalog.UpdateEvent
	a := argReader{op: name, args: args}

	id := a.required("event_id")
	newTitle, hasTitle := a.optional("new_title")
	newStartDT, _ := a.optional("new_start_dt")
	newEndDT, _ := a.optional("new_end_dt")
	newStartDate, _ := a.optional("new_start_date")
	newEndDate, _ := a.optional("new_end_date")
	description, hasDescription := a.optional("description")
	location, hasLocation := a.optional("location")
	tz, _ := a.optional("timezone")
	loc := a.zone("timezone", tz, e.loc)
	if a.err != nil {
		return failed(name, a.err)
	}

	var patch calendar.Patch
	if hasTitle {
		if strings.TrimSpace(newTitle) == "" {
			return failed(name, apperr.Invalid(name, "new_title must not be empty"))
		}
		patch.Title = &newTitle
	}
	if hasDescription {
		patch.Description = &description
	}
	if hasLocation {
		patch.Location = &location
	}

	switch {
	case newEndDT != "" && newStartDT == "":
		a.fail("new_end_dt requires new_start_dt")
	case newStartDT != "":
		start := a.timestamp("new_start_dt", newStartDT, loc)
		end := start.Add(defaultDuration)
		if newEndDT != "" {
			end = a.timestamp("new_end_dt", newEndDT, loc)
		}
		patch.Timed = &calendar.Timed{Start: start, End: end, TimeZone: tz}
	}

	switch {
	case (newStartDate == "") != (newEndDate == ""):
		a.fail("all-day update needs both new_start_date and new_end_date")
	case newStartDate != "":
		patch.AllDay = &calendar.AllDay{
			StartDate: a.date("new_start_date", newStartDate),
			EndDate:   a.date("new_end_date", newEndDate),
		}
	}

	if patch.Timed != nil && patch.AllDay != nil {
		a.fail("give either timed or all-day fields, not both")
	}
	if a.err != nil {
		return failed(name, a.err)
	}

	zoneOnly := tz != "" && patch.Timed == nil && patch.AllDay == nil
	if patch.IsEmpty() && !zoneOnly {
		return failed(name, apperr.Invalid(name, "update_event needs at least one field to change"))
	}

	before, err := e.store.GetEvent(ctx, id)
	if err != nil {
		return failed(name, err)
	}

	prev, wasTimed := before.Time.(calendar.Timed)
	switch {
	case zoneOnly && !wasTimed:
		return failed(name, apperr.Invalid(name, "timezone cannot be set on an all-day event"))
	case zoneOnly:
		patch.Timed = &calendar.Timed{Start: prev.Start, End: prev.End, TimeZone: tz}
	case patch.Timed != nil && patch.Timed.TimeZone == "" && wasTimed:
		// Keep the event's own zone rather than the configured default.
		patch.Timed.TimeZone = prev.TimeZone
	}

	after, err := e.store.UpdateEvent(ctx, id, patch)
	if err != nil {
		return failed(name, err)
	}
	return success(name, UpdatePayload{OK: true, EventID: id, Before: before, After: after})
}

// argReader extracts string arguments and keeps the first error.
type argReader struct {
	op   string
	args map[string]any
	err  error
}

func (a *argReader) fail(format string, args ...any) {
	if a.err == nil {
		a.err = apperr.Invalid(a.op, format, args...)
	}
}

// optional returns the named string argument and whether it was present.
// JSON null and the empty string count as absent.
func (a *argReader) optional(key string) (string, bool) {
	v, ok := a.args[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		a.fail("%s must be a string, got %T", key, v)
		return "", false
	}
	return s, s != ""
}

func (a *argReader) required(key string) string {
	s, ok := a.optional(key)
	if a.err != nil {
		return ""
	}
	if !ok || strings.TrimSpace(s) == "" {
		a.fail("%s is required", key)
		return ""
	}
	return s
}

func (a *argReader) timestamp(key, value string, loc *time.Location) time.Time {
	if a.err != nil || value == "" {
		return time.Time{}
	}
	t, err := calendar.ParseISO(value, loc)
	if err != nil {
		a.fail("%s: %v", key, err)
		return time.Time{}
	}
	return t
}

func (a *argReader) date(key, value string) calendar.Date {
	if a.err != nil {
		return calendar.Date{}
	}
	d, err := calendar.ParseDate(value)
	if err != nil {
		a.fail("%s: %v", key, err)
		return calendar.Date{}
	}
	return d
}

func (a *argReader) zone(key, name string, fallback *time.Location) *time.Location {
	if a.err != nil || name == "" {
		return fallback
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		a.fail("%s: unknown time zone %q", key, name)
		return fallback
	}
	return loc
}

var _ ToolExecutor = (*Executor)(nil)

func describe(name string, args map[string]any) string {
	raw, err := json.Marshal(args)
	if err != nil {
		return name
	}
	return fmt.Sprintf("%s(%s)", name, raw)
}
