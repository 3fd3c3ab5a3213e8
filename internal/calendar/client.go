package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/calm-cli/calm/internal/apperr"
	"github.com/calm-cli/calm/internal/config"
	"github.com/calm-cli/calm/internal/google"
	"github.com/calm-cli/calm/internal/instrumentation"
	"github.com/calm-cli/calm/internal/logging"
)

// Client wraps the Google Calendar service for the primary calendar.
type Client struct {
	svc        *calendar.Service
	calendarID string
	zone       string
	loc        *time.Location
	metrics    *instrumentation.Metrics
	logger     *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithMetrics records every Calendar API call on m.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a Calendar client authenticated through provider. It fails
// with an AuthError up front when no usable token exists.
func NewClient(ctx context.Context, cfg *config.Config, provider google.TokenProvider, opts ...Option) (*Client, error) {
	if provider == nil {
		return nil, fmt.Errorf("token provider cannot be nil")
	}

	if _, err := provider.GetToken(ctx); err != nil {
		return nil, err
	}

	httpClient := oauth2.NewClient(ctx, google.TokenSource(ctx, provider))
	return NewClientWithOptions(ctx, cfg, []option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
}

// NewClientWithOptions creates a Calendar client from explicit API client
// options, e.g. an endpoint override for tests.
func NewClientWithOptions(ctx context.Context, cfg *config.Config, clientOpts []option.ClientOption, opts ...Option) (*Client, error) {
	if cfg == nil || cfg.Location == nil {
		return nil, fmt.Errorf("a validated configuration is required")
	}

	svc, err := calendar.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	c := &Client{
		svc:        svc,
		calendarID: PrimaryCalendarID,
		zone:       cfg.TimeZone,
		loc:        cfg.Location,
		logger:     logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Location returns the default zone of the client.
func (c *Client) Location() *time.Location {
	return c.loc
}

// TimeZone returns the IANA name of the default zone.
func (c *Client) TimeZone() string {
	return c.zone
}

// observe runs fn inside a Google API span and records its metrics.
func (c *Client) observe(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceCalendar, operation)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	c.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceCalendar, operation, status, duration)

	c.logger.Debug("calendar api call",
		logging.Operation("calendar."+operation),
		logging.Status(status),
		slog.Duration(logging.KeyDuration, duration),
		logging.Err(err))

	return err
}

// ListEventsBetween lists events of the primary calendar overlapping
// [start, end], expanded to single occurrences, ordered by start time.
// query is passed through verbatim as a keyword filter.
func (c *Client) ListEventsBetween(ctx context.Context, start, end time.Time, query string) ([]Event, error) {
	const op = "calendar.list"
	if end.Before(start) {
		return nil, apperr.Invalid(op, "range end %s is before start %s",
			end.Format(time.RFC3339), start.Format(time.RFC3339))
	}

	var events []Event
	err := c.observe(ctx, instrumentation.OperationList, func(ctx context.Context) error {
		call := c.svc.Events.List(c.calendarID).
			TimeMin(start.Format(time.RFC3339)).
			TimeMax(end.Format(time.RFC3339)).
			SingleEvents(true).
			OrderBy("startTime").
			TimeZone(c.zone)

		if query != "" {
			call = call.Q(query)
		}

		return call.Pages(ctx, func(page *calendar.Events) error {
			for _, item := range page.Items {
				event, err := toEvent(item)
				if err != nil {
					return err
				}
				events = append(events, event)
			}
			return nil
		})
	})
	if err != nil {
		return nil, classify(op, fmt.Errorf("failed to list events: %w", err))
	}

	return events, nil
}

// GetEvent retrieves an event by id.
func (c *Client) GetEvent(ctx context.Context, id string) (*Event, error) {
	const op = "calendar.get"
	if id == "" {
		return nil, apperr.Invalid(op, "event id must not be empty")
	}

	var event Event
	err := c.observe(ctx, instrumentation.OperationGet, func(ctx context.Context) error {
		item, err := c.svc.Events.Get(c.calendarID, id).Context(ctx).Do()
		if err != nil {
			return err
		}
		event, err = toEvent(item)
		return err
	})
	if err != nil {
		return nil, classify(op, fmt.Errorf("failed to get event %s: %w", id, err))
	}

	return &event, nil
}

// CreateEvent inserts a new event. Exactly one time shape must be given.
func (c *Client) CreateEvent(ctx context.Context, input NewEvent) (*Event, error) {
	const op = "calendar.create"
	if input.Time == nil {
		return nil, apperr.Invalid(op, "either a timed or an all-day time is required")
	}
	if err := input.Time.validate(op); err != nil {
		return nil, err
	}

	body := &calendar.Event{
		Summary:     input.Title,
		Description: input.Description,
		Location:    input.Location,
	}
	body.Start, body.End = eventDateTimes(input.Time, c.zone)

	var event Event
	err := c.observe(ctx, instrumentation.OperationCreate, func(ctx context.Context) error {
		created, err := c.svc.Events.Insert(c.calendarID, body).Context(ctx).Do()
		if err != nil {
			return err
		}
		event, err = toEvent(created)
		return err
	})
	if err != nil {
		return nil, classify(op, fmt.Errorf("failed to create event: %w", err))
	}

	return &event, nil
}

// UpdateEvent patches an existing event; only the fields set in p change.
func (c *Client) UpdateEvent(ctx context.Context, id string, p Patch) (*Event, error) {
	const op = "calendar.update"
	if id == "" {
		return nil, apperr.Invalid(op, "event id must not be empty")
	}
	if p.IsEmpty() {
		return nil, apperr.Invalid(op, "patch changes nothing")
	}
	if p.Timed != nil && p.AllDay != nil {
		return nil, apperr.Invalid(op, "patch sets both timed and all-day times")
	}

	body := &calendar.Event{}
	if p.Title != nil {
		body.Summary = *p.Title
		body.ForceSendFields = append(body.ForceSendFields, "Summary")
	}
	if p.Description != nil {
		body.Description = *p.Description
		body.ForceSendFields = append(body.ForceSendFields, "Description")
	}
	if p.Location != nil {
		body.Location = *p.Location
		body.ForceSendFields = append(body.ForceSendFields, "Location")
	}

	switch {
	case p.Timed != nil:
		if err := p.Timed.validate(op); err != nil {
			return nil, err
		}
		body.Start, body.End = eventDateTimes(*p.Timed, c.zone)
		// Switching from all-day must clear the stored date.
		body.Start.NullFields = []string{"Date"}
		body.End.NullFields = []string{"Date"}
	case p.AllDay != nil:
		if err := p.AllDay.validate(op); err != nil {
			return nil, err
		}
		body.Start, body.End = eventDateTimes(*p.AllDay, c.zone)
		body.Start.NullFields = []string{"DateTime", "TimeZone"}
		body.End.NullFields = []string{"DateTime", "TimeZone"}
	}

	var event Event
	err := c.observe(ctx, instrumentation.OperationUpdate, func(ctx context.Context) error {
		updated, err := c.svc.Events.Patch(c.calendarID, id, body).Context(ctx).Do()
		if err != nil {
			return err
		}
		event, err = toEvent(updated)
		return err
	})
	if err != nil {
		return nil, classify(op, fmt.Errorf("failed to update event %s: %w", id, err))
	}

	return &event, nil
}

// DeleteEvent removes an event. Deleting an event that is already gone fails
// with NotFound.
func (c *Client) DeleteEvent(ctx context.Context, id string) error {
	const op = "calendar.delete"
	if id == "" {
		return apperr.Invalid(op, "event id must not be empty")
	}

	err := c.observe(ctx, instrumentation.OperationDelete, func(ctx context.Context) error {
		return c.svc.Events.Delete(c.calendarID, id).Context(ctx).Do()
	})
	if err != nil {
		return classify(op, fmt.Errorf("failed to delete event %s: %w", id, err))
	}
	return nil
}
