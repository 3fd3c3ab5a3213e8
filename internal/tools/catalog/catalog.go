package catalog

import (
	"maps"
	"slices"

	"github.com/mark3labs/mcp-go/mcp"
)

// Version identifies the shape of the tool declarations. Bump it whenever a
// name, parameter or description changes.
const Version = "1"

// Tool names
const (
	ListEventsBetween = "list_events_between"
	CreateEvent       = "create_event"
	DeleteEvent       = "delete_event"
	UpdateEvent       = "update_event"
)

// Tools returns the declarations of every calendar operation the model may
// request, in a fixed order. All parameters are strings.
func Tools() []mcp.Tool {
	return []mcp.Tool{
		mcp.NewTool(ListEventsBetween,
			mcp.WithDescription("List calendar events in a time range (inclusive). Use local ISO 8601 datetimes with timezone offset. Optionally filter by keyword."),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithString("start_iso",
				mcp.Required(),
				mcp.Description("ISO8601 datetime, e.g. 2025-08-01T00:00:00+08:00"),
			),
			mcp.WithString("end_iso",
				mcp.Required(),
				mcp.Description("ISO8601 datetime, e.g. 2025-08-31T23:59:59+08:00"),
			),
			mcp.WithString("query",
				mcp.Description("Keyword filter, e.g. '大阪' or 'Osaka'"),
			),
		),

		mcp.NewTool(CreateEvent,
			mcp.WithDescription("Create a calendar event. Use either (start_dt,end_dt) for timed event, OR (start_date,end_date) for all-day. end_date is exclusive for all-day."),
			mcp.WithDestructiveHintAnnotation(false),
			mcp.WithString("title",
				mcp.Required(),
				mcp.Description("Event title"),
			),
			mcp.WithString("start_dt",
				mcp.Description("ISO8601 datetime with tz (timed event)"),
			),
			mcp.WithString("end_dt",
				mcp.Description("ISO8601 datetime with tz (timed event); defaults to start_dt + 1 hour"),
			),
			mcp.WithString("start_date",
				mcp.Description("YYYY-MM-DD (all-day)"),
			),
			mcp.WithString("end_date",
				mcp.Description("YYYY-MM-DD (all-day, exclusive)"),
			),
			mcp.WithString("description",
				mcp.Description("Event description"),
			),
			mcp.WithString("location",
				mcp.Description("Event location"),
			),
			mcp.WithString("timezone",
				mcp.Description("IANA tz name; default is the configured time zone"),
			),
		),

		mcp.NewTool(DeleteEvent,
			mcp.WithDescription("Delete one calendar event by event_id. If the user references a title/time, first call list_events_between to obtain the id."),
			mcp.WithDestructiveHintAnnotation(true),
			mcp.WithString("event_id",
				mcp.Required(),
				mcp.Description("Google Calendar event id"),
			),
		),

		mcp.NewTool(UpdateEvent,
			mcp.WithDescription("Update one event by id. For timed updates provide both new_start_dt and new_end_dt (ISO with tz). For all-day provide both new_start_date and new_end_date (YYYY-MM-DD, end exclusive)."),
			mcp.WithDestructiveHintAnnotation(true),
			mcp.WithIdempotentHintAnnotation(true),
			mcp.WithString("event_id",
				mcp.Required(),
				mcp.Description("Google Calendar event id"),
			),
			mcp.WithString("new_title",
				mcp.Description("Replacement title"),
			),
			mcp.WithString("new_start_dt",
				mcp.Description("ISO8601 datetime with tz"),
			),
			mcp.WithString("new_end_dt",
				mcp.Description("ISO8601 datetime with tz; requires new_start_dt"),
			),
			mcp.WithString("new_start_date",
				mcp.Description("YYYY-MM-DD (all-day)"),
			),
			mcp.WithString("new_end_date",
				mcp.Description("YYYY-MM-DD (all-day, exclusive)"),
			),
			mcp.WithString("description",
				mcp.Description("Replacement description"),
			),
			mcp.WithString("location",
				mcp.Description("Replacement location"),
			),
			mcp.WithString("timezone",
				mcp.Description("IANA tz name"),
			),
		),
	}
}

// Names returns the tool names in declaration order.
func Names() []string {
	tools := Tools()
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name
	}
	return names
}

// Lookup returns the declaration of the named tool.
func Lookup(name string) (mcp.Tool, bool) {
	for _, t := range Tools() {
		if t.Name == name {
			return t, true
		}
	}
	return mcp.Tool{}, false
}

// FunctionParameters renders the tool's input schema as the JSON-schema
// object sent with chat-completion function declarations.
func FunctionParameters(tool mcp.Tool) map[string]any {
	props := make(map[string]any, len(tool.InputSchema.Properties))
	maps.Copy(props, tool.InputSchema.Properties)

	params := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(tool.InputSchema.Required) > 0 {
		params["required"] = slices.Clone(tool.InputSchema.Required)
	}
	return params
}
