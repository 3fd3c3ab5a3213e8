package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/calm-cli/calm/internal/calendar"
	"github.com/calm-cli/calm/internal/server"
	"github.com/calm-cli/calm/internal/tools/catalog"
)

const (
	SettingsURI = "calm://settings"
	TodayURI    = "calendar://today"
)

// RegisterCalendarResources registers the settings and today resources. now
// is the clock, time.Now outside tests.
func RegisterCalendarResources(s *mcpserver.MCPServer, sc *server.ServerContext, now func() time.Time) error {
	settingsResource := mcp.NewResource(
		SettingsURI,
		"Calendar Settings",
		mcp.WithResourceDescription("Configured time zone and the current local time"),
		mcp.WithMIMEType("application/json"),
	)
	s.AddResource(settingsResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleSettings(ctx, request, sc, now)
	})

	todayResource := mcp.NewResource(
		TodayURI,
		"Today's Events",
		mcp.WithResourceDescription("Events of the primary calendar for the current local day"),
		mcp.WithMIMEType("application/json"),
	)
	s.AddResource(todayResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleToday(ctx, request, sc, now)
	})

	return nil
}

func handleSettings(_ context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext, now func() time.Time) ([]mcp.ResourceContents, error) {
	loc := sc.Config().Location
	settings := map[string]any{
		"timezone":           loc.String(),
		"current_time_local": calendar.FormatISO(now(), loc),
		"calendar_ready":     sc.CalendarReady(),
	}
	return jsonContents(request.Params.URI, settings)
}

// handleToday lists the day through the shared executor, so the read is
// instrumented like a list_events_between call.
func handleToday(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext, now func() time.Time) ([]mcp.ResourceContents, error) {
	ex, err := sc.Executor()
	if err != nil {
		return nil, fmt.Errorf("calendar unavailable: %w", err)
	}

	loc := sc.Config().Location
	start, end := calendar.DayRange(now(), loc)
	res := ex.Execute(ctx, catalog.ListEventsBetween, map[string]any{
		"start_iso": calendar.FormatISO(start, loc),
		"end_iso":   calendar.FormatISO(end, loc),
	})
	if !res.OK {
		return nil, fmt.Errorf("failed to list today's events: %w", res.Err)
	}
	return jsonContents(request.Params.URI, res.Payload)
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}
