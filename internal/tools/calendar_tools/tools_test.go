package calendar_tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calm-cli/calm/internal/apperr"
	"github.com/calm-cli/calm/internal/calendar"
	"github.com/calm-cli/calm/internal/calendar/calendartest"
	"github.com/calm-cli/calm/internal/config"
	"github.com/calm-cli/calm/internal/server"
	"github.com/calm-cli/calm/internal/tools/catalog"
	"github.com/calm-cli/calm/internal/tools/executor"
)

func newServerContext(t *testing.T) (*server.ServerContext, *calendartest.Server) {
	t.Helper()
	cfg, err := config.Default().ForZone("Asia/Taipei")
	require.NoError(t, err)

	srv := calendartest.NewServer(t)
	sc := server.NewServerContext(context.Background(), cfg, nil,
		server.WithStoreFactory(func(ctx context.Context) (executor.Store, error) {
			return calendar.NewClientWithOptions(ctx, cfg, srv.ClientOptions())
		}))
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc, srv
}

func call(t *testing.T, sc *server.ServerContext, name string, args map[string]any) (*mcp.CallToolResult, map[string]any) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	res, err := newHandler(name, sc)(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Content, 1)

	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)

	var envelope map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &envelope))
	return res, envelope
}

func TestRegisterCalendarTools(t *testing.T) {
	sc, _ := newServerContext(t)

	tests := []struct {
		name     string
		readOnly bool
		want     []string
	}{
		{
			name: "all tools",
			want: catalog.Names(),
		},
		{
			name:     "read-only",
			readOnly: true,
			want:     []string{catalog.ListEventsBetween},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := mcpserver.NewMCPServer("calm-test", "test", mcpserver.WithToolCapabilities(true))
			require.NoError(t, RegisterCalendarTools(s, sc, tt.readOnly))

			var got []string
			for name := range s.ListTools() {
				got = append(got, name)
			}
			assert.ElementsMatch(t, tt.want, got)
		})
	}
}

func TestHandler_CreateThenList(t *testing.T) {
	sc, srv := newServerContext(t)

	res, created := call(t, sc, catalog.CreateEvent, map[string]any{
		"title":    "Dentist",
		"start_dt": "2025-08-14T15:00:00+08:00",
	})
	assert.False(t, res.IsError)
	assert.Equal(t, true, created["ok"])
	assert.Equal(t, 1, srv.Len())

	res, listed := call(t, sc, catalog.ListEventsBetween, map[string]any{
		"start_iso": "2025-08-14T00:00:00+08:00",
		"end_iso":   "2025-08-14T23:59:59+08:00",
	})
	assert.False(t, res.IsError)
	assert.Nil(t, listed["query"])

	items, ok := listed["items"].([]any)
	require.True(t, ok)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, "Dentist", item["title"])
	assert.Equal(t, false, item["all_day"])
}

func TestHandler_FailureSetsIsError(t *testing.T) {
	sc, srv := newServerContext(t)

	res, envelope := call(t, sc, catalog.DeleteEvent, map[string]any{"event_id": "missing"})
	assert.True(t, res.IsError)
	assert.Equal(t, false, envelope["ok"])
	assert.Equal(t, string(apperr.KindNotFound), envelope["kind"])
	assert.Zero(t, srv.Mutations())

	res, envelope = call(t, sc, catalog.UpdateEvent, map[string]any{"event_id": "x"})
	assert.True(t, res.IsError)
	assert.Equal(t, string(apperr.KindInvalidArgument), envelope["kind"])
}

func TestHandler_StoreUnavailable(t *testing.T) {
	cfg, err := config.Default().ForZone("Asia/Taipei")
	require.NoError(t, err)

	sc := server.NewServerContext(context.Background(), cfg, nil,
		server.WithStoreFactory(func(context.Context) (executor.Store, error) {
			return nil, apperr.New(apperr.KindAuth, "oauth.token", "no valid token; run: calm configure oauth")
		}))
	defer sc.Shutdown()

	res, envelope := call(t, sc, catalog.ListEventsBetween, map[string]any{
		"start_iso": time.Now().Format(time.RFC3339),
		"end_iso":   time.Now().Add(time.Hour).Format(time.RFC3339),
	})
	assert.True(t, res.IsError)
	assert.Equal(t, string(apperr.KindAuth), envelope["kind"])
	assert.Contains(t, envelope["error"], "calm configure oauth")
}
