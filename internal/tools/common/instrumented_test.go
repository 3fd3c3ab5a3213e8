package common

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/calm-cli/calm/internal/apperr"
	"github.com/calm-cli/calm/internal/instrumentation"
	"github.com/calm-cli/calm/internal/tools/executor"
)

// stubExecutor returns canned results and records the calls it saw.
type stubExecutor struct {
	results map[string]executor.Result
	calls   []string
}

func (s *stubExecutor) Execute(_ context.Context, name string, _ map[string]any) executor.Result {
	s.calls = append(s.calls, name)
	if res, ok := s.results[name]; ok {
		return res
	}
	return executor.Result{Name: name, Err: apperr.New(apperr.KindUnknownTool, name, "unknown tool: %s", name)}
}

func newMetrics(t *testing.T) (*instrumentation.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := instrumentation.NewMetrics(mp.Meter("test"), false)
	require.NoError(t, err)
	return m, reader
}

// toolCounts sums calm_tool_invocations_total by tool and status.
func toolCounts(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	counts := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "calm_tool_invocations_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				tool, _ := dp.Attributes.Value(attribute.Key("tool"))
				status, _ := dp.Attributes.Value(attribute.Key("status"))
				counts[tool.AsString()+"/"+status.AsString()] += dp.Value
			}
		}
	}
	return counts
}

func TestInstrumentedExecutor_PassesResultsThrough(t *testing.T) {
	stub := &stubExecutor{results: map[string]executor.Result{
		"delete_event": {Name: "delete_event", OK: true, Payload: map[string]any{"ok": true}},
	}}
	ie := NewInstrumentedExecutor(stub, nil, nil, OriginAgent)

	res := ie.Execute(context.Background(), "delete_event", map[string]any{"event_id": "e1"})
	assert.True(t, res.OK)
	assert.Equal(t, []string{"delete_event"}, stub.calls)

	res = ie.Execute(context.Background(), "send_email", nil)
	assert.Equal(t, apperr.KindUnknownTool, res.Kind())
}

func TestInstrumentedExecutor_RecordsMetrics(t *testing.T) {
	metrics, reader := newMetrics(t)
	stub := &stubExecutor{results: map[string]executor.Result{
		"list_events_between": {Name: "list_events_between", OK: true, Payload: map[string]any{"ok": true}},
		"delete_event":        {Name: "delete_event", Err: apperr.New(apperr.KindNotFound, "calendar.get", "event e9 not found")},
	}}
	ie := NewInstrumentedExecutor(stub, metrics, nil, OriginAgent)
	ctx := context.Background()

	ie.Execute(ctx, "list_events_between", nil)
	ie.Execute(ctx, "list_events_between", nil)
	ie.Execute(ctx, "delete_event", nil)
	ie.Execute(ctx, strings.Repeat("x", 200), nil)

	assert.Equal(t, map[string]int64{
		"list_events_between/success": 2,
		"delete_event/error":          1,
		"unknown/error":               1,
	}, toolCounts(t, reader))
}

func TestInstrumentedExecutor_AuditLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	audit := instrumentation.NewAuditLogger(logger, instrumentation.AuditLoggingConfig{Enabled: true, IncludeArguments: true})

	stub := &stubExecutor{results: map[string]executor.Result{
		"create_event": {Name: "create_event", OK: true, Payload: map[string]any{"ok": true}},
		"delete_event": {Name: "delete_event", Err: apperr.New(apperr.KindNotFound, "calendar.get", "event e9 not found")},
	}}
	ie := NewInstrumentedExecutor(stub, nil, audit, OriginMCP)
	ctx := context.Background()

	ie.Execute(ctx, "create_event", map[string]any{"title": "Dentist"})
	ie.Execute(ctx, "delete_event", map[string]any{"event_id": "e9"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var ok, failed map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &ok))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &failed))

	assert.Equal(t, "tool_executed", ok["msg"])
	assert.Equal(t, "create_event", ok["tool"])
	assert.Equal(t, "mcp", ok["origin"])
	assert.Equal(t, `{"title":"Dentist"}`, ok["arguments"])

	assert.Equal(t, "tool_failed", failed["msg"])
	assert.Equal(t, "WARN", failed["level"])
	assert.Equal(t, "not_found", failed["kind"])
	assert.Contains(t, failed["error"], "e9")
}
