package instrumentation

import (
	"context"
	"log/slog"
	"time"
)

// ToolInvocation is the audit record of one calendar tool call.
type ToolInvocation struct {
	Tool string

	// Arguments is the raw JSON argument object.
	Arguments string

	// Origin is "agent" or "mcp".
	Origin string

	StartTime time.Time
	Duration  time.Duration
	Success   bool

	// Kind is the error taxonomy tag, empty on success.
	Kind  string
	Error string

	TraceID string
	SpanID  string
}

// NewToolInvocation starts timing a call to tool.
func NewToolInvocation(tool string) *ToolInvocation {
	return &ToolInvocation{Tool: tool, StartTime: time.Now()}
}

// WithArguments records the raw argument object.
func (ti *ToolInvocation) WithArguments(args string) *ToolInvocation {
	ti.Arguments = args
	return ti
}

// WithOrigin records where the call came from.
func (ti *ToolInvocation) WithOrigin(origin string) *ToolInvocation {
	ti.Origin = origin
	return ti
}

// WithSpanContext copies the trace and span ids from ctx.
func (ti *ToolInvocation) WithSpanContext(ctx context.Context) *ToolInvocation {
	ti.TraceID = GetTraceID(ctx)
	ti.SpanID = GetSpanID(ctx)
	return ti
}

// Complete stops the clock and records the outcome.
func (ti *ToolInvocation) Complete(success bool, kind string, err error) *ToolInvocation {
	ti.Duration = time.Since(ti.StartTime)
	ti.Success = success
	ti.Kind = kind
	if err != nil {
		ti.Error = err.Error()
	}
	return ti
}

// Status is the metric status label of the call.
func (ti *ToolInvocation) Status() string {
	if ti.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns the record as slog attributes. Empty fields are left out.
func (ti *ToolInvocation) LogAttrs(includeArguments bool) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("tool", ti.Tool),
		slog.Duration("duration", ti.Duration),
		slog.Bool("success", ti.Success),
	}
	optional := []struct{ key, value string }{
		{"origin", ti.Origin},
		{"kind", ti.Kind},
		{"trace_id", ti.TraceID},
		{"span_id", ti.SpanID},
		{"error", ti.Error},
	}
	if includeArguments {
		optional = append(optional, struct{ key, value string }{"arguments", ti.Arguments})
	}
	for _, o := range optional {
		if o.value != "" {
			attrs = append(attrs, slog.String(o.key, o.value))
		}
	}
	return attrs
}

// AuditLogger writes one line per finished tool call. A nil or disabled
// AuditLogger writes nothing.
type AuditLogger struct {
	logger           *slog.Logger
	includeArguments bool
	enabled          bool
}

// NewAuditLogger creates an AuditLogger. A nil logger means slog.Default.
func NewAuditLogger(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:           logger,
		includeArguments: config.IncludeArguments,
		enabled:          config.Enabled,
	}
}

// LogToolInvocation logs successes at info as tool_executed and failures at
// warn as tool_failed.
func (al *AuditLogger) LogToolInvocation(ti *ToolInvocation) {
	if al == nil || !al.enabled {
		return
	}
	level, msg := slog.LevelInfo, "tool_executed"
	if !ti.Success {
		level, msg = slog.LevelWarn, "tool_failed"
	}
	al.logger.LogAttrs(context.Background(), level, msg, ti.LogAttrs(al.includeArguments)...)
}
