package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Attribute keys shared by every calm log line.
const (
	KeyOperation = "operation"
	KeyTool      = "tool"
	KeyStep      = "step"
	KeyState     = "state"
	KeyModel     = "model"
	KeyEventID   = "event_id"
	KeyDuration  = "duration"
	KeyStatus    = "status"
	KeyError     = "error"
)

// Status values. instrumentation has the same constants; it imports this
// package, not the other way round.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

var levels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"":        slog.LevelWarn,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// New builds the process logger. level is debug, info, warn or error (empty
// means warn); format is text or json.
func New(w io.Writer, level, format string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("unsupported log format: %s", format)
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	if lvl, ok := levels[strings.ToLower(strings.TrimSpace(level))]; ok {
		return lvl, nil
	}
	return slog.LevelWarn, fmt.Errorf("unknown log level: %s", level)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// WithOperation scopes logger to one operation, e.g. "agent.run".
func WithOperation(logger *slog.Logger, operation string) *slog.Logger {
	return logger.With(Operation(operation))
}

// WithTool scopes logger to one tool.
func WithTool(logger *slog.Logger, tool string) *slog.Logger {
	return logger.With(Tool(tool))
}

// Attribute constructors.
func Operation(op string) slog.Attr  { return slog.String(KeyOperation, op) }
func Tool(tool string) slog.Attr     { return slog.String(KeyTool, tool) }
func State(state string) slog.Attr   { return slog.String(KeyState, state) }
func Model(model string) slog.Attr   { return slog.String(KeyModel, model) }
func EventID(id string) slog.Attr    { return slog.String(KeyEventID, id) }
func Status(status string) slog.Attr { return slog.String(KeyStatus, status) }

// Step is the 1-based agent round-trip.
func Step(n int) slog.Attr { return slog.Int(KeyStep, n) }

// Err returns the error attribute, or an empty group that slog omits when
// err is nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// SanitizeToken describes a secret by its length only.
func SanitizeToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	return fmt.Sprintf("[token:%d chars]", len(token))
}

// Truncate shortens s to at most n runes, marking the cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
