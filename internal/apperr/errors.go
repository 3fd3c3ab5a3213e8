package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for the agent's catch-and-continue policy.
type Kind string

const (
	// KindAuth indicates credential acquisition or refresh failed. Fatal.
	KindAuth Kind = "auth_error"

	// KindNotFound indicates a referenced event id does not exist.
	KindNotFound Kind = "not_found"

	// KindInvalidArgument indicates malformed or contradictory arguments.
	KindInvalidArgument Kind = "invalid_argument"

	// KindUnknownTool indicates the model requested an undeclared operation.
	KindUnknownTool Kind = "unknown_tool"

	// KindUpstream indicates a transport failure talking to the Calendar Store
	// or the Completion Engine. Fatal.
	KindUpstream Kind = "upstream_failure"
)

// Error is a classified error.
type Error struct {
	Kind Kind   // Failure class
	Op   string // Operation that failed (e.g., "calendar.get", "create_event")
	Err  error  // Underlying cause, may be nil
}

// Error implements the error interface
func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	default:
		return string(e.Kind)
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a sentinel of the same kind, so that
// errors.Is(err, apperr.NotFound) works through any amount of wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is matching.
var (
	Auth            = &Error{Kind: KindAuth}
	NotFound        = &Error{Kind: KindNotFound}
	InvalidArgument = &Error{Kind: KindInvalidArgument}
	UnknownTool     = &Error{Kind: KindUnknownTool}
	Upstream        = &Error{Kind: KindUpstream}
)

// New creates a classified error with a formatted message.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies err. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Invalid is shorthand for an InvalidArgument error.
func Invalid(op, format string, args ...any) *Error {
	return New(KindInvalidArgument, op, format, args...)
}

// KindOf returns the kind of the first classified error in err's chain.
// Unclassified errors report KindUpstream.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUpstream
}

// Recoverable reports whether err should be fed back to the model as a failed
// tool result instead of aborting the run.
func Recoverable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Kind {
	case KindNotFound, KindInvalidArgument, KindUnknownTool:
		return true
	}
	return false
}
