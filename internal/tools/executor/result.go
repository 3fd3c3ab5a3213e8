package executor

import (
	"encoding/json"
	"errors"

	"github.com/calm-cli/calm/internal/apperr"
	"github.com/calm-cli/calm/internal/calendar"
)

// Result is the outcome of one tool call. Exactly one of Payload and Err is
// set: Payload when OK, Err otherwise.
type Result struct {
	Name    string
	OK      bool
	Payload any
	Err     error
}

// Kind returns the taxonomy tag of a failed result, empty on success.
func (r Result) Kind() apperr.Kind {
	if r.OK {
		return ""
	}
	return apperr.KindOf(r.Err)
}

// Recoverable reports whether the failure can be shown to the model instead
// of aborting the run. Successful results are trivially recoverable.
func (r Result) Recoverable() bool {
	return r.OK || apperr.Recoverable(r.Err)
}

type failure struct {
	OK    bool        `json:"ok"`
	Error string      `json:"error"`
	Kind  apperr.Kind `json:"kind"`
}

// MarshalJSON renders the envelope handed back to the model: the payload on
// success, {"ok":false,"error","kind"} on failure.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.OK {
		return json.Marshal(r.Payload)
	}
	msg := "unknown error"
	if r.Err != nil {
		msg = errorMessage(r.Err)
	}
	return json.Marshal(failure{OK: false, Error: msg, Kind: r.Kind()})
}

// errorMessage drops the op prefix of a classified error so the model sees
// the cause only.
func errorMessage(err error) string {
	var e *apperr.Error
	if errors.As(err, &e) && e.Err != nil {
		return e.Err.Error()
	}
	return err.Error()
}

func success(name string, payload any) Result {
	return Result{Name: name, OK: true, Payload: payload}
}

func failed(name string, err error) Result {
	return Result{Name: name, Err: err}
}

// ListPayload is returned by list_events_between.
type ListPayload struct {
	OK       bool             `json:"ok"`
	Items    []calendar.Event `json:"items"`
	StartISO string           `json:"start_iso"`
	EndISO   string           `json:"end_iso"`
	Query    *string          `json:"query"`
}

// CreatePayload is returned by create_event.
type CreatePayload struct {
	OK      bool            `json:"ok"`
	Created *calendar.Event `json:"created"`
}

// DeletePayload is returned by delete_event. After is always null.
type DeletePayload struct {
	OK      bool            `json:"ok"`
	Before  *calendar.Event `json:"before"`
	After   *calendar.Event `json:"after"`
	EventID string          `json:"event_id"`
}

// UpdatePayload is returned by update_event.
type UpdatePayload struct {
	OK      bool            `json:"ok"`
	EventID string          `json:"event_id"`
	Before  *calendar.Event `json:"before"`
	After   *calendar.Event `json:"after"`
}
