package calendar

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/api/googleapi"

	"github.com/calm-cli/calm/internal/apperr"
)

// classify maps a Calendar API failure onto the error taxonomy. Errors that
// already carry a kind, and context cancellation, pass through unchanged.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusNotFound, http.StatusGone:
			return apperr.Wrap(apperr.KindNotFound, op, err)
		case http.StatusBadRequest:
			return apperr.Wrap(apperr.KindInvalidArgument, op, err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return apperr.Wrap(apperr.KindAuth, op, err)
		}
	}

	return apperr.Wrap(apperr.KindUpstream, op, err)
}
