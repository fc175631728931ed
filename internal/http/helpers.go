package http

import (
	"errors"
	"net/http"
	"strings"

	"tkpay/internal/core"
	"tkpay/internal/services"
)

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

// errorResponse maps a state manager error to the response the UI shows,
// with the same text as an error notification. Unknown errors are reported
// as 500 without leaking their text.
func errorResponse(err error) *HTMXResponseBuilder {
	status, msg := classify(err)
	return ErrorResponse(status, msg).TriggerErrorNotification(msg)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrNothingToSave):
		return http.StatusUnprocessableEntity, "Cannot save an empty transaction list."
	case errors.Is(err, core.ErrBlankRecipient):
		return http.StatusUnprocessableEntity, "Please enter a valid name."
	case errors.Is(err, core.ErrDuplicateRecipient):
		return http.StatusUnprocessableEntity, "This name already exists."
	case errors.Is(err, core.ErrInvalidAmount), errors.Is(err, core.ErrInvalidTransaction):
		return http.StatusUnprocessableEntity, "Please select a name and enter an amount."
	case errors.Is(err, core.ErrInvalidDateKey):
		return http.StatusUnprocessableEntity, "Invalid history date."
	case errors.Is(err, core.ErrSnapshotNotFound):
		return http.StatusNotFound, "History entry not found."
	case errors.Is(err, services.ErrRemoteSync):
		return http.StatusBadGateway, "Could not reach the remote history store. Please try again."
	default:
		return http.StatusInternalServerError, "Something went wrong. Please try again."
	}
}

// statusFor is the status code errorResponse would use.
func statusFor(err error) int {
	status, _ := classify(err)
	return status
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
