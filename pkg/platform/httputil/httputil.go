// Package httputil maps domain errors onto HTTP responses. It is the only
// place where error codes turn into status codes, so handlers never
// hand-roll status decisions.
package httputil

import (
	"encoding/json"
	"net/http"
	"strconv"

	dErrors "fleetgate/pkg/domain-errors"
)

type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func statusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case dErrors.CodeBadRequest:
		return http.StatusBadRequest
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeDownstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteError serializes err as a JSON error response. Internal errors omit
// the description entirely; rate-limit errors carry a Retry-After header.
// Unclassified errors are treated as internal.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	body := errorBody{Error: string(code)}

	if de, ok := dErrors.As(err); ok {
		switch code {
		case dErrors.CodeInternal:
			// No description: storage and provider detail stays inside.
		case dErrors.CodeRateLimited:
			body.ErrorDescription = de.Message
			if de.RetryAfter > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(de.RetryAfter))
			}
		default:
			body.ErrorDescription = de.Message
		}
	}

	WriteJSON(w, statusFor(code), body)
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
