// Package shared holds the JSON response helpers every handler package uses,
// keeping error envelopes consistent across endpoints.
package shared

import (
	"encoding/json"
	"net/http"

	dErrors "verity/pkg/domain-errors"
)

// ErrorResponse is the JSON envelope for all error responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError translates a domain error into an HTTP status and the standard
// error envelope. Non-domain errors map to 500 without leaking detail.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	message := "internal server error"
	if code != dErrors.CodeInternal {
		message = err.Error()
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), ErrorResponse{
		Error:   string(code),
		Message: message,
	})
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
