// Package domainerrors provides code-typed errors shared by all modules.
//
// Services return these instead of raw errors so handlers can translate a
// failure into the right HTTP status without inspecting message text, and so
// tests can assert on failure kinds rather than strings.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error for transport mapping and assertions.
type Code string

const (
	// CodeBadRequest marks malformed or out-of-range caller input.
	CodeBadRequest Code = "bad_request"
	// CodeValidation marks a verification rule violation or a wrapped
	// analyzer failure. Both terminate the attempt identically.
	CodeValidation Code = "validation"
	// CodeNotFound marks a lookup for an unknown verification id.
	CodeNotFound Code = "not_found"
	// CodeConflict marks an operation against a record in a terminal state.
	CodeConflict Code = "conflict"
	// CodeUnauthorized marks missing or invalid credentials.
	CodeUnauthorized Code = "unauthorized"
	// CodeConfiguration marks missing required config, fatal at startup.
	CodeConfiguration Code = "configuration"
	// CodeTimeout marks an external call that exceeded its deadline.
	CodeTimeout Code = "timeout"
	// CodeInternal marks everything else.
	CodeInternal Code = "internal"
)

// DomainError carries a code, a human-readable message, and an optional cause.
type DomainError struct {
	Code    Code
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// New creates a domain error with no underlying cause.
func New(code Code, message string) error {
	return &DomainError{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &DomainError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. A nil err yields nil.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &DomainError{Code: code, Message: message, Err: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is a readable alias for HasCode in handler-level branching.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf extracts the code from an error chain, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to its HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
