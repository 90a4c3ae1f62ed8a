// Package apperr defines the error taxonomy shared by services and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is an application error carrying a machine-readable code and the
// HTTP status it maps to.
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`

	cause error
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes the underlying cause of an Internal error, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// NotFound reports a missing entity (404).
func NotFound(format string, args ...any) *Error {
	return &Error{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: fmt.Sprintf(format, args...)}
}

// Validation reports invalid input (400).
func Validation(format string, args ...any) *Error {
	return &Error{Status: http.StatusBadRequest, Code: "VALIDATION_ERROR", Message: fmt.Sprintf(format, args...)}
}

// Conflict reports a uniqueness or state conflict (409).
func Conflict(format string, args ...any) *Error {
	return &Error{Status: http.StatusConflict, Code: "CONFLICT", Message: fmt.Sprintf(format, args...)}
}

// BusinessRule reports a domain rule violation (400).
func BusinessRule(format string, args ...any) *Error {
	return &Error{Status: http.StatusBadRequest, Code: "BUSINESS_RULE_VIOLATION", Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an unexpected failure (500). The wrapped error is kept for
// logging; clients only ever see the generic message.
func Internal(err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Code: "INTERNAL_ERROR", Message: "Internal server error", cause: err}
}

// From extracts an *Error from err, wrapping unknown errors as Internal.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

// IsNotFound reports whether err is a NOT_FOUND application error.
func IsNotFound(err error) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Code == "NOT_FOUND"
}

// IsConflict reports whether err is a CONFLICT application error.
func IsConflict(err error) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Code == "CONFLICT"
}
