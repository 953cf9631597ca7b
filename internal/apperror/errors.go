// Package apperror carries HTTP status and a client-safe message alongside
// an internal cause. Handlers return these; the web layer renders them.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a classified error. Message is safe to show to a client;
// Internal is only logged.
type AppError struct {
	Code     int    `json:"-"`
	Type     string `json:"type"`
	Message  string `json:"message"`
	Internal error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Type, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Internal
}

func newErr(code int, typ, message string) *AppError {
	return &AppError{Code: code, Type: typ, Message: message}
}

func NewNotFound(message string) *AppError {
	return newErr(http.StatusNotFound, "not_found", message)
}

func NewBadRequest(message string) *AppError {
	return newErr(http.StatusBadRequest, "bad_request", message)
}

func NewUnauthorized(message string) *AppError {
	return newErr(http.StatusUnauthorized, "unauthorized", message)
}

// NewConflict is returned when a gesture collides with one in flight, e.g.
// a second drop of a todo that is still being converted.
func NewConflict(message string) *AppError {
	return newErr(http.StatusConflict, "conflict", message)
}

// NewValidation creates a 422 for well-formed but unacceptable input.
func NewValidation(message string) *AppError {
	return newErr(http.StatusUnprocessableEntity, "validation_error", message)
}

// NewInternal hides err behind a generic message.
func NewInternal(err error) *AppError {
	return &AppError{
		Code:     http.StatusInternalServerError,
		Type:     "internal_error",
		Message:  "An unexpected error occurred. Please try again.",
		Internal: err,
	}
}

// WithInternal attaches a cause for logging and returns e.
func (e *AppError) WithInternal(err error) *AppError {
	e.Internal = err
	return e
}

// SafeMessage returns the client-safe message of err.
func SafeMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "an unexpected error occurred"
}

// SafeCode returns the HTTP status of err, 500 for unclassified errors.
func SafeCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return http.StatusInternalServerError
}

// SafeType returns the machine-readable type of err.
func SafeType(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return "internal_error"
}
