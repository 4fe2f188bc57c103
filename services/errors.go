package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"
)

// ErrorKind classifies expected failures so callers can branch without parsing messages
type ErrorKind string

const (
	KindNotFound   ErrorKind = "NOT_FOUND"
	KindConflict   ErrorKind = "CONFLICT"
	KindValidation ErrorKind = "VALIDATION_ERROR"
	KindForbidden  ErrorKind = "FORBIDDEN"
)

// AppError is an expected failure (missing record, violated precondition, bad input).
// Anything else returned by a service is an unexpected storage error.
type AppError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Fields  map[string]string
}

func (e *AppError) Error() string {
	return e.Message
}

// Status maps the error to its HTTP-equivalent status code
func (e *AppError) Status() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusBadRequest
	}
}

func newAppError(kind ErrorKind, format string, args ...interface{}) *AppError {
	return &AppError{Kind: kind, Code: string(kind), Message: fmt.Sprintf(format, args...)}
}

// NotFound reports a missing record, or one that does not belong to the stated parent
func NotFound(format string, args ...interface{}) *AppError {
	return newAppError(KindNotFound, format, args...)
}

// Conflict reports a violated state precondition
func Conflict(format string, args ...interface{}) *AppError {
	return newAppError(KindConflict, format, args...)
}

// Forbidden reports an action on a record the caller does not own
func Forbidden(format string, args ...interface{}) *AppError {
	return newAppError(KindForbidden, format, args...)
}

// FieldErrors collects per-field validation problems before any storage access
type FieldErrors map[string]string

// Add records msg for field, keeping the first message per field
func (f FieldErrors) Add(field, msg string) {
	if _, exists := f[field]; !exists {
		f[field] = msg
	}
}

// Required records a "required" error when value is blank
func (f FieldErrors) Required(field, value string) {
	if strings.TrimSpace(value) == "" {
		f.Add(field, "is required")
	}
}

// Err returns a validation AppError, or nil when nothing was recorded
func (f FieldErrors) Err() error {
	if len(f) == 0 {
		return nil
	}
	return &AppError{
		Kind:    KindValidation,
		Code:    string(KindValidation),
		Message: "Invalid request data",
		Fields:  f,
	}
}

// AsAppError unwraps err into an *AppError when it is an expected failure
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsKind reports whether err is an expected failure of the given kind
func IsKind(err error, kind ErrorKind) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Kind == kind
}

// notFoundOr converts gorm.ErrRecordNotFound into a NotFound error and wraps everything else
func notFoundOr(err error, what, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFound("%s %s not found", what, id)
	}
	return fmt.Errorf("failed to load %s %s: %w", what, id, err)
}
