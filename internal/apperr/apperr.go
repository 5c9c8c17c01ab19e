// Package apperr defines the error taxonomy shared by repositories, services
// and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an error for transport mapping and logging.
type Code string

const (
	CodeNotFound     Code = "NOT_FOUND"
	CodeInvalidInput Code = "INVALID_INPUT"
	CodeConflict     Code = "CONFLICT"
	CodeUnknownState Code = "UNKNOWN_STATE"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeInternal     Code = "INTERNAL"
)

// Error is the single error type produced by this service.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an error with an explicit code.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an error with an explicit code and a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// NotFound reports that a named resource does not exist.
func NotFound(resource string, id any) *Error {
	return Newf(CodeNotFound, "%s %v not found", resource, id)
}

// InvalidInput reports a validation failure on a single field.
func InvalidInput(field, reason string) *Error {
	return Newf(CodeInvalidInput, "%s: %s", field, reason)
}

// Conflict reports a state conflict (version mismatch, illegal transition).
func Conflict(message string) *Error {
	return New(CodeConflict, message)
}

// UnknownState reports a transition to a state that is not in the catalog
// for the given department.
func UnknownState(departmentID, stateID int64) *Error {
	return Newf(CodeUnknownState, "state %d is not defined for department %d", stateID, departmentID)
}

// CodeOf extracts the code from an error, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsNotFound reports whether err carries CodeNotFound.
func IsNotFound(err error) bool { return CodeOf(err) == CodeNotFound }

// IsConflict reports whether err carries CodeConflict.
func IsConflict(err error) bool { return CodeOf(err) == CodeConflict }

// HTTPStatus maps an error code to an HTTP status for the thin HTTP layer.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidInput, CodeUnknownState:
		return http.StatusBadRequest
	case CodeConflict:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
