package domain

import (
	"errors"
	"fmt"
)

// Application error codes
const (
	EINVALID  = "invalid"   // Invalid input or validation failure
	ENOTFOUND = "not_found" // Resource not found
	ECONFLICT = "conflict"  // Resource conflict (e.g., refused delete)
	ETOOLARGE = "too_large" // Request entity too large
	ESTORAGE  = "storage"   // Content store unavailable or write failed
	ESCHEMA   = "schema"    // Backing table is missing required columns
	EINTERNAL = "internal"  // Internal server error
)

// Error represents an application error with structured information.
type Error struct {
	Code    string // Machine-readable error code
	Op      string // Operation that failed (e.g., "media.upload")
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf creates a new Error with the given code, operation, and formatted message.
func Errorf(code, op, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// ErrorCode returns the code of the root error, or EINTERNAL if none.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage returns the human-readable message of the error.
// Internal errors are masked with a generic message suitable for display.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Code == EINTERNAL {
			return "An internal error occurred. Please try again later."
		}
		return e.Message
	}
	return "An internal error occurred. Please try again later."
}

// ErrorOp returns the operation of the root error, if any.
func ErrorOp(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}

// Convenience constructors for common error types

// NotFound creates a not found error.
func NotFound(op, resource string, id int64) *Error {
	return &Error{
		Code:    ENOTFOUND,
		Op:      op,
		Message: fmt.Sprintf("%s with ID %d not found", resource, id),
	}
}

// Invalid creates a validation error.
func Invalid(op, message string) *Error {
	return &Error{
		Code:    EINVALID,
		Op:      op,
		Message: message,
	}
}

// Conflict creates a conflict error.
func Conflict(op, message string) *Error {
	return &Error{
		Code:    ECONFLICT,
		Op:      op,
		Message: message,
	}
}

// Storage creates a content-store error, wrapping the underlying error.
func Storage(err error, op string) *Error {
	return &Error{
		Code:    ESTORAGE,
		Op:      op,
		Message: "Server storage is not available.",
		Err:     err,
	}
}

// Schema creates a schema verification error. Surfaced distinctly from
// per-upload errors: this is a deployment defect, not user input.
func Schema(op, table string, missing []string) *Error {
	return &Error{
		Code:    ESCHEMA,
		Op:      op,
		Message: fmt.Sprintf("table %s is missing required columns: %v", table, missing),
	}
}

// Internal creates an internal error, wrapping the underlying error.
func Internal(err error, op, message string) *Error {
	return &Error{
		Code:    EINTERNAL,
		Op:      op,
		Message: message,
		Err:     err,
	}
}
