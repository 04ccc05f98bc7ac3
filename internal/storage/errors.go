package storage

import (
	"errors"
	"fmt"
)

// =============================================================================
// Sentinel Errors
// =============================================================================

var (
	// ErrNotFound is returned when a requested object doesn't exist.
	ErrNotFound = errors.New("object not found")

	// ErrInvalidKey is returned when a category or filename is invalid or
	// contains path traversal attempts like "../".
	ErrInvalidKey = errors.New("invalid storage key")

	// ErrAccessDenied is returned when the storage provider denies access.
	ErrAccessDenied = errors.New("access denied")
)

// =============================================================================
// Structured Error Type
// =============================================================================

// StorageError wraps storage operation errors with additional context.
// It supports errors.Unwrap for sentinel checking with errors.Is().
type StorageError struct {
	// Op is the operation that failed (e.g., "Write", "Delete").
	Op string

	// Key is the storage key involved in the operation.
	Key string

	// Err is the underlying error that occurred.
	Err error
}

func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// =============================================================================
// Helper Functions
// =============================================================================

// IsNotFound returns true if the error indicates an object was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidKey returns true if the error indicates an invalid storage key.
func IsInvalidKey(err error) bool {
	return errors.Is(err, ErrInvalidKey)
}

// IsAccessDenied returns true if the error indicates access was denied.
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrAccessDenied)
}
