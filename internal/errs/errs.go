// Package errs defines the error taxonomy shared by services and the HTTP
// layer. Sentinel values are matched with errors.Is; validation failures carry
// the offending field.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("object not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrConflict         = errors.New("conflict")

	// ErrUndoExpired is a Conflict: the grace window has passed.
	ErrUndoExpired = fmt.Errorf("undo window expired: %w", ErrConflict)
)

// ValidationError rejects a request before any write happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validation builds a ValidationError for the named field.
func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
