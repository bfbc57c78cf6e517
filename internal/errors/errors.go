// Package errors provides structured error types for the quill service.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrNotFound          = errors.New("resource not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrTerminalState     = errors.New("rule is in a terminal state")
	ErrNotActive         = errors.New("rule is not active")
	ErrMandatorySkip     = errors.New("mandatory rules cannot be skipped")
	ErrNotManual         = errors.New("rule is not operator-triggered")
	ErrSubmissionBlocked = errors.New("active mandatory rules are incomplete")
	ErrSessionSubmitted  = errors.New("session already submitted")
)

// StoreError wraps a persistence failure with the failing operation.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// NewStoreError creates a StoreError for the given operation.
func NewStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}

// IsStoreFailure reports whether err originated in the persistence layer.
// The submission path uses this to decide between rejecting the request and
// running the local backup fallback chain.
func IsStoreFailure(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
