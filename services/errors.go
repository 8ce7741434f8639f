package services

import (
	"errors"
)

// ErrNotFound signals a missing record (user progress, badge type). Handlers
// translate it to a 404 — everything else unexpected becomes an opaque 500.
var ErrNotFound = errors.New("record not found")

// ValidationError marks caller mistakes (bad identifiers, out-of-range
// amounts). Handlers translate it to a 400 and may show the reason.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func NewValidationError(reason string) *ValidationError {
	return &ValidationError{Reason: reason}
}
