package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks input rejected by a business rule.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicate marks a unique constraint violation.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrProtected marks a delete blocked by records still referencing the target.
	ErrProtected = errors.New("record is still referenced")
)

// Invalidf builds a validation error with a descriptive message.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf builds a not-found error naming the missing entity.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Protectedf builds a referential protection error.
func Protectedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProtected, fmt.Sprintf(format, args...))
}

// ErrIdempotencyConflict reports a request key that was already processed.
var ErrIdempotencyConflict = fmt.Errorf("%w: idempotent request already processed", ErrDuplicate)
