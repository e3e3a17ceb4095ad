package service

import (
	"errors"
	"fmt"

	"policy-manual-ai/internal/manual"
)

var (
	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned when a requested resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrExternalService is returned when an external service call fails.
	ErrExternalService = errors.New("external service error")
)

// ValidationError represents a validation error with a field name.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// Unwrap makes every ValidationError match ErrInvalidInput.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// WrapError wraps an error with additional context.
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// FromKind maps a component error to the service error for its kind:
// transient failures become ErrExternalService and structural absence
// becomes ErrNotFound. Other errors are returned unchanged.
func FromKind(err error) error {
	if err == nil {
		return nil
	}
	switch manual.KindOf(err) {
	case manual.KindTransient:
		return fmt.Errorf("%w: %w", ErrExternalService, err)
	case manual.KindAbsent:
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	default:
		return err
	}
}
