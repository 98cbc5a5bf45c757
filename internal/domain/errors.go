package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Sentinel errors used across all layers.
var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrValidation          = errors.New("validation error")
	ErrConflict            = errors.New("conflict")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrFormat              = errors.New("format error")
	ErrProjection          = errors.New("projection error")
)

// FieldError describes a validation error for a specific field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError contains a list of field-level validation errors.
// Illegal state transitions are reported as a ValidationError on the "state" field.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation: %s: %s", e.Errors[0].Field, e.Errors[0].Message)
	}
	return fmt.Sprintf("validation: %d errors", len(e.Errors))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Errors: []FieldError{{Field: field, Message: message}},
	}
}

// NewValidationErrors creates a ValidationError from multiple field errors.
func NewValidationErrors(errs []FieldError) *ValidationError {
	return &ValidationError{Errors: errs}
}

// FormatError reports a malformed or unsupported scan file.
// Element names the missing or malformed element when one is known.
type FormatError struct {
	Format  SourceFormat
	Element string
	Reason  string
	Err     error
}

func (e *FormatError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Format, e.Reason)
	if e.Element != "" {
		msg = fmt.Sprintf("%s: <%s>: %s", e.Format, e.Element, e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrFormat, e.Err}
	}
	return []error{ErrFormat}
}

// NewMissingElementError reports a required element that is absent.
func NewMissingElementError(format SourceFormat, element string) *FormatError {
	return &FormatError{Format: format, Element: element, Reason: "required element missing"}
}

// ConcurrencyError reports a save that observed a stale version.
// The caller may reload the aggregate and retry.
type ConcurrencyError struct {
	Entity          string
	ID              uuid.UUID
	ExpectedVersion int
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("%s %s: version %d is stale: %s", e.Entity, e.ID, e.ExpectedVersion, ErrConcurrencyConflict)
}

func (e *ConcurrencyError) Unwrap() error { return ErrConcurrencyConflict }

// Retryable is always true: reloading and reapplying the mutation is safe.
func (e *ConcurrencyError) Retryable() bool { return true }

// ProjectionError reports a read-model recomputation that could not finish.
// It is logged and swallowed; Replay repairs the resulting staleness.
type ProjectionError struct {
	Projection  string
	AggregateID uuid.UUID
	Err         error
}

func (e *ProjectionError) Error() string {
	return fmt.Sprintf("projection %s for %s: %v", e.Projection, e.AggregateID, e.Err)
}

func (e *ProjectionError) Unwrap() []error { return []error{ErrProjection, e.Err} }
