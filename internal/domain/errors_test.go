package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestValidationError_SingleField(t *testing.T) {
	t.Parallel()

	err := NewValidationError("status", "invalid status")

	if got := err.Error(); got != "validation: status: invalid status" {
		t.Fatalf("unexpected Error(): %q", got)
	}
	if !errors.Is(err, ErrValidation) {
		t.Fatal("errors.Is(err, ErrValidation) = false")
	}
}

func TestValidationError_MultipleFields(t *testing.T) {
	t.Parallel()

	err := NewValidationErrors([]FieldError{
		{Field: "status", Message: "invalid"},
		{Field: "severity", Message: "invalid"},
	})

	if got := err.Error(); got != "validation: 2 errors" {
		t.Fatalf("unexpected Error(): %q", got)
	}
	if len(err.Errors) != 2 {
		t.Fatalf("expected 2 field errors, got %d", len(err.Errors))
	}
}

func TestFormatError_NamesElement(t *testing.T) {
	t.Parallel()

	err := NewMissingElementError(FormatCKL, "ASSET")

	if !errors.Is(err, ErrFormat) {
		t.Fatal("errors.Is(err, ErrFormat) = false")
	}
	if !strings.Contains(err.Error(), "<ASSET>") {
		t.Errorf("Error() = %q, want element name", err.Error())
	}
}

func TestFormatError_WrapsCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("unexpected EOF")
	err := &FormatError{Format: FormatNessus, Reason: "unparseable XML", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false")
	}
	if !errors.Is(err, ErrFormat) {
		t.Error("errors.Is(err, ErrFormat) = false")
	}
	var fe *FormatError
	if !errors.As(fmt.Errorf("import: %w", err), &fe) || fe.Format != FormatNessus {
		t.Errorf("errors.As failed or wrong format: %+v", fe)
	}
}

func TestConcurrencyError(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("save: %w", &ConcurrencyError{Entity: "checklist", ID: uuid.New(), ExpectedVersion: 3})

	if !errors.Is(err, ErrConcurrencyConflict) {
		t.Fatal("errors.Is(err, ErrConcurrencyConflict) = false")
	}
	var ce *ConcurrencyError
	if !errors.As(err, &ce) || !ce.Retryable() {
		t.Fatal("expected a retryable ConcurrencyError")
	}
}

func TestProjectionError(t *testing.T) {
	t.Parallel()

	err := &ProjectionError{Projection: "checklist_score", AggregateID: uuid.New(), Err: ErrNotFound}

	if !errors.Is(err, ErrProjection) {
		t.Error("errors.Is(err, ErrProjection) = false")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Error("errors.Is(err, ErrNotFound) = false")
	}
}

func TestSentinelErrors_AreDistinct(t *testing.T) {
	t.Parallel()

	sentinels := []error{
		ErrNotFound, ErrAlreadyExists, ErrValidation, ErrConflict,
		ErrConcurrencyConflict, ErrFormat, ErrProjection,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && errors.Is(a, b) {
				t.Errorf("sentinel errors %d and %d should not match", i, j)
			}
		}
	}
}
