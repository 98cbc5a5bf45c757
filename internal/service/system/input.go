package system

import (
	"strings"

	"github.com/google/uuid"

	"github.com/heartmarshall/grc-backend/internal/domain"
)

// CreateInput describes a new system group.
type CreateInput struct {
	Name        string
	Acronym     string
	Description string
}

func (i CreateInput) Validate() error {
	var errs []domain.FieldError
	if strings.TrimSpace(i.Name) == "" {
		errs = append(errs, domain.FieldError{Field: "name", Message: "required"})
	}
	if len(i.Name) > 255 {
		errs = append(errs, domain.FieldError{Field: "name", Message: "too long"})
	}
	if len(i.Acronym) > 32 {
		errs = append(errs, domain.FieldError{Field: "acronym", Message: "too long"})
	}
	if len(errs) > 0 {
		return domain.NewValidationErrors(errs)
	}
	return nil
}

// ScanInput is a Nessus or SCAP file summarised into a scan record.
type ScanInput struct {
	Format   domain.SourceFormat
	Raw      []byte
	SystemID *uuid.UUID
}

func (i ScanInput) Validate() error {
	var errs []domain.FieldError
	if len(i.Raw) == 0 {
		errs = append(errs, domain.FieldError{Field: "raw", Message: "required"})
	}
	if i.Format == domain.FormatCKL {
		errs = append(errs, domain.FieldError{Field: "format", Message: "checklists are imported as checklists"})
	}
	if i.Format != "" && !i.Format.IsValid() {
		errs = append(errs, domain.FieldError{Field: "format", Message: "invalid value"})
	}
	if len(errs) > 0 {
		return domain.NewValidationErrors(errs)
	}
	return nil
}

// RiskEntry is one row of the risk ranking.
type RiskEntry struct {
	System    *domain.SystemGroup
	RiskScore int
}
