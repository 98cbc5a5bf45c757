package checklist

import (
	"strings"

	"github.com/google/uuid"

	"github.com/heartmarshall/grc-backend/internal/domain"
)

// ImportInput describes one scan file to import.
//
// ChecklistID forces a re-import into that checklist. Without it a CKL or
// SCAP file is matched to an existing checklist by host name and benchmark
// id unless ForceNew is set.
type ImportInput struct {
	Format      domain.SourceFormat
	Raw         []byte
	Name        string
	ChecklistID *uuid.UUID
	SystemID    *uuid.UUID
	ForceNew    bool
}

func (i ImportInput) Validate(maxBytes int64) error {
	var errs []domain.FieldError

	if len(i.Raw) == 0 {
		errs = append(errs, domain.FieldError{Field: "raw", Message: "required"})
	}
	if maxBytes > 0 && int64(len(i.Raw)) > maxBytes {
		errs = append(errs, domain.FieldError{Field: "raw", Message: "file exceeds the import size limit"})
	}
	if i.Format != "" && !i.Format.IsValid() {
		errs = append(errs, domain.FieldError{Field: "format", Message: "invalid value"})
	}
	if i.Format == domain.FormatNessus {
		errs = append(errs, domain.FieldError{Field: "format", Message: "nessus scans are attached to a system group"})
	}
	if i.ChecklistID != nil && i.ForceNew {
		errs = append(errs, domain.FieldError{Field: "checklist_id", Message: "cannot be combined with force_new"})
	}
	if len(i.Name) > 255 {
		errs = append(errs, domain.FieldError{Field: "name", Message: "too long"})
	}

	if len(errs) > 0 {
		return domain.NewValidationErrors(errs)
	}
	return nil
}

// ImportResult summarises an import.
type ImportResult struct {
	Checklist *domain.StigChecklist
	Reimport  bool
	Created   int
	Updated   int
	Unchanged int
}

// UpdateStatusInput changes the review outcome of one finding.
type UpdateStatusInput struct {
	FindingID      uuid.UUID
	Status         domain.Status
	FindingDetails string
	Comments       string
}

func (i UpdateStatusInput) Validate() error {
	if !i.Status.IsValid() {
		return domain.NewValidationError("status", "invalid value")
	}
	return nil
}

// BulkUpdateInput applies one status to several findings of a checklist.
// An empty FindingIDs selects every finding matching Filter.
type BulkUpdateInput struct {
	ChecklistID uuid.UUID
	FindingIDs  []uuid.UUID
	Filter      domain.FindingFilter
	Status      domain.Status
	Comments    string
}

func (i BulkUpdateInput) Validate() error {
	var errs []domain.FieldError
	if !i.Status.IsValid() {
		errs = append(errs, domain.FieldError{Field: "status", Message: "invalid value"})
	}
	if i.ChecklistID == uuid.Nil {
		errs = append(errs, domain.FieldError{Field: "checklist_id", Message: "required"})
	}
	if len(errs) > 0 {
		return domain.NewValidationErrors(errs)
	}
	return nil
}

// SeverityOverrideInput sets or, with an empty Severity, clears the
// severity override of a finding.
type SeverityOverrideInput struct {
	FindingID     uuid.UUID
	Severity      domain.SeverityCategory
	Justification string
}

func (i SeverityOverrideInput) Validate() error {
	if i.Severity == "" {
		return nil
	}
	var errs []domain.FieldError
	if !i.Severity.IsValid() {
		errs = append(errs, domain.FieldError{Field: "severity_override", Message: "invalid value"})
	}
	if strings.TrimSpace(i.Justification) == "" {
		errs = append(errs, domain.FieldError{Field: "severity_justification", Message: "required"})
	}
	if len(errs) > 0 {
		return domain.NewValidationErrors(errs)
	}
	return nil
}
