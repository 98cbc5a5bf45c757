package checklist

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/heartmarshall/grc-backend/internal/domain"
	"github.com/heartmarshall/grc-backend/internal/eventsource"
)

// UpdateFindingStatus records a review outcome for one finding.
func (s *Service) UpdateFindingStatus(ctx context.Context, input UpdateStatusInput) (*domain.VulnerabilityFinding, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	var old domain.Status
	f, err := s.mutateFinding(ctx, input.FindingID, func(f *domain.VulnerabilityFinding) error {
		old = f.Status()
		return f.UpdateStatus(input.Status, input.FindingDetails, input.Comments)
	})
	if err != nil {
		return nil, err
	}
	if old == f.Status() {
		return f, nil
	}

	s.logAudit(ctx, domain.AuditActionUpdate, domain.EntityTypeFinding, f.ID(),
		map[string]any{"status": old.String()},
		map[string]any{"status": f.Status().String()},
	)
	return f, nil
}

// SetSeverityOverride sets or clears a justified severity override.
func (s *Service) SetSeverityOverride(ctx context.Context, input SeverityOverrideInput) (*domain.VulnerabilityFinding, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	var old domain.VulnerabilityStatus
	f, err := s.mutateFinding(ctx, input.FindingID, func(f *domain.VulnerabilityFinding) error {
		old = f.VulnerabilityStatus()
		return f.SetSeverityOverride(input.Severity, input.Justification)
	})
	if err != nil {
		return nil, err
	}

	cur := f.VulnerabilityStatus()
	s.logAudit(ctx, domain.AuditActionUpdate, domain.EntityTypeFinding, f.ID(),
		map[string]any{"severity_override": string(old.SeverityOverride), "severity_justification": old.SeverityJustification},
		map[string]any{"severity_override": string(cur.SeverityOverride), "severity_justification": cur.SeverityJustification},
	)
	return f, nil
}

// AddCCIReference links a CCI identifier to a finding.
func (s *Service) AddCCIReference(ctx context.Context, findingID uuid.UUID, cci string) (*domain.VulnerabilityFinding, error) {
	f, err := s.mutateFinding(ctx, findingID, func(f *domain.VulnerabilityFinding) error {
		return f.AddCCIReference(cci)
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, domain.AuditActionUpdate, domain.EntityTypeFinding, f.ID(), nil, map[string]any{"cci": cci})
	return f, nil
}

// BulkUpdateStatus applies one status to the selected findings of a
// checklist in a single transaction and returns how many changed.
func (s *Service) BulkUpdateStatus(ctx context.Context, input BulkUpdateInput) (int, error) {
	if err := input.Validate(); err != nil {
		return 0, err
	}

	var changed []*domain.VulnerabilityFinding
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.editable(txCtx, input.ChecklistID); err != nil {
			return err
		}
		all, err := s.findings.ListByChecklist(txCtx, input.ChecklistID)
		if err != nil {
			return fmt.Errorf("list findings: %w", err)
		}

		for _, f := range all {
			if len(input.FindingIDs) > 0 && !slices.Contains(input.FindingIDs, f.ID()) {
				continue
			}
			if !input.Filter.Match(f) || f.Status() == input.Status {
				continue
			}
			comments := input.Comments
			if comments == "" {
				comments = f.Comments()
			}
			if err := f.UpdateStatus(input.Status, f.FindingDetails(), comments); err != nil {
				return err
			}
			if len(f.PendingEvents()) == 0 {
				continue
			}
			if err := s.findings.Save(txCtx, f); err != nil {
				return fmt.Errorf("save finding %s: %w", f.Key(), err)
			}
			changed = append(changed, f)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	sources := make([]eventsource.Source, len(changed))
	for i, f := range changed {
		sources[i] = f
		s.logAudit(ctx, domain.AuditActionUpdate, domain.EntityTypeFinding, f.ID(), nil,
			map[string]any{"status": input.Status.String()})
	}
	s.events.Commit(ctx, sources...)

	s.log.InfoContext(ctx, "findings updated",
		slog.String("checklist_id", input.ChecklistID.String()),
		slog.String("status", input.Status.String()),
		slog.Int("count", len(changed)),
	)
	return len(changed), nil
}

// mutateFinding loads a finding, applies fn and saves it when fn raised
// events. Unchanged findings are returned without a save.
func (s *Service) mutateFinding(ctx context.Context, id uuid.UUID, fn func(f *domain.VulnerabilityFinding) error) (*domain.VulnerabilityFinding, error) {
	var f *domain.VulnerabilityFinding
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		f, err = s.findings.GetByID(txCtx, id)
		if err != nil {
			return fmt.Errorf("load finding: %w", err)
		}
		if _, err := s.editable(txCtx, f.ChecklistID()); err != nil {
			return err
		}
		if err := fn(f); err != nil {
			return err
		}
		if len(f.PendingEvents()) == 0 {
			return nil
		}
		if err := s.findings.Save(txCtx, f); err != nil {
			return fmt.Errorf("save finding: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.events.Commit(ctx, f)
	return f, nil
}
