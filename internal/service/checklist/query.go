package checklist

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/heartmarshall/grc-backend/internal/domain"
)

// Get returns a checklist.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.StigChecklist, error) {
	return s.checklists.GetByID(ctx, id)
}

// List returns checklists matching f.
func (s *Service) List(ctx context.Context, f domain.ChecklistFilter) ([]*domain.StigChecklist, error) {
	return s.checklists.List(ctx, f)
}

// ListFindings returns the findings of a checklist matching f, in import
// order.
func (s *Service) ListFindings(ctx context.Context, checklistID uuid.UUID, f domain.FindingFilter) ([]*domain.VulnerabilityFinding, error) {
	if _, err := s.checklists.GetByID(ctx, checklistID); err != nil {
		return nil, err
	}
	all, err := s.findings.ListByChecklist(ctx, checklistID)
	if err != nil {
		return nil, fmt.Errorf("list findings: %w", err)
	}
	out := all[:0]
	for _, finding := range all {
		if f.Match(finding) {
			out = append(out, finding)
		}
	}
	return out, nil
}

// ListOpenFindings returns the open findings of a checklist, CAT I first,
// then in import order. It feeds remediation-plan generation.
func (s *Service) ListOpenFindings(ctx context.Context, checklistID uuid.UUID) ([]*domain.VulnerabilityFinding, error) {
	open, err := s.ListFindings(ctx, checklistID, domain.FindingFilter{Statuses: []domain.Status{domain.StatusOpen}})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(open, func(a, b *domain.VulnerabilityFinding) int {
		return b.EffectiveSeverity().Weight() - a.EffectiveSeverity().Weight()
	})
	return open, nil
}

// ExportRaw returns the imported file exactly as it was received.
func (s *Service) ExportRaw(ctx context.Context, id uuid.UUID) ([]byte, domain.SourceFormat, error) {
	c, err := s.checklists.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if !c.HasRawData() {
		return nil, "", domain.NewValidationError("raw", "checklist has no imported data")
	}
	return c.Raw(), c.Format(), nil
}

// GetScore returns the current score of a checklist. A checklist that has
// not been scored yet has an empty score.
func (s *Service) GetScore(ctx context.Context, id uuid.UUID) (*domain.ChecklistScore, error) {
	if _, err := s.checklists.GetByID(ctx, id); err != nil {
		return nil, err
	}
	score, err := s.scores.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewChecklistScore(id), nil
	}
	return score, err
}

// History returns the audit trail of a checklist or finding, newest first.
func (s *Service) History(ctx context.Context, entityType domain.EntityType, id uuid.UUID, limit int) ([]domain.AuditRecord, error) {
	if !entityType.IsValid() {
		return nil, domain.NewValidationError("entity_type", "invalid value")
	}
	return s.audit.ListByEntity(ctx, entityType, id, limit)
}
