package system

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/heartmarshall/grc-backend/internal/domain"
	"github.com/heartmarshall/grc-backend/internal/eventsource"
)

// AssignChecklist makes the group the owner of a checklist. The checklist
// leaves the group that owned it before; both sides change in one
// transaction.
func (s *Service) AssignChecklist(ctx context.Context, systemID, checklistID uuid.UUID) (*domain.SystemGroup, error) {
	var (
		target  *domain.SystemGroup
		sources []eventsource.Source
	)
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		target, err = s.systems.GetByID(txCtx, systemID)
		if err != nil {
			return fmt.Errorf("load system: %w", err)
		}
		if target.State() == domain.StateArchived {
			return domain.NewValidationError("state", "system group is archived")
		}
		c, err := s.checklists.GetByID(txCtx, checklistID)
		if err != nil {
			return fmt.Errorf("load checklist: %w", err)
		}

		var previous *domain.SystemGroup
		if prev := c.SystemID(); prev != nil && *prev != systemID {
			previous, err = s.systems.GetByID(txCtx, *prev)
			switch {
			case errors.Is(err, domain.ErrNotFound):
				previous = nil
			case err != nil:
				return fmt.Errorf("load previous system: %w", err)
			}
		}

		if c.AssignToSystem(systemID) {
			if err := s.checklists.Save(txCtx, c); err != nil {
				return fmt.Errorf("save checklist: %w", err)
			}
			sources = append(sources, c)
		}
		if previous != nil && previous.RemoveChecklist(checklistID) {
			if err := s.systems.Save(txCtx, previous); err != nil {
				return fmt.Errorf("save previous system: %w", err)
			}
			sources = append(sources, previous)
		}
		if target.AddChecklist(checklistID) {
			if err := s.systems.Save(txCtx, target); err != nil {
				return fmt.Errorf("save system: %w", err)
			}
			sources = append(sources, target)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.Commit(ctx, sources...)
	s.logAudit(ctx, domain.AuditActionUpdate, domain.EntityTypeSystem, systemID, map[string]any{
		"checklist_added": checklistID.String(),
	})
	s.log.InfoContext(ctx, "checklist assigned",
		slog.String("system_id", systemID.String()),
		slog.String("checklist_id", checklistID.String()),
	)

	// The rollup runs synchronously on commit; return the refreshed group.
	return s.systems.GetByID(ctx, systemID)
}

// UnassignChecklist removes a checklist from the group that owns it.
func (s *Service) UnassignChecklist(ctx context.Context, checklistID uuid.UUID) error {
	var sources []eventsource.Source
	var systemID uuid.UUID
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		c, err := s.checklists.GetByID(txCtx, checklistID)
		if err != nil {
			return fmt.Errorf("load checklist: %w", err)
		}
		prev := c.SystemID()
		if prev == nil {
			return nil
		}
		systemID = *prev

		c.Unassign()
		if err := s.checklists.Save(txCtx, c); err != nil {
			return fmt.Errorf("save checklist: %w", err)
		}
		sources = append(sources, c)

		g, err := s.systems.GetByID(txCtx, systemID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return nil
		case err != nil:
			return fmt.Errorf("load system: %w", err)
		}
		if g.RemoveChecklist(checklistID) {
			if err := s.systems.Save(txCtx, g); err != nil {
				return fmt.Errorf("save system: %w", err)
			}
			sources = append(sources, g)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return nil
	}

	s.events.Commit(ctx, sources...)
	s.logAudit(ctx, domain.AuditActionUpdate, domain.EntityTypeSystem, systemID, map[string]any{
		"checklist_removed": checklistID.String(),
	})
	return nil
}
