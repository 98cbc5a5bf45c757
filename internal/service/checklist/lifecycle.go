package checklist

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/heartmarshall/grc-backend/internal/domain"
)

// Activate moves an imported checklist from draft to active.
func (s *Service) Activate(ctx context.Context, id uuid.UUID) (*domain.StigChecklist, error) {
	c, err := s.transition(ctx, id, func(c *domain.StigChecklist) error { return c.Activate() })
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, domain.AuditActionUpdate, domain.EntityTypeChecklist, id, nil,
		map[string]any{"state": c.State().String()})
	return c, nil
}

// Archive retires an active checklist. Archiving a checklist that is not
// active is a no-op.
func (s *Service) Archive(ctx context.Context, id uuid.UUID) (*domain.StigChecklist, error) {
	c, err := s.transition(ctx, id, func(c *domain.StigChecklist) error {
		c.Archive()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if c.State() == domain.StateArchived {
		s.logAudit(ctx, domain.AuditActionArchive, domain.EntityTypeChecklist, id, nil, nil)
	}
	return c, nil
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, fn func(c *domain.StigChecklist) error) (*domain.StigChecklist, error) {
	var c *domain.StigChecklist
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		c, err = s.checklists.GetByID(txCtx, id)
		if err != nil {
			return fmt.Errorf("load checklist: %w", err)
		}
		if err := fn(c); err != nil {
			return err
		}
		if len(c.PendingEvents()) == 0 {
			return nil
		}
		return s.checklists.Save(txCtx, c)
	})
	if err != nil {
		return nil, err
	}
	s.events.Commit(ctx, c)
	return c, nil
}
