package system

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/heartmarshall/grc-backend/internal/domain"
)

// Create registers a new system group in draft state.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.SystemGroup, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	g, err := domain.NewSystemGroup(input.Name, input.Acronym)
	if err != nil {
		return nil, err
	}
	g.SetDescription(input.Description)

	if err := s.systems.Save(ctx, g); err != nil {
		return nil, fmt.Errorf("save system: %w", err)
	}
	s.events.Commit(ctx, g)
	s.logAudit(ctx, domain.AuditActionCreate, domain.EntityTypeSystem, g.ID(), map[string]any{
		"name":    g.Name(),
		"acronym": g.Acronym(),
	})

	s.log.InfoContext(ctx, "system group created",
		slog.String("system_id", g.ID().String()),
		slog.String("name", g.Name()),
	)
	return g, nil
}

// Get returns a system group.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.SystemGroup, error) {
	return s.systems.GetByID(ctx, id)
}

// List returns every system group.
func (s *Service) List(ctx context.Context) ([]*domain.SystemGroup, error) {
	return s.systems.List(ctx)
}

// Activate moves a draft group to active.
func (s *Service) Activate(ctx context.Context, id uuid.UUID) (*domain.SystemGroup, error) {
	return s.mutate(ctx, id, func(g *domain.SystemGroup) error { return g.Activate() })
}

// Archive retires an active group. Archiving a group that is not active is
// a no-op.
func (s *Service) Archive(ctx context.Context, id uuid.UUID) (*domain.SystemGroup, error) {
	g, err := s.mutate(ctx, id, func(g *domain.SystemGroup) error {
		g.Archive()
		return nil
	})
	if err == nil && g.State() == domain.StateArchived {
		s.logAudit(ctx, domain.AuditActionArchive, domain.EntityTypeSystem, id, nil)
	}
	return g, err
}

// AddAsset records an asset as part of the group.
func (s *Service) AddAsset(ctx context.Context, systemID, assetID uuid.UUID) (*domain.SystemGroup, error) {
	if assetID == uuid.Nil {
		return nil, domain.NewValidationError("asset_id", "required")
	}
	return s.mutate(ctx, systemID, func(g *domain.SystemGroup) error {
		g.AddAsset(assetID)
		return nil
	})
}

// RemoveAsset drops an asset from the group.
func (s *Service) RemoveAsset(ctx context.Context, systemID, assetID uuid.UUID) (*domain.SystemGroup, error) {
	return s.mutate(ctx, systemID, func(g *domain.SystemGroup) error {
		g.RemoveAsset(assetID)
		return nil
	})
}

func (s *Service) mutate(ctx context.Context, id uuid.UUID, fn func(g *domain.SystemGroup) error) (*domain.SystemGroup, error) {
	var g *domain.SystemGroup
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		g, err = s.systems.GetByID(txCtx, id)
		if err != nil {
			return fmt.Errorf("load system: %w", err)
		}
		if err := fn(g); err != nil {
			return err
		}
		if len(g.PendingEvents()) == 0 {
			return nil
		}
		return s.systems.Save(txCtx, g)
	})
	if err != nil {
		return nil, err
	}
	s.events.Commit(ctx, g)
	return g, nil
}
