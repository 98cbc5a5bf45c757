// Package system implements system group management: lifecycle, checklist
// and asset membership, scan attachment and risk ranking.
package system

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/heartmarshall/grc-backend/internal/domain"
	"github.com/heartmarshall/grc-backend/internal/eventsource"
	"github.com/heartmarshall/grc-backend/internal/parser"
	"github.com/heartmarshall/grc-backend/pkg/ctxutil"
)

type systemRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.SystemGroup, error)
	List(ctx context.Context) ([]*domain.SystemGroup, error)
	Save(ctx context.Context, g *domain.SystemGroup) error
}

type checklistRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.StigChecklist, error)
	Save(ctx context.Context, c *domain.StigChecklist) error
}

type scanRepo interface {
	Create(ctx context.Context, s *domain.ScanRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ScanRecord, error)
	ListBySystem(ctx context.Context, systemID uuid.UUID) ([]*domain.ScanRecord, error)
	SetSystem(ctx context.Context, scanID, systemID uuid.UUID) error
}

type auditRepo interface {
	Log(ctx context.Context, record domain.AuditRecord) error
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type committer interface {
	Commit(ctx context.Context, sources ...eventsource.Source)
}

// Service implements system group operations.
type Service struct {
	log        *slog.Logger
	systems    systemRepo
	checklists checklistRepo
	scans      scanRepo
	audit      auditRepo
	tx         txManager
	events     committer
	metrics    parser.Metrics
}

// NewService creates a new system service instance. metrics may be nil.
func NewService(
	logger *slog.Logger,
	systems systemRepo,
	checklists checklistRepo,
	scans scanRepo,
	audit auditRepo,
	tx txManager,
	events committer,
	metrics parser.Metrics,
) *Service {
	return &Service{
		log:        logger.With("service", "system"),
		systems:    systems,
		checklists: checklists,
		scans:      scans,
		audit:      audit,
		tx:         tx,
		events:     events,
		metrics:    metrics,
	}
}

func (s *Service) logAudit(ctx context.Context, action domain.AuditAction, entityType domain.EntityType, id uuid.UUID, new map[string]any) {
	actor, _ := ctxutil.ActorFromCtx(ctx)
	if err := s.audit.Log(ctx, domain.NewAuditRecord(actor, action, entityType, id, nil, new)); err != nil {
		s.log.WarnContext(ctx, "audit log failed",
			slog.String("entity_id", id.String()),
			slog.String("action", action.String()),
			slog.String("error", err.Error()),
		)
	}
}
