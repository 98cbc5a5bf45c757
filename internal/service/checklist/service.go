// Package checklist implements the checklist workflows: importing scan
// files, reviewing findings, lifecycle transitions and read access to the
// stored data and scores.
package checklist

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/heartmarshall/grc-backend/internal/domain"
	"github.com/heartmarshall/grc-backend/internal/eventsource"
	"github.com/heartmarshall/grc-backend/internal/parser"
	"github.com/heartmarshall/grc-backend/pkg/ctxutil"
)

// ---------------------------------------------------------------------------
// Consumer-defined interfaces (private)
// ---------------------------------------------------------------------------

type checklistRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.StigChecklist, error)
	List(ctx context.Context, f domain.ChecklistFilter) ([]*domain.StigChecklist, error)
	Save(ctx context.Context, c *domain.StigChecklist) error
}

type findingRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.VulnerabilityFinding, error)
	ListByChecklist(ctx context.Context, checklistID uuid.UUID) ([]*domain.VulnerabilityFinding, error)
	Save(ctx context.Context, f *domain.VulnerabilityFinding) error
}

type systemRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.SystemGroup, error)
	Save(ctx context.Context, g *domain.SystemGroup) error
}

type scoreRepo interface {
	Get(ctx context.Context, checklistID uuid.UUID) (*domain.ChecklistScore, error)
}

type auditRepo interface {
	Log(ctx context.Context, record domain.AuditRecord) error
	ListByEntity(ctx context.Context, entityType domain.EntityType, entityID uuid.UUID, limit int) ([]domain.AuditRecord, error)
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type committer interface {
	Commit(ctx context.Context, sources ...eventsource.Source)
}

// Config holds import limits.
type Config struct {
	MaxFileBytes int64
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

// Service implements the checklist business logic. Aggregates are saved in
// one transaction per operation; their events are committed once the
// transaction has succeeded.
type Service struct {
	log        *slog.Logger
	checklists checklistRepo
	findings   findingRepo
	systems    systemRepo
	scores     scoreRepo
	audit      auditRepo
	tx         txManager
	events     committer
	cfg        Config
	metrics    parser.Metrics
}

// NewService creates a new checklist service instance. metrics may be nil.
func NewService(
	logger *slog.Logger,
	checklists checklistRepo,
	findings findingRepo,
	systems systemRepo,
	scores scoreRepo,
	audit auditRepo,
	tx txManager,
	events committer,
	cfg Config,
	metrics parser.Metrics,
) *Service {
	return &Service{
		log:        logger.With("service", "checklist"),
		checklists: checklists,
		findings:   findings,
		systems:    systems,
		scores:     scores,
		audit:      audit,
		tx:         tx,
		events:     events,
		cfg:        cfg,
		metrics:    metrics,
	}
}

// logAudit records an audit entry. Failures are logged and never fail the
// operation that has already been persisted.
func (s *Service) logAudit(ctx context.Context, action domain.AuditAction, entityType domain.EntityType, id uuid.UUID, old, new map[string]any) {
	actor, _ := ctxutil.ActorFromCtx(ctx)
	record := domain.NewAuditRecord(actor, action, entityType, id, old, new)
	if err := s.audit.Log(ctx, record); err != nil {
		s.log.WarnContext(ctx, "audit log failed",
			slog.String("entity_type", entityType.String()),
			slog.String("entity_id", id.String()),
			slog.String("action", action.String()),
			slog.String("error", err.Error()),
		)
	}
}

// editable loads the checklist owning a finding and rejects archived ones.
func (s *Service) editable(ctx context.Context, checklistID uuid.UUID) (*domain.StigChecklist, error) {
	c, err := s.checklists.GetByID(ctx, checklistID)
	if err != nil {
		return nil, err
	}
	if c.State() == domain.StateArchived {
		return nil, domain.NewValidationError("state", "checklist is archived")
	}
	return c, nil
}
