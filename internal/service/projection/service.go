// Package projection maintains the score read models: the per-checklist
// status/severity grid and the compliance rollup of every system group.
package projection

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/grc-backend/internal/domain"
	"github.com/heartmarshall/grc-backend/internal/eventsource"
)

const (
	projectionChecklist = "checklist_score"
	projectionSystem    = "system_compliance"
)

// ---------------------------------------------------------------------------
// Consumer-defined interfaces (private)
// ---------------------------------------------------------------------------

type checklistRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.StigChecklist, error)
}

type findingRepo interface {
	ListByChecklist(ctx context.Context, checklistID uuid.UUID) ([]*domain.VulnerabilityFinding, error)
}

type scoreRepo interface {
	Get(ctx context.Context, checklistID uuid.UUID) (*domain.ChecklistScore, error)
	GetMany(ctx context.Context, checklistIDs []uuid.UUID) (map[uuid.UUID]*domain.ChecklistScore, error)
	Save(ctx context.Context, s *domain.ChecklistScore) error
}

type systemRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.SystemGroup, error)
	Save(ctx context.Context, g *domain.SystemGroup) error
}

type eventBus interface {
	Subscribe(eventType, name string, h eventsource.Handler)
	Publish(ctx context.Context, e eventsource.Event) eventsource.DispatchReport
}

type dispatcher interface {
	Commit(ctx context.Context, sources ...eventsource.Source)
	Replay(ctx context.Context, f eventsource.Filter) (int, error)
}

// Metrics receives recomputation outcomes. Implemented by internal/metrics.
type Metrics interface {
	ProjectionRecomputed(projection string, duration time.Duration)
	ProjectionFailed(projection string)
}

// Config controls conflict handling of the system rollup and the page size
// used when rebuilding from the event store.
type Config struct {
	ConflictRetries int
	RetryInterval   time.Duration
	ReplayPageSize  int
}

// ---------------------------------------------------------------------------
// Engine
// ---------------------------------------------------------------------------

// Engine recomputes the score read models in response to domain events.
// Every recomputation is total: counters are rebuilt from the current
// findings, never adjusted by deltas.
type Engine struct {
	log        *slog.Logger
	checklists checklistRepo
	findings   findingRepo
	scores     scoreRepo
	systems    systemRepo
	bus        eventBus
	dispatcher dispatcher
	cfg        Config
	metrics    Metrics
}

// NewEngine creates an Engine. metrics may be nil. Call Subscribe to attach
// it to the bus.
func NewEngine(
	logger *slog.Logger,
	checklists checklistRepo,
	findings findingRepo,
	scores scoreRepo,
	systems systemRepo,
	bus eventBus,
	dispatcher dispatcher,
	cfg Config,
	metrics Metrics,
) *Engine {
	if cfg.ConflictRetries < 0 {
		cfg.ConflictRetries = 0
	}
	return &Engine{
		log:        logger.With("service", "projection"),
		checklists: checklists,
		findings:   findings,
		scores:     scores,
		systems:    systems,
		bus:        bus,
		dispatcher: dispatcher,
		cfg:        cfg,
		metrics:    metrics,
	}
}

// Rebuild replays every stored event through the current subscribers and
// returns the number of events replayed.
func (e *Engine) Rebuild(ctx context.Context) (int, error) {
	n, err := e.dispatcher.Replay(ctx, eventsource.Filter{Limit: e.cfg.ReplayPageSize})
	if err != nil {
		return n, err
	}
	e.log.InfoContext(ctx, "projections rebuilt", slog.Int("events", n))
	return n, nil
}

func (e *Engine) observe(projection string, start time.Time, err error) {
	if e.metrics == nil {
		return
	}
	if err != nil {
		e.metrics.ProjectionFailed(projection)
		return
	}
	e.metrics.ProjectionRecomputed(projection, time.Since(start))
}
