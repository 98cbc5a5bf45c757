package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/heartmarshall/grc-backend/internal/adapter/memory"
	"github.com/heartmarshall/grc-backend/internal/adapter/postgres"
	auditrepo "github.com/heartmarshall/grc-backend/internal/adapter/postgres/audit"
	checklistrepo "github.com/heartmarshall/grc-backend/internal/adapter/postgres/checklist"
	"github.com/heartmarshall/grc-backend/internal/adapter/postgres/eventstore"
	findingrepo "github.com/heartmarshall/grc-backend/internal/adapter/postgres/finding"
	scanrepo "github.com/heartmarshall/grc-backend/internal/adapter/postgres/scan"
	scorerepo "github.com/heartmarshall/grc-backend/internal/adapter/postgres/score"
	systemrepo "github.com/heartmarshall/grc-backend/internal/adapter/postgres/system"
	"github.com/heartmarshall/grc-backend/internal/config"
	"github.com/heartmarshall/grc-backend/internal/domain"
	"github.com/heartmarshall/grc-backend/internal/eventsource"
	"github.com/heartmarshall/grc-backend/internal/metrics"
	"github.com/heartmarshall/grc-backend/internal/service/checklist"
	"github.com/heartmarshall/grc-backend/internal/service/projection"
	"github.com/heartmarshall/grc-backend/internal/service/system"
	"github.com/heartmarshall/grc-backend/internal/transport/rest"
)

// ---------------------------------------------------------------------------
// Storage contracts shared by both backends
// ---------------------------------------------------------------------------

type checklistStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.StigChecklist, error)
	List(ctx context.Context, f domain.ChecklistFilter) ([]*domain.StigChecklist, error)
	Save(ctx context.Context, c *domain.StigChecklist) error
}

type findingStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.VulnerabilityFinding, error)
	ListByChecklist(ctx context.Context, checklistID uuid.UUID) ([]*domain.VulnerabilityFinding, error)
	Save(ctx context.Context, f *domain.VulnerabilityFinding) error
}

type systemStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.SystemGroup, error)
	List(ctx context.Context) ([]*domain.SystemGroup, error)
	Save(ctx context.Context, g *domain.SystemGroup) error
}

type scoreStore interface {
	Get(ctx context.Context, checklistID uuid.UUID) (*domain.ChecklistScore, error)
	GetMany(ctx context.Context, checklistIDs []uuid.UUID) (map[uuid.UUID]*domain.ChecklistScore, error)
	Save(ctx context.Context, s *domain.ChecklistScore) error
}

type scanStore interface {
	Create(ctx context.Context, s *domain.ScanRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ScanRecord, error)
	ListBySystem(ctx context.Context, systemID uuid.UUID) ([]*domain.ScanRecord, error)
	SetSystem(ctx context.Context, scanID, systemID uuid.UUID) error
}

type auditStore interface {
	Log(ctx context.Context, record domain.AuditRecord) error
	ListByEntity(ctx context.Context, entityType domain.EntityType, entityID uuid.UUID, limit int) ([]domain.AuditRecord, error)
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type stores struct {
	checklists checklistStore
	findings   findingStore
	systems    systemStore
	scores     scoreStore
	scans      scanStore
	audit      auditStore
	tx         txManager
	events     eventsource.Store
}

// ---------------------------------------------------------------------------
// Backend
// ---------------------------------------------------------------------------

// Backend is the wired application: storage, event plumbing, projections
// and services.
type Backend struct {
	Checklists *checklist.Service
	Systems    *system.Service
	Projection *projection.Engine
	Dispatcher *eventsource.Dispatcher
	Metrics    *metrics.Metrics
	Registry   *prometheus.Registry

	// Pool is nil when running on the in-memory backend.
	Pool *pgxpool.Pool

	events eventsource.Store
	log    *slog.Logger
}

// Build wires the application. An empty database DSN selects the in-memory
// backend; otherwise a PostgreSQL pool is opened and every repository, the
// event store included, runs on it.
func Build(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Backend, error) {
	b := &Backend{log: log}

	b.Registry = prometheus.NewRegistry()
	if cfg.Metrics.Enabled {
		b.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		b.Metrics = metrics.New(b.Registry, cfg.Metrics.Namespace)
	}

	registry := domain.NewEventRegistry()

	var st stores
	if cfg.Database.InMemory() {
		log.InfoContext(ctx, "using in-memory storage")
		st = memoryStores()
	} else {
		pool, err := postgres.NewPool(ctx, log, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		b.Pool = pool
		st = postgresStores(pool, registry)
	}
	b.events = st.events

	bus := eventsource.NewBus(log, eventsource.WithBusMetrics(b.Metrics))
	b.Dispatcher = eventsource.NewDispatcher(log, st.events, bus, b.Metrics)

	b.Projection = projection.NewEngine(log, st.checklists, st.findings, st.scores, st.systems, bus, b.Dispatcher,
		projection.Config{
			ConflictRetries: cfg.Projection.ConflictRetries,
			RetryInterval:   cfg.Projection.RetryInterval,
			ReplayPageSize:  cfg.Projection.ReplayPageSize,
		}, b.Metrics)
	b.Projection.Subscribe()

	b.Checklists = checklist.NewService(log, st.checklists, st.findings, st.systems, st.scores, st.audit, st.tx,
		b.Dispatcher, checklist.Config{MaxFileBytes: cfg.Import.MaxFileBytes}, b.Metrics)
	b.Systems = system.NewService(log, st.systems, st.checklists, st.scans, st.audit, st.tx, b.Dispatcher, b.Metrics)

	log.InfoContext(ctx, "application wired",
		slog.String("version", BuildVersion()),
		slog.Bool("in_memory", cfg.Database.InMemory()),
		slog.Bool("metrics", cfg.Metrics.Enabled),
	)
	return b, nil
}

func memoryStores() stores {
	db := memory.NewDB()
	return stores{
		checklists: memory.NewChecklistRepo(db),
		findings:   memory.NewFindingRepo(db),
		systems:    memory.NewSystemRepo(db),
		scores:     memory.NewScoreRepo(db),
		scans:      memory.NewScanRepo(db),
		audit:      memory.NewAuditRepo(db),
		tx:         memory.NewTxManager(db),
		events:     eventsource.NewMemoryStore(),
	}
}

func postgresStores(pool *pgxpool.Pool, registry *eventsource.Registry) stores {
	tx := postgres.NewTxManager(pool)
	return stores{
		checklists: checklistrepo.New(pool),
		findings:   findingrepo.New(pool),
		systems:    systemrepo.New(pool),
		scores:     scorerepo.New(pool),
		scans:      scanrepo.New(pool),
		audit:      auditrepo.New(pool),
		tx:         tx,
		events:     eventstore.New(pool, tx, registry),
	}
}

// Storage names the active backend: "postgres" or "memory".
func (b *Backend) Storage() string {
	if b.Pool == nil {
		return "memory"
	}
	return "postgres"
}

// Ping checks the database. It always succeeds on the in-memory backend.
func (b *Backend) Ping(ctx context.Context) error {
	if b.Pool == nil {
		return nil
	}
	return b.Pool.Ping(ctx)
}

// CheckEventLog reads the head of the event log. It fails when the log's
// table is missing even though the pool answers pings.
func (b *Backend) CheckEventLog(ctx context.Context) error {
	_, err := b.events.Load(ctx, eventsource.Filter{Limit: 1})
	return err
}

// HealthChecks lists the dependencies the ops server reports on.
func (b *Backend) HealthChecks() []rest.Check {
	return []rest.Check{
		{Name: "database", Backend: b.Storage(), Run: b.Ping},
		{Name: "event_log", Backend: b.Storage(), Run: b.CheckEventLog},
	}
}

// Close releases the database pool.
func (b *Backend) Close() {
	if b.Pool != nil {
		b.Pool.Close()
		b.log.Info("database pool closed")
	}
}
