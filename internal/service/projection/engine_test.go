package projection

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/grc-backend/internal/adapter/memory"
	"github.com/heartmarshall/grc-backend/internal/domain"
	"github.com/heartmarshall/grc-backend/internal/eventsource"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

type env struct {
	db         *memory.DB
	checklists *memory.ChecklistRepo
	findings   *memory.FindingRepo
	scores     *memory.ScoreRepo
	systems    *memory.SystemRepo
	store      *eventsource.MemoryStore
	bus        *eventsource.Bus
	dispatcher *eventsource.Dispatcher
	engine     *Engine
	metrics    *recordingMetrics
}

type recordingMetrics struct {
	recomputed map[string]int
	failed     map[string]int
}

func (m *recordingMetrics) ProjectionRecomputed(p string, _ time.Duration) { m.recomputed[p]++ }
func (m *recordingMetrics) ProjectionFailed(p string)                      { m.failed[p]++ }

func newEnv(t *testing.T) *env {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db := memory.NewDB()
	e := &env{
		db:         db,
		checklists: memory.NewChecklistRepo(db),
		findings:   memory.NewFindingRepo(db),
		scores:     memory.NewScoreRepo(db),
		systems:    memory.NewSystemRepo(db),
		store:      eventsource.NewMemoryStore(),
		metrics:    &recordingMetrics{recomputed: map[string]int{}, failed: map[string]int{}},
	}
	e.bus = eventsource.NewBus(logger)
	e.dispatcher = eventsource.NewDispatcher(logger, e.store, e.bus, nil)
	e.engine = NewEngine(logger, e.checklists, e.findings, e.scores, e.systems, e.bus, e.dispatcher,
		Config{ConflictRetries: 3, RetryInterval: time.Millisecond}, e.metrics)
	e.engine.Subscribe()
	return e
}

func (e *env) checklist(t *testing.T, name string) *domain.StigChecklist {
	t.Helper()
	c, err := domain.NewChecklist(name)
	require.NoError(t, err)
	require.NoError(t, e.checklists.Save(context.Background(), c))
	e.dispatcher.Commit(context.Background(), c)
	return c
}

func (e *env) finding(t *testing.T, checklistID uuid.UUID, vulnID string, sev domain.SeverityCategory, status domain.Status) *domain.VulnerabilityFinding {
	t.Helper()
	f, err := domain.NewFinding(checklistID, domain.FindingInput{
		Rule:     domain.RuleDetails{VulnID: vulnID},
		Severity: sev,
		Status:   status,
	})
	require.NoError(t, err)
	require.NoError(t, e.findings.Save(context.Background(), f))
	e.dispatcher.Commit(context.Background(), f)
	return f
}

func (e *env) system(t *testing.T, checklists ...*domain.StigChecklist) *domain.SystemGroup {
	t.Helper()
	ctx := context.Background()
	g, err := domain.NewSystemGroup("Payroll", "PAY")
	require.NoError(t, err)
	require.NoError(t, e.systems.Save(ctx, g))
	for _, c := range checklists {
		c.AssignToSystem(g.ID())
		require.NoError(t, e.checklists.Save(ctx, c))
		g.AddChecklist(c.ID())
	}
	require.NoError(t, e.systems.Save(ctx, g))
	e.dispatcher.Commit(ctx, g)
	return g
}

func (e *env) score(t *testing.T, checklistID uuid.UUID) *domain.ChecklistScore {
	t.Helper()
	s, err := e.scores.Get(context.Background(), checklistID)
	require.NoError(t, err)
	return s
}

// ---------------------------------------------------------------------------
// Checklist score
// ---------------------------------------------------------------------------

func TestEngine_ScoreFollowsFindingEvents(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	c := e.checklist(t, "web-01")

	e.finding(t, c.ID(), "V-1", domain.SeverityCat1, domain.StatusOpen)
	e.finding(t, c.ID(), "V-2", domain.SeverityCat2, domain.StatusNotAFinding)

	s := e.score(t, c.ID())
	assert.Equal(t, 1, s.Cat1.Open)
	assert.Equal(t, 1, s.Cat2.NotAFinding)
	assert.Equal(t, 2, s.TotalFindings())
	assert.InDelta(t, 50.0, s.CompliancePercentage(), 0.001)
	assert.Equal(t, 3, s.RiskScore())
}

func TestEngine_StatusChangeClosesFinding(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)
	c := e.checklist(t, "web-01")
	f := e.finding(t, c.ID(), "V-1", domain.SeverityCat1, domain.StatusOpen)
	require.True(t, e.score(t, c.ID()).HasCriticalFindings())

	require.NoError(t, f.UpdateStatus(domain.StatusNotApplicable, "", "decommissioned service"))
	require.NoError(t, e.findings.Save(ctx, f))
	e.dispatcher.Commit(ctx, f)

	s := e.score(t, c.ID())
	assert.Equal(t, 0, s.TotalOpen())
	assert.Equal(t, 1, s.Cat1.NotApplicable)
	assert.False(t, s.HasCriticalFindings())
}

func TestEngine_OverrideMovesCategory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)
	c := e.checklist(t, "web-01")
	f := e.finding(t, c.ID(), "V-1", domain.SeverityCat2, domain.StatusOpen)

	require.NoError(t, f.SetSeverityOverride(domain.SeverityCat1, "exposed to the internet"))
	require.NoError(t, e.findings.Save(ctx, f))
	e.dispatcher.Commit(ctx, f)

	s := e.score(t, c.ID())
	assert.Equal(t, 1, s.Cat1.Open)
	assert.Equal(t, 0, s.Cat2.Open)
}

func TestEngine_RecalculateChecklist_Idempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)
	c := e.checklist(t, "web-01")
	e.finding(t, c.ID(), "V-1", domain.SeverityCat3, domain.StatusOpen)
	e.finding(t, c.ID(), "V-2", domain.SeverityCat1, domain.StatusNotReviewed)

	first, err := e.engine.RecalculateChecklist(ctx, c.ID())
	require.NoError(t, err)
	second, err := e.engine.RecalculateChecklist(ctx, c.ID())
	require.NoError(t, err)

	assert.True(t, first.SameCounts(second))
	assert.Equal(t, 2, second.TotalFindings())
}

func TestEngine_RecalculateChecklist_Empty(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	c := e.checklist(t, "empty")

	s, err := e.engine.RecalculateChecklist(context.Background(), c.ID())
	require.NoError(t, err)
	assert.Equal(t, 0, s.TotalFindings())
	assert.Equal(t, 100.0, s.CompliancePercentage())
	assert.Equal(t, 0, s.RiskScore())
}

func TestEngine_RecalculateChecklist_MissingChecklist(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	id := uuid.New()

	_, err := e.engine.RecalculateChecklist(context.Background(), id)

	var pe *domain.ProjectionError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, id, pe.AggregateID)
	assert.ErrorIs(t, err, domain.ErrProjection)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 1, e.metrics.failed[projectionChecklist])
}

func TestEngine_PublishesScoreUpdated(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	c := e.checklist(t, "web-01")

	var got []domain.ChecklistScoreUpdated
	e.bus.Subscribe(domain.EventChecklistScoreUpdated, "test", func(_ context.Context, ev eventsource.Event) error {
		got = append(got, ev.Payload.(domain.ChecklistScoreUpdated))
		return nil
	})

	e.finding(t, c.ID(), "V-1", domain.SeverityCat1, domain.StatusOpen)

	require.Len(t, got, 1)
	assert.Equal(t, c.ID(), got[0].ChecklistID)
	assert.Equal(t, 1, got[0].TotalOpen)
	assert.Nil(t, got[0].SystemID)

	// Derived notifications are not stored.
	stored, err := e.store.Load(context.Background(), eventsource.Filter{EventTypes: []string{domain.EventChecklistScoreUpdated}})
	require.NoError(t, err)
	assert.Empty(t, stored)
}

// ---------------------------------------------------------------------------
// System rollup
// ---------------------------------------------------------------------------

func TestEngine_SystemStatsSumChecklistScores(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)

	a := e.checklist(t, "web-01")
	b := e.checklist(t, "db-01")
	unscored := e.checklist(t, "new")
	e.finding(t, a.ID(), "V-1", domain.SeverityCat1, domain.StatusOpen)
	e.finding(t, a.ID(), "V-2", domain.SeverityCat2, domain.StatusOpen)
	e.finding(t, b.ID(), "V-1", domain.SeverityCat3, domain.StatusOpen)
	e.finding(t, b.ID(), "V-3", domain.SeverityCat1, domain.StatusNotAFinding)

	g := e.system(t, a, b, unscored)

	got, err := e.systems.GetByID(ctx, g.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.ComplianceStats{
		TotalChecklists: 3,
		TotalOpen:       3,
		Cat1Open:        1,
		Cat2Open:        1,
		Cat3Open:        1,
	}, got.Stats())
	assert.Equal(t, 6, got.RiskScore())

	// A later finding change flows through the checklist score into the rollup.
	e.finding(t, b.ID(), "V-4", domain.SeverityCat1, domain.StatusOpen)
	got, err = e.systems.GetByID(ctx, g.ID())
	require.NoError(t, err)
	assert.Equal(t, 2, got.Stats().Cat1Open)
	assert.Equal(t, 4, got.Stats().TotalOpen)
}

func TestEngine_RecalculateSystem_Idempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)
	a := e.checklist(t, "web-01")
	e.finding(t, a.ID(), "V-1", domain.SeverityCat1, domain.StatusOpen)
	g := e.system(t, a)

	before, err := e.systems.GetByID(ctx, g.ID())
	require.NoError(t, err)
	got, err := e.engine.RecalculateSystem(ctx, g.ID())
	require.NoError(t, err)

	assert.Equal(t, before.Stats(), got.Stats())
	assert.Equal(t, before.Version(), got.Version(), "unchanged stats must not be saved")
}

func TestEngine_RecalculateSystem_RetriesConflict(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)
	a := e.checklist(t, "web-01")
	e.finding(t, a.ID(), "V-1", domain.SeverityCat1, domain.StatusOpen)
	g := e.system(t)

	conflicts := 2
	systems := &systemRepoMock{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*domain.SystemGroup, error) {
			snap := g.Snapshot()
			snap.ChecklistIDs = []uuid.UUID{a.ID()}
			return domain.RehydrateSystemGroup(snap), nil
		},
		SaveFunc: func(ctx context.Context, sg *domain.SystemGroup) error {
			if conflicts > 0 {
				conflicts--
				return &domain.ConcurrencyError{Entity: "system_group", ID: sg.ID(), ExpectedVersion: sg.Version()}
			}
			sg.MarkPersisted(sg.Version() + 1)
			return nil
		},
	}
	e.engine.systems = systems

	got, err := e.engine.RecalculateSystem(ctx, g.ID())
	require.NoError(t, err)
	assert.Equal(t, 1, got.Stats().Cat1Open)
	assert.Len(t, systems.SaveCalls(), 3)
	assert.Len(t, systems.GetByIDCalls(), 3, "every attempt reloads the group")
}

func TestEngine_RecalculateSystem_GivesUp(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)
	a := e.checklist(t, "web-01")
	e.finding(t, a.ID(), "V-1", domain.SeverityCat1, domain.StatusOpen)
	g := e.system(t)

	systems := &systemRepoMock{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*domain.SystemGroup, error) {
			snap := g.Snapshot()
			snap.ChecklistIDs = []uuid.UUID{a.ID()}
			return domain.RehydrateSystemGroup(snap), nil
		},
		SaveFunc: func(ctx context.Context, sg *domain.SystemGroup) error {
			return &domain.ConcurrencyError{Entity: "system_group", ID: sg.ID()}
		},
	}
	e.engine.systems = systems

	_, err := e.engine.RecalculateSystem(ctx, g.ID())
	require.ErrorIs(t, err, domain.ErrConcurrencyConflict)
	assert.ErrorIs(t, err, domain.ErrProjection)
	assert.Len(t, systems.SaveCalls(), 4)
}

func TestEngine_RecalculateSystem_PermanentError(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	boom := errors.New("connection reset")
	systems := &systemRepoMock{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*domain.SystemGroup, error) {
			return nil, boom
		},
	}
	e.engine.systems = systems

	_, err := e.engine.RecalculateSystem(context.Background(), uuid.New())
	require.ErrorIs(t, err, boom)
	assert.Len(t, systems.GetByIDCalls(), 1)
	assert.Equal(t, 1, e.metrics.failed[projectionSystem])
}

// ---------------------------------------------------------------------------
// Rebuild
// ---------------------------------------------------------------------------

func TestEngine_RebuildRestoresScores(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)
	c := e.checklist(t, "web-01")
	e.finding(t, c.ID(), "V-1", domain.SeverityCat1, domain.StatusOpen)
	e.finding(t, c.ID(), "V-2", domain.SeverityCat3, domain.StatusOpen)
	want := e.score(t, c.ID())

	// Corrupt the read model, then replay.
	require.NoError(t, e.scores.Save(ctx, domain.NewChecklistScore(c.ID())))

	n, err := e.engine.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, e.store.Len(), n)
	assert.True(t, want.SameCounts(e.score(t, c.ID())))
}
