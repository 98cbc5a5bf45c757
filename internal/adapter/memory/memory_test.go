package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/grc-backend/internal/domain"
)

func seedChecklist(t *testing.T, db *DB) *domain.StigChecklist {
	t.Helper()
	c, err := domain.NewChecklist("web-01")
	require.NoError(t, err)
	require.NoError(t, NewChecklistRepo(db).Save(context.Background(), c))
	return c
}

func newFinding(t *testing.T, checklistID uuid.UUID, vulnID string, pos int) *domain.VulnerabilityFinding {
	t.Helper()
	f, err := domain.NewFinding(checklistID, domain.FindingInput{
		Rule:     domain.RuleDetails{VulnID: vulnID},
		Severity: domain.SeverityCat2,
		Status:   domain.StatusOpen,
		Position: pos,
	})
	require.NoError(t, err)
	return f
}

func TestChecklistRepo_SaveVersioning(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := NewDB()
	repo := NewChecklistRepo(db)

	c := seedChecklist(t, db)
	assert.Equal(t, 1, c.Version())

	// Two readers load the same version; the second writer loses.
	a, err := repo.GetByID(ctx, c.ID())
	require.NoError(t, err)
	b, err := repo.GetByID(ctx, c.ID())
	require.NoError(t, err)

	require.NoError(t, repo.Save(ctx, a))
	assert.Equal(t, 2, a.Version())

	err = repo.Save(ctx, b)
	var ce *domain.ConcurrencyError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 1, ce.ExpectedVersion)
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)
}

func TestChecklistRepo_UnknownSystem(t *testing.T) {
	t.Parallel()
	db := NewDB()
	c := seedChecklist(t, db)

	c.AssignToSystem(uuid.New())
	err := NewChecklistRepo(db).Save(context.Background(), c)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestChecklistRepo_InsertTwice(t *testing.T) {
	t.Parallel()
	db := NewDB()
	c := seedChecklist(t, db)

	dup := domain.RehydrateChecklist(domain.ChecklistSnapshot{ID: c.ID(), Name: "x", State: domain.StateDraft})
	err := NewChecklistRepo(db).Save(context.Background(), dup)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestChecklistRepo_NotFound(t *testing.T) {
	t.Parallel()
	_, err := NewChecklistRepo(NewDB()).GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestChecklistRepo_FindingIDsFollowPosition(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := NewDB()
	c := seedChecklist(t, db)
	findings := NewFindingRepo(db)

	second := newFinding(t, c.ID(), "V-2", 1)
	first := newFinding(t, c.ID(), "V-1", 0)
	require.NoError(t, findings.Save(ctx, second))
	require.NoError(t, findings.Save(ctx, first))

	got, err := NewChecklistRepo(db).GetByID(ctx, c.ID())
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{first.ID(), second.ID()}, got.FindingIDs())

	list, err := findings.ListByChecklist(ctx, c.ID())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "V-1", list[0].Key())
}

func TestFindingRepo_RequiresChecklist(t *testing.T) {
	t.Parallel()
	f := newFinding(t, uuid.New(), "V-1", 0)
	err := NewFindingRepo(NewDB()).Save(context.Background(), f)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestChecklistRepo_List(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := NewDB()
	repo := NewChecklistRepo(db)

	sys, err := domain.NewSystemGroup("Payroll", "PAY")
	require.NoError(t, err)
	require.NoError(t, NewSystemRepo(db).Save(ctx, sys))

	assigned := seedChecklist(t, db)
	assigned.AssignToSystem(sys.ID())
	require.NoError(t, repo.Save(ctx, assigned))
	seedChecklist(t, db)

	sysID := sys.ID()
	tests := []struct {
		name   string
		filter domain.ChecklistFilter
		want   int
	}{
		{name: "all", filter: domain.ChecklistFilter{}, want: 2},
		{name: "by system", filter: domain.ChecklistFilter{SystemID: &sysID}, want: 1},
		{name: "unassigned", filter: domain.ChecklistFilter{Unassigned: true}, want: 1},
		{name: "limit", filter: domain.ChecklistFilter{Limit: 1}, want: 1},
		{name: "state", filter: domain.ChecklistFilter{State: domain.StateActive}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.List(ctx, tt.filter)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestScoreRepo(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := NewDB()
	repo := NewScoreRepo(db)
	c := seedChecklist(t, db)

	_, err := repo.Get(ctx, c.ID())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	s := domain.NewChecklistScore(c.ID())
	s.Add(domain.SeverityCat1, domain.StatusOpen)
	require.NoError(t, repo.Save(ctx, s))

	got, err := repo.Get(ctx, c.ID())
	require.NoError(t, err)
	assert.Equal(t, 1, got.Cat1.Open)

	// Returned scores are copies.
	got.Cat1.Open = 9
	again, _ := repo.Get(ctx, c.ID())
	assert.Equal(t, 1, again.Cat1.Open)

	many, err := repo.GetMany(ctx, []uuid.UUID{c.ID(), uuid.New()})
	require.NoError(t, err)
	assert.Len(t, many, 1)
}

func TestScanRepo(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := NewDB()
	repo := NewScanRepo(db)

	sys, err := domain.NewSystemGroup("Payroll", "PAY")
	require.NoError(t, err)
	require.NoError(t, NewSystemRepo(db).Save(ctx, sys))

	rec := &domain.ScanRecord{ID: uuid.New(), Format: domain.FormatNessus, Name: "weekly"}
	require.NoError(t, repo.Create(ctx, rec))
	assert.ErrorIs(t, repo.Create(ctx, rec), domain.ErrAlreadyExists)

	require.NoError(t, repo.SetSystem(ctx, rec.ID, sys.ID()))
	list, err := repo.ListBySystem(ctx, sys.ID())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "weekly", list[0].Name)

	assert.ErrorIs(t, repo.SetSystem(ctx, rec.ID, uuid.New()), domain.ErrNotFound)
}

func TestAuditRepo_ListByEntity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewAuditRepo(NewDB())
	id := uuid.New()

	for _, action := range []domain.AuditAction{domain.AuditActionCreate, domain.AuditActionUpdate} {
		require.NoError(t, repo.Log(ctx, domain.NewAuditRecord("", action, domain.EntityTypeFinding, id, nil, nil)))
	}
	require.NoError(t, repo.Log(ctx, domain.NewAuditRecord("bob", domain.AuditActionCreate, domain.EntityTypeFinding, uuid.New(), nil, nil)))

	got, err := repo.ListByEntity(ctx, domain.EntityTypeFinding, id, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.AuditActionUpdate, got[0].Action)
	assert.Equal(t, domain.SystemActor, got[0].Actor)

	limited, err := repo.ListByEntity(ctx, domain.EntityTypeFinding, id, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestTxManager_RollbackOnError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := NewDB()
	tx := NewTxManager(db)
	repo := NewChecklistRepo(db)

	boom := errors.New("boom")
	var id uuid.UUID
	err := tx.RunInTx(ctx, func(ctx context.Context) error {
		c, err := domain.NewChecklist("rolled back")
		require.NoError(t, err)
		id = c.ID()
		require.NoError(t, repo.Save(ctx, c))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = repo.GetByID(ctx, id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTxManager_CommitAndNested(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := NewDB()
	tx := NewTxManager(db)
	repo := NewChecklistRepo(db)

	var id uuid.UUID
	err := tx.RunInTx(ctx, func(ctx context.Context) error {
		return tx.RunInTx(ctx, func(ctx context.Context) error {
			c, err := domain.NewChecklist("kept")
			if err != nil {
				return err
			}
			id = c.ID()
			return repo.Save(ctx, c)
		})
	})
	require.NoError(t, err)

	_, err = repo.GetByID(ctx, id)
	assert.NoError(t, err)
}
