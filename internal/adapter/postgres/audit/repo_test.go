package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/heartmarshall/grc-backend/internal/adapter/postgres/audit"
	"github.com/heartmarshall/grc-backend/internal/adapter/postgres/testhelper"
	"github.com/heartmarshall/grc-backend/internal/domain"
)

func TestRepo_Log(t *testing.T) {
	mock := testhelper.NewMockQuerier(t)
	repo := audit.New(mock)

	rec := domain.NewAuditRecord("alice", domain.AuditActionUpdate, domain.EntityTypeFinding, uuid.New(),
		map[string]any{"status": "open"}, map[string]any{"status": "not_a_finding"})

	mock.ExpectExec(`INSERT INTO audit_log \(id,actor,entity_type,entity_id,action,old_values,new_values,created_at\)`).
		WithArgs(rec.ID, "alice", "FINDING", rec.EntityID, "UPDATE",
			[]byte(`{"status":"open"}`), []byte(`{"status":"not_a_finding"}`), rec.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Log(context.Background(), rec); err != nil {
		t.Fatalf("Log() unexpected error: %v", err)
	}
	testhelper.ExpectationsWereMet(t, mock)
}

func TestRepo_ListByEntity_Mock(t *testing.T) {
	mock := testhelper.NewMockQuerier(t)
	repo := audit.New(mock)
	entityID := uuid.New()
	now := time.Now().UTC()

	cols := []string{"id", "actor", "entity_type", "entity_id", "action", "old_values", "new_values", "created_at"}
	mock.ExpectQuery(`SELECT .* FROM audit_log WHERE entity_id = \$1 AND entity_type = \$2 ORDER BY created_at DESC, id LIMIT 10`).
		WithArgs(entityID.String(), "CHECKLIST").
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow(uuid.New(), "system", "CHECKLIST", entityID, "IMPORT", []byte(nil), []byte(`{"findings":12}`), now))

	got, err := repo.ListByEntity(context.Background(), domain.EntityTypeChecklist, entityID, 10)
	if err != nil {
		t.Fatalf("ListByEntity() unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("ListByEntity() returned %d records, want 1", len(got))
	}
	if got[0].Old != nil {
		t.Errorf("Old = %v, want nil", got[0].Old)
	}
	if got[0].New["findings"] != float64(12) {
		t.Errorf("New[findings] = %v, want 12", got[0].New["findings"])
	}
	testhelper.ExpectationsWereMet(t, mock)
}

// ---------------------------------------------------------------------------
// Integration tests (PostgreSQL in a container, skipped with -short)
// ---------------------------------------------------------------------------

func TestRepo_ListByEntity_Integration(t *testing.T) {
	t.Parallel()
	pool := testhelper.SetupTestDB(t)
	repo := audit.New(pool)
	ctx := context.Background()

	entityID := uuid.New()
	other := uuid.New()
	base := time.Now().UTC().Truncate(time.Microsecond)

	for i := range 3 {
		rec := domain.NewAuditRecord("bob", domain.AuditActionUpdate, domain.EntityTypeFinding, entityID,
			nil, map[string]any{"step": i})
		rec.CreatedAt = base.Add(time.Duration(i) * time.Second)
		if err := repo.Log(ctx, rec); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}
	if err := repo.Log(ctx, domain.NewAuditRecord("bob", domain.AuditActionCreate, domain.EntityTypeFinding, other, nil, nil)); err != nil {
		t.Fatalf("Log: %v", err)
	}

	got, err := repo.ListByEntity(ctx, domain.EntityTypeFinding, entityID, 2)
	if err != nil {
		t.Fatalf("ListByEntity: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].New["step"] != float64(2) || got[1].New["step"] != float64(1) {
		t.Errorf("records not newest first: %v, %v", got[0].New, got[1].New)
	}

	all, err := repo.ListByEntity(ctx, domain.EntityTypeChecklist, entityID, 0)
	if err != nil {
		t.Fatalf("ListByEntity: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("entity types must be isolated, got %d records", len(all))
	}
}
