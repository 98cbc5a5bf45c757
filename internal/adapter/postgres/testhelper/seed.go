package testhelper

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/grc-backend/internal/domain"
)

// uniqueSuffix returns a short unique string for generating non-conflicting test data.
func uniqueSuffix() string {
	return uuid.New().String()[:8]
}

// SeedSystemGroup inserts an active system group with no members.
func SeedSystemGroup(t *testing.T, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()

	id := uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)
	_, err := pool.Exec(context.Background(),
		`INSERT INTO system_groups (id, version, name, acronym, state, created_at, updated_at)
		 VALUES ($1, 1, $2, $3, $4, $5, $5)`,
		id, "System "+uniqueSuffix(), "SYS", string(domain.StateActive), now,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedSystemGroup: %v", err)
	}
	return id
}

// SeedChecklist inserts a draft CKL checklist for hostName, optionally
// assigned to systemID.
func SeedChecklist(t *testing.T, pool *pgxpool.Pool, hostName string, systemID *uuid.UUID) uuid.UUID {
	t.Helper()

	id := uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)
	_, err := pool.Exec(context.Background(),
		`INSERT INTO checklists (id, version, name, state, format, host_name, stig_id, raw, system_id, imported_at, created_at, updated_at)
		 VALUES ($1, 1, $2, $3, $4, $5, $6, $7, $8, $9, $9, $9)`,
		id, hostName+" "+uniqueSuffix(), string(domain.StateDraft), string(domain.FormatCKL),
		hostName, "Seed_STIG", []byte("<CHECKLIST/>"), systemID, now,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedChecklist: %v", err)
	}
	return id
}

// SeedFinding inserts a finding keyed by vulnID at the given position.
func SeedFinding(t *testing.T, pool *pgxpool.Pool, checklistID uuid.UUID, vulnID string, position int,
	severity domain.SeverityCategory, status domain.Status) uuid.UUID {
	t.Helper()

	id := uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)
	_, err := pool.Exec(context.Background(),
		`INSERT INTO findings (id, version, checklist_id, rule_key, rule, severity, status, position, created_at, updated_at)
		 VALUES ($1, 1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		id, checklistID, vulnID, map[string]string{"VulnID": vulnID}, string(severity), string(status), position, now,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedFinding: %v", err)
	}
	return id
}
