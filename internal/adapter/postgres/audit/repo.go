// Package audit implements the audit log repository using PostgreSQL.
// Records are append-only.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"

	"github.com/heartmarshall/grc-backend/internal/adapter/postgres"
	"github.com/heartmarshall/grc-backend/internal/domain"
)

const entity = "audit_record"

var columns = []string{"id", "actor", "entity_type", "entity_id", "action", "old_values", "new_values", "created_at"}

// Repo provides audit log persistence backed by PostgreSQL.
type Repo struct {
	db postgres.Querier
}

// New creates a new audit repository.
func New(db postgres.Querier) *Repo {
	return &Repo{db: db}
}

type row struct {
	ID         uuid.UUID `db:"id"`
	Actor      string    `db:"actor"`
	EntityType string    `db:"entity_type"`
	EntityID   uuid.UUID `db:"entity_id"`
	Action     string    `db:"action"`
	OldValues  []byte    `db:"old_values"`
	NewValues  []byte    `db:"new_values"`
	CreatedAt  time.Time `db:"created_at"`
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Log appends an audit record.
func (r *Repo) Log(ctx context.Context, record domain.AuditRecord) error {
	oldJSON, err := marshalValues(record.Old)
	if err != nil {
		return fmt.Errorf("audit_record marshal old values: %w", err)
	}
	newJSON, err := marshalValues(record.New)
	if err != nil {
		return fmt.Errorf("audit_record marshal new values: %w", err)
	}

	ins := postgres.Builder().Insert("audit_log").Columns(columns...).Values(
		record.ID, record.Actor, string(record.EntityType), record.EntityID, string(record.Action),
		oldJSON, newJSON, record.CreatedAt,
	)
	return postgres.ExecInsert(ctx, postgres.QuerierFromCtx(ctx, r.db), ins, entity, record.ID)
}

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// ListByEntity returns the change history for a specific entity, newest
// first. A non-positive limit returns the whole history.
func (r *Repo) ListByEntity(ctx context.Context, entityType domain.EntityType, entityID uuid.UUID, limit int) ([]domain.AuditRecord, error) {
	sb := postgres.Builder().Select(columns...).From("audit_log").
		Where(squirrel.Eq{"entity_type": string(entityType), "entity_id": entityID}).
		OrderBy("created_at DESC", "id")
	if limit > 0 {
		sb = sb.Limit(uint64(limit))
	}
	sql, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build audit_log select: %w", err)
	}

	var rows []row
	if err := pgxscan.Select(ctx, postgres.QuerierFromCtx(ctx, r.db), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("get audit_records by entity: %w", err)
	}

	records := make([]domain.AuditRecord, len(rows))
	for i, rw := range rows {
		rec, err := toDomain(rw)
		if err != nil {
			return nil, err
		}
		records[i] = rec
	}
	return records, nil
}

// ---------------------------------------------------------------------------
// Mapping helpers
// ---------------------------------------------------------------------------

// marshalValues maps an empty change set to NULL.
func marshalValues(v map[string]any) ([]byte, error) {
	if len(v) == 0 {
		return nil, nil
	}
	return json.Marshal(v)
}

func unmarshalValues(id uuid.UUID, data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	out := make(map[string]any)
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("audit_record %s unmarshal values: %w", id, err)
	}
	return out, nil
}

func toDomain(rw row) (domain.AuditRecord, error) {
	oldValues, err := unmarshalValues(rw.ID, rw.OldValues)
	if err != nil {
		return domain.AuditRecord{}, err
	}
	newValues, err := unmarshalValues(rw.ID, rw.NewValues)
	if err != nil {
		return domain.AuditRecord{}, err
	}
	return domain.AuditRecord{
		ID:         rw.ID,
		Actor:      rw.Actor,
		EntityType: domain.EntityType(rw.EntityType),
		EntityID:   rw.EntityID,
		Action:     domain.AuditAction(rw.Action),
		Old:        oldValues,
		New:        newValues,
		CreatedAt:  rw.CreatedAt,
	}, nil
}
