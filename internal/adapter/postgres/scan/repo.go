// Package scan stores imported vulnerability and SCAP scan summaries in
// PostgreSQL.
package scan

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

const (
	table  = "scans"
	entity = "scan"
)

var columns = []string{"id", "format", "name", "policy_name", "summary", "raw", "system_id", "imported_at"}

// Repo provides scan record persistence backed by PostgreSQL.
type Repo struct {
	db postgres.Querier
}

// New creates a new scan repository.
func New(db postgres.Querier) *Repo {
	return &Repo{db: db}
}

type row struct {
	ID         uuid.UUID  `db:"id"`
	Format     string     `db:"format"`
	Name       string     `db:"name"`
	PolicyName string     `db:"policy_name"`
	Summary    []byte     `db:"summary"`
	Raw        []byte     `db:"raw"`
	SystemID   *uuid.UUID `db:"system_id"`
	ImportedAt time.Time  `db:"imported_at"`
}

func (r *Repo) Create(ctx context.Context, s *domain.ScanRecord) error {
	summary, err := json.Marshal(s.Summary)
	if err != nil {
		return fmt.Errorf("scan %s marshal summary: %w", s.ID, err)
	}
	ins := postgres.Builder().Insert(table).Columns(columns...).Values(
		s.ID, string(s.Format), s.Name, s.PolicyName, summary, s.Raw, s.SystemID, s.ImportedAt,
	)
	return postgres.ExecInsert(ctx, postgres.QuerierFromCtx(ctx, r.db), ins, entity, s.ID)
}

func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ScanRecord, error) {
	sql, args, err := postgres.Builder().Select(columns...).From(table).
		Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build scan select: %w", err)
	}

	var rw row
	if err := pgxscan.Get(ctx, postgres.QuerierFromCtx(ctx, r.db), &rw, sql, args...); err != nil {
		return nil, postgres.MapError(err, entity, id)
	}
	return toDomain(rw)
}

// ListBySystem returns the scans attached to a system group, newest first.
func (r *Repo) ListBySystem(ctx context.Context, systemID uuid.UUID) ([]*domain.ScanRecord, error) {
	sql, args, err := postgres.Builder().Select(columns...).From(table).
		Where(squirrel.Eq{"system_id": systemID}).
		OrderBy("imported_at DESC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build scan list: %w", err)
	}

	var rows []row
	if err := pgxscan.Select(ctx, postgres.QuerierFromCtx(ctx, r.db), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list scans of system_group %s: %w", systemID, err)
	}

	out := make([]*domain.ScanRecord, len(rows))
	for i, rw := range rows {
		s, err := toDomain(rw)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// SetSystem attaches a stored scan to a system group.
func (r *Repo) SetSystem(ctx context.Context, scanID, systemID uuid.UUID) error {
	sql, args, err := postgres.Builder().Update(table).
		Set("system_id", systemID).
		Where(squirrel.Eq{"id": scanID}).ToSql()
	if err != nil {
		return fmt.Errorf("build scan update: %w", err)
	}

	tag, err := postgres.QuerierFromCtx(ctx, r.db).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(err, entity, scanID)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", entity, scanID, domain.ErrNotFound)
	}
	return nil
}

func toDomain(rw row) (*domain.ScanRecord, error) {
	var summary domain.ScanSummary
	if len(rw.Summary) > 0 {
		if err := json.Unmarshal(rw.Summary, &summary); err != nil {
			return nil, fmt.Errorf("scan %s unmarshal summary: %w", rw.ID, err)
		}
	}
	return &domain.ScanRecord{
		ID:         rw.ID,
		Format:     domain.SourceFormat(rw.Format),
		Name:       rw.Name,
		PolicyName: rw.PolicyName,
		Summary:    summary,
		Raw:        rw.Raw,
		SystemID:   rw.SystemID,
		ImportedAt: rw.ImportedAt,
	}, nil
}
