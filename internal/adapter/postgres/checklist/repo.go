// Package checklist implements the StigChecklist repository using
// PostgreSQL. Finding ids are not stored on the checklist row; they are
// read back from the findings table in import order.
package checklist

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
	table  = "checklists"
	entity = "checklist"
)

var columns = []string{
	"id", "version", "name", "state", "format", "host_name", "stig_id",
	"asset", "benchmark", "raw", "system_id", "imported_at", "created_at", "updated_at",
}

// Repo provides checklist persistence backed by PostgreSQL.
type Repo struct {
	db postgres.Querier
}

// New creates a new checklist repository.
func New(db postgres.Querier) *Repo {
	return &Repo{db: db}
}

type row struct {
	ID         uuid.UUID  `db:"id"`
	Version    int        `db:"version"`
	Name       string     `db:"name"`
	State      string     `db:"state"`
	Format     string     `db:"format"`
	HostName   string     `db:"host_name"`
	STIGID     string     `db:"stig_id"`
	Asset      []byte     `db:"asset"`
	Benchmark  []byte     `db:"benchmark"`
	Raw        []byte     `db:"raw"`
	SystemID   *uuid.UUID `db:"system_id"`
	ImportedAt *time.Time `db:"imported_at"`
	CreatedAt  time.Time  `db:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"`
}

type findingRef struct {
	ID          uuid.UUID `db:"id"`
	ChecklistID uuid.UUID `db:"checklist_id"`
}

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (*domain.StigChecklist, error) {
	q := postgres.QuerierFromCtx(ctx, r.db)

	sql, args, err := postgres.Builder().Select(columns...).From(table).
		Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build checklist select: %w", err)
	}

	var rw row
	if err := pgxscan.Get(ctx, q, &rw, sql, args...); err != nil {
		return nil, postgres.MapError(err, entity, id)
	}

	refs, err := r.findingRefs(ctx, q, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	return toDomain(rw, refs[id])
}

// List returns matching checklists ordered by creation time.
func (r *Repo) List(ctx context.Context, f domain.ChecklistFilter) ([]*domain.StigChecklist, error) {
	q := postgres.QuerierFromCtx(ctx, r.db)

	sb := postgres.Builder().Select(columns...).From(table).OrderBy("created_at", "id")
	if f.SystemID != nil {
		sb = sb.Where(squirrel.Eq{"system_id": *f.SystemID})
	}
	if f.Unassigned {
		sb = sb.Where(squirrel.Eq{"system_id": nil})
	}
	if f.State != "" {
		sb = sb.Where(squirrel.Eq{"state": string(f.State)})
	}
	if f.HostName != "" {
		sb = sb.Where(squirrel.Eq{"host_name": f.HostName})
	}
	if f.STIGID != "" {
		sb = sb.Where(squirrel.Eq{"stig_id": f.STIGID})
	}
	if f.Limit > 0 {
		sb = sb.Limit(uint64(f.Limit))
	}

	sql, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build checklist list: %w", err)
	}

	var rows []row
	if err := pgxscan.Select(ctx, q, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list checklists: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, len(rows))
	for i, rw := range rows {
		ids[i] = rw.ID
	}
	refs, err := r.findingRefs(ctx, q, ids)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.StigChecklist, len(rows))
	for i, rw := range rows {
		c, err := toDomain(rw, refs[rw.ID])
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

// findingRefs returns the finding ids of each checklist in import order.
func (r *Repo) findingRefs(ctx context.Context, q postgres.Querier, checklistIDs []uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	sql, args, err := postgres.Builder().Select("id", "checklist_id").From("findings").
		Where(squirrel.Eq{"checklist_id": checklistIDs}).
		OrderBy("checklist_id", "position", "created_at").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build finding refs: %w", err)
	}

	var refs []findingRef
	if err := pgxscan.Select(ctx, q, &refs, sql, args...); err != nil {
		return nil, fmt.Errorf("load finding refs: %w", err)
	}

	out := make(map[uuid.UUID][]uuid.UUID, len(checklistIDs))
	for _, ref := range refs {
		out[ref.ChecklistID] = append(out[ref.ChecklistID], ref.ID)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Save inserts a new checklist or updates an existing one if its version is
// current.
func (r *Repo) Save(ctx context.Context, c *domain.StigChecklist) error {
	s := c.Snapshot()
	q := postgres.QuerierFromCtx(ctx, r.db)

	asset, err := json.Marshal(s.Asset)
	if err != nil {
		return fmt.Errorf("checklist %s marshal asset: %w", s.ID, err)
	}
	benchmark, err := json.Marshal(s.Benchmark)
	if err != nil {
		return fmt.Errorf("checklist %s marshal benchmark: %w", s.ID, err)
	}

	if c.IsNew() {
		ins := postgres.Builder().Insert(table).Columns(columns...).Values(
			s.ID, 1, s.Name, string(s.State), string(s.Format), s.Asset.HostName, s.Benchmark.STIGID,
			asset, benchmark, s.Raw, s.SystemID, s.ImportedAt, s.CreatedAt, s.UpdatedAt,
		)
		if err := postgres.ExecInsert(ctx, q, ins, entity, s.ID); err != nil {
			return err
		}
		c.MarkPersisted(1)
		return nil
	}

	upd := postgres.Builder().Update(table).
		Set("version", squirrel.Expr("version + 1")).
		Set("name", s.Name).
		Set("state", string(s.State)).
		Set("format", string(s.Format)).
		Set("host_name", s.Asset.HostName).
		Set("stig_id", s.Benchmark.STIGID).
		Set("asset", asset).
		Set("benchmark", benchmark).
		Set("raw", s.Raw).
		Set("system_id", s.SystemID).
		Set("imported_at", s.ImportedAt).
		Set("updated_at", s.UpdatedAt).
		Where(squirrel.Eq{"id": s.ID, "version": s.Version})
	if err := postgres.ExecVersioned(ctx, q, upd, table, entity, s.ID, s.Version); err != nil {
		return err
	}
	c.MarkPersisted(s.Version + 1)
	return nil
}

// ---------------------------------------------------------------------------
// Mapping helpers
// ---------------------------------------------------------------------------

func toDomain(rw row, findingIDs []uuid.UUID) (*domain.StigChecklist, error) {
	var asset domain.AssetInfo
	if len(rw.Asset) > 0 {
		if err := json.Unmarshal(rw.Asset, &asset); err != nil {
			return nil, fmt.Errorf("checklist %s unmarshal asset: %w", rw.ID, err)
		}
	}
	var benchmark domain.BenchmarkInfo
	if len(rw.Benchmark) > 0 {
		if err := json.Unmarshal(rw.Benchmark, &benchmark); err != nil {
			return nil, fmt.Errorf("checklist %s unmarshal benchmark: %w", rw.ID, err)
		}
	}
	return domain.RehydrateChecklist(domain.ChecklistSnapshot{
		ID:         rw.ID,
		Version:    rw.Version,
		CreatedAt:  rw.CreatedAt,
		UpdatedAt:  rw.UpdatedAt,
		Name:       rw.Name,
		State:      domain.LifecycleState(rw.State),
		Format:     domain.SourceFormat(rw.Format),
		Asset:      asset,
		Benchmark:  benchmark,
		Raw:        rw.Raw,
		SystemID:   rw.SystemID,
		FindingIDs: findingIDs,
		ImportedAt: rw.ImportedAt,
	}), nil
}
