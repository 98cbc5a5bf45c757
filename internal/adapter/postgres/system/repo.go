// Package system implements the SystemGroup repository using PostgreSQL.
package system

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"

	"github.com/heartmarshall/grc-backend/internal/adapter/postgres"
	"github.com/heartmarshall/grc-backend/internal/domain"
)

const (
	table  = "system_groups"
	entity = "system_group"
)

var columns = []string{
	"id", "version", "name", "acronym", "description", "state",
	"checklist_ids", "asset_ids", "scan_ids",
	"total_checklists", "total_open", "cat1_open", "cat2_open", "cat3_open",
	"stats_updated_at", "created_at", "updated_at",
}

// Repo provides system group persistence backed by PostgreSQL.
type Repo struct {
	db postgres.Querier
}

// New creates a new system group repository.
func New(db postgres.Querier) *Repo {
	return &Repo{db: db}
}

type row struct {
	ID              uuid.UUID   `db:"id"`
	Version         int         `db:"version"`
	Name            string      `db:"name"`
	Acronym         string      `db:"acronym"`
	Description     string      `db:"description"`
	State           string      `db:"state"`
	ChecklistIDs    []uuid.UUID `db:"checklist_ids"`
	AssetIDs        []uuid.UUID `db:"asset_ids"`
	ScanIDs         []uuid.UUID `db:"scan_ids"`
	TotalChecklists int         `db:"total_checklists"`
	TotalOpen       int         `db:"total_open"`
	Cat1Open        int         `db:"cat1_open"`
	Cat2Open        int         `db:"cat2_open"`
	Cat3Open        int         `db:"cat3_open"`
	StatsUpdatedAt  *time.Time  `db:"stats_updated_at"`
	CreatedAt       time.Time   `db:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at"`
}

func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (*domain.SystemGroup, error) {
	sql, args, err := postgres.Builder().Select(columns...).From(table).
		Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build system_group select: %w", err)
	}

	var rw row
	if err := pgxscan.Get(ctx, postgres.QuerierFromCtx(ctx, r.db), &rw, sql, args...); err != nil {
		return nil, postgres.MapError(err, entity, id)
	}
	return toDomain(rw), nil
}

// List returns every system group ordered by creation time.
func (r *Repo) List(ctx context.Context) ([]*domain.SystemGroup, error) {
	sql, args, err := postgres.Builder().Select(columns...).From(table).
		OrderBy("created_at", "id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build system_group list: %w", err)
	}

	var rows []row
	if err := pgxscan.Select(ctx, postgres.QuerierFromCtx(ctx, r.db), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list system_groups: %w", err)
	}

	out := make([]*domain.SystemGroup, len(rows))
	for i, rw := range rows {
		out[i] = toDomain(rw)
	}
	return out, nil
}

// Save inserts a new group or updates an existing one if its version is
// current. Stats and membership are written together so a stale rollup can
// never overwrite a newer membership change.
func (r *Repo) Save(ctx context.Context, g *domain.SystemGroup) error {
	s := g.Snapshot()
	q := postgres.QuerierFromCtx(ctx, r.db)

	checklists, assets, scans := idSet(s.ChecklistIDs), idSet(s.AssetIDs), idSet(s.ScanIDs)

	if g.IsNew() {
		ins := postgres.Builder().Insert(table).Columns(columns...).Values(
			s.ID, 1, s.Name, s.Acronym, s.Description, string(s.State),
			checklists, assets, scans,
			s.Stats.TotalChecklists, s.Stats.TotalOpen, s.Stats.Cat1Open, s.Stats.Cat2Open, s.Stats.Cat3Open,
			s.StatsUpdatedAt, s.CreatedAt, s.UpdatedAt,
		)
		if err := postgres.ExecInsert(ctx, q, ins, entity, s.ID); err != nil {
			return err
		}
		g.MarkPersisted(1)
		return nil
	}

	upd := postgres.Builder().Update(table).
		Set("version", squirrel.Expr("version + 1")).
		Set("name", s.Name).
		Set("acronym", s.Acronym).
		Set("description", s.Description).
		Set("state", string(s.State)).
		Set("checklist_ids", checklists).
		Set("asset_ids", assets).
		Set("scan_ids", scans).
		Set("total_checklists", s.Stats.TotalChecklists).
		Set("total_open", s.Stats.TotalOpen).
		Set("cat1_open", s.Stats.Cat1Open).
		Set("cat2_open", s.Stats.Cat2Open).
		Set("cat3_open", s.Stats.Cat3Open).
		Set("stats_updated_at", s.StatsUpdatedAt).
		Set("updated_at", s.UpdatedAt).
		Where(squirrel.Eq{"id": s.ID, "version": s.Version})
	if err := postgres.ExecVersioned(ctx, q, upd, table, entity, s.ID, s.Version); err != nil {
		return err
	}
	g.MarkPersisted(s.Version + 1)
	return nil
}

func idSet(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}

func toDomain(rw row) *domain.SystemGroup {
	return domain.RehydrateSystemGroup(domain.SystemGroupSnapshot{
		ID:           rw.ID,
		Version:      rw.Version,
		CreatedAt:    rw.CreatedAt,
		UpdatedAt:    rw.UpdatedAt,
		Name:         rw.Name,
		Acronym:      rw.Acronym,
		Description:  rw.Description,
		State:        domain.LifecycleState(rw.State),
		ChecklistIDs: rw.ChecklistIDs,
		AssetIDs:     rw.AssetIDs,
		ScanIDs:      rw.ScanIDs,
		Stats: domain.ComplianceStats{
			TotalChecklists: rw.TotalChecklists,
			TotalOpen:       rw.TotalOpen,
			Cat1Open:        rw.Cat1Open,
			Cat2Open:        rw.Cat2Open,
			Cat3Open:        rw.Cat3Open,
		},
		StatsUpdatedAt: rw.StatsUpdatedAt,
	})
}
