// Package finding implements the VulnerabilityFinding repository using
// PostgreSQL.
package finding

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
	table  = "findings"
	entity = "finding"
)

var columns = []string{
	"id", "version", "checklist_id", "rule_key", "rule", "severity", "source_severity",
	"status", "severity_override", "severity_justification", "finding_details",
	"comments", "cci_refs", "position", "created_at", "updated_at",
}

// Repo provides finding persistence backed by PostgreSQL.
type Repo struct {
	db postgres.Querier
}

// New creates a new finding repository.
func New(db postgres.Querier) *Repo {
	return &Repo{db: db}
}

type row struct {
	ID                    uuid.UUID `db:"id"`
	Version               int       `db:"version"`
	ChecklistID           uuid.UUID `db:"checklist_id"`
	RuleKey               string    `db:"rule_key"`
	Rule                  []byte    `db:"rule"`
	Severity              string    `db:"severity"`
	SourceSeverity        string    `db:"source_severity"`
	Status                string    `db:"status"`
	SeverityOverride      string    `db:"severity_override"`
	SeverityJustification string    `db:"severity_justification"`
	FindingDetails        string    `db:"finding_details"`
	Comments              string    `db:"comments"`
	CCIRefs               []string  `db:"cci_refs"`
	Position              int       `db:"position"`
	CreatedAt             time.Time `db:"created_at"`
	UpdatedAt             time.Time `db:"updated_at"`
}

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (*domain.VulnerabilityFinding, error) {
	sql, args, err := postgres.Builder().Select(columns...).From(table).
		Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build finding select: %w", err)
	}

	var rw row
	if err := pgxscan.Get(ctx, postgres.QuerierFromCtx(ctx, r.db), &rw, sql, args...); err != nil {
		return nil, postgres.MapError(err, entity, id)
	}
	return toDomain(rw)
}

// ListByChecklist returns the findings of a checklist in import order.
func (r *Repo) ListByChecklist(ctx context.Context, checklistID uuid.UUID) ([]*domain.VulnerabilityFinding, error) {
	sql, args, err := postgres.Builder().Select(columns...).From(table).
		Where(squirrel.Eq{"checklist_id": checklistID}).
		OrderBy("position", "created_at").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build finding list: %w", err)
	}

	var rows []row
	if err := pgxscan.Select(ctx, postgres.QuerierFromCtx(ctx, r.db), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list findings of checklist %s: %w", checklistID, err)
	}

	out := make([]*domain.VulnerabilityFinding, len(rows))
	for i, rw := range rows {
		f, err := toDomain(rw)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Save inserts a new finding or updates an existing one if its version is
// current.
func (r *Repo) Save(ctx context.Context, f *domain.VulnerabilityFinding) error {
	s := f.Snapshot()
	q := postgres.QuerierFromCtx(ctx, r.db)

	rule, err := json.Marshal(s.Rule)
	if err != nil {
		return fmt.Errorf("finding %s marshal rule: %w", s.ID, err)
	}
	cci := s.CCIRefs
	if cci == nil {
		cci = []string{}
	}

	if f.IsNew() {
		ins := postgres.Builder().Insert(table).Columns(columns...).Values(
			s.ID, 1, s.ChecklistID, s.Rule.ScopedKey(), rule, string(s.Severity), s.SourceSeverity,
			string(s.Status.Status), string(s.Status.SeverityOverride), s.Status.SeverityJustification,
			s.FindingDetails, s.Comments, cci, s.Position, s.CreatedAt, s.UpdatedAt,
		)
		if err := postgres.ExecInsert(ctx, q, ins, entity, s.ID); err != nil {
			return err
		}
		f.MarkPersisted(1)
		return nil
	}

	upd := postgres.Builder().Update(table).
		Set("version", squirrel.Expr("version + 1")).
		Set("rule_key", s.Rule.ScopedKey()).
		Set("rule", rule).
		Set("severity", string(s.Severity)).
		Set("source_severity", s.SourceSeverity).
		Set("status", string(s.Status.Status)).
		Set("severity_override", string(s.Status.SeverityOverride)).
		Set("severity_justification", s.Status.SeverityJustification).
		Set("finding_details", s.FindingDetails).
		Set("comments", s.Comments).
		Set("cci_refs", cci).
		Set("updated_at", s.UpdatedAt).
		Where(squirrel.Eq{"id": s.ID, "version": s.Version})
	if err := postgres.ExecVersioned(ctx, q, upd, table, entity, s.ID, s.Version); err != nil {
		return err
	}
	f.MarkPersisted(s.Version + 1)
	return nil
}

// ---------------------------------------------------------------------------
// Mapping helpers
// ---------------------------------------------------------------------------

func toDomain(rw row) (*domain.VulnerabilityFinding, error) {
	var rule domain.RuleDetails
	if len(rw.Rule) > 0 {
		if err := json.Unmarshal(rw.Rule, &rule); err != nil {
			return nil, fmt.Errorf("finding %s unmarshal rule: %w", rw.ID, err)
		}
	}
	return domain.RehydrateFinding(domain.FindingSnapshot{
		ID:             rw.ID,
		Version:        rw.Version,
		CreatedAt:      rw.CreatedAt,
		UpdatedAt:      rw.UpdatedAt,
		ChecklistID:    rw.ChecklistID,
		Rule:           rule,
		Severity:       domain.SeverityCategory(rw.Severity),
		SourceSeverity: rw.SourceSeverity,
		Status: domain.VulnerabilityStatus{
			Status:                domain.Status(rw.Status),
			SeverityOverride:      domain.SeverityCategory(rw.SeverityOverride),
			SeverityJustification: rw.SeverityJustification,
		},
		FindingDetails: rw.FindingDetails,
		Comments:       rw.Comments,
		CCIRefs:        rw.CCIRefs,
		Position:       rw.Position,
	}), nil
}
