// Package score stores the checklist score read model in PostgreSQL.
package score

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
	table  = "checklist_scores"
	entity = "checklist_score"
)

var columns = []string{
	"checklist_id",
	"cat1_open", "cat1_not_a_finding", "cat1_not_applicable", "cat1_not_reviewed",
	"cat2_open", "cat2_not_a_finding", "cat2_not_applicable", "cat2_not_reviewed",
	"cat3_open", "cat3_not_a_finding", "cat3_not_applicable", "cat3_not_reviewed",
	"last_calculated_at",
}

// upsertSuffix overwrites every counter; scores are always recomputed in full.
const upsertSuffix = `ON CONFLICT (checklist_id) DO UPDATE SET
	cat1_open = EXCLUDED.cat1_open, cat1_not_a_finding = EXCLUDED.cat1_not_a_finding,
	cat1_not_applicable = EXCLUDED.cat1_not_applicable, cat1_not_reviewed = EXCLUDED.cat1_not_reviewed,
	cat2_open = EXCLUDED.cat2_open, cat2_not_a_finding = EXCLUDED.cat2_not_a_finding,
	cat2_not_applicable = EXCLUDED.cat2_not_applicable, cat2_not_reviewed = EXCLUDED.cat2_not_reviewed,
	cat3_open = EXCLUDED.cat3_open, cat3_not_a_finding = EXCLUDED.cat3_not_a_finding,
	cat3_not_applicable = EXCLUDED.cat3_not_applicable, cat3_not_reviewed = EXCLUDED.cat3_not_reviewed,
	last_calculated_at = EXCLUDED.last_calculated_at`

// Repo provides checklist score persistence backed by PostgreSQL.
type Repo struct {
	db postgres.Querier
}

// New creates a new score repository.
func New(db postgres.Querier) *Repo {
	return &Repo{db: db}
}

type row struct {
	ChecklistID       uuid.UUID `db:"checklist_id"`
	Cat1Open          int       `db:"cat1_open"`
	Cat1NotAFinding   int       `db:"cat1_not_a_finding"`
	Cat1NotApplicable int       `db:"cat1_not_applicable"`
	Cat1NotReviewed   int       `db:"cat1_not_reviewed"`
	Cat2Open          int       `db:"cat2_open"`
	Cat2NotAFinding   int       `db:"cat2_not_a_finding"`
	Cat2NotApplicable int       `db:"cat2_not_applicable"`
	Cat2NotReviewed   int       `db:"cat2_not_reviewed"`
	Cat3Open          int       `db:"cat3_open"`
	Cat3NotAFinding   int       `db:"cat3_not_a_finding"`
	Cat3NotApplicable int       `db:"cat3_not_applicable"`
	Cat3NotReviewed   int       `db:"cat3_not_reviewed"`
	LastCalculatedAt  time.Time `db:"last_calculated_at"`
}

func (r *Repo) Get(ctx context.Context, checklistID uuid.UUID) (*domain.ChecklistScore, error) {
	sql, args, err := postgres.Builder().Select(columns...).From(table).
		Where(squirrel.Eq{"checklist_id": checklistID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build checklist_score select: %w", err)
	}

	var rw row
	if err := pgxscan.Get(ctx, postgres.QuerierFromCtx(ctx, r.db), &rw, sql, args...); err != nil {
		return nil, postgres.MapError(err, entity, checklistID)
	}
	return toDomain(rw), nil
}

// GetMany returns the stored scores of the given checklists. Checklists
// without a score are absent from the map.
func (r *Repo) GetMany(ctx context.Context, checklistIDs []uuid.UUID) (map[uuid.UUID]*domain.ChecklistScore, error) {
	out := make(map[uuid.UUID]*domain.ChecklistScore, len(checklistIDs))
	if len(checklistIDs) == 0 {
		return out, nil
	}

	sql, args, err := postgres.Builder().Select(columns...).From(table).
		Where(squirrel.Eq{"checklist_id": checklistIDs}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build checklist_score list: %w", err)
	}

	var rows []row
	if err := pgxscan.Select(ctx, postgres.QuerierFromCtx(ctx, r.db), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list checklist_scores: %w", err)
	}
	for _, rw := range rows {
		out[rw.ChecklistID] = toDomain(rw)
	}
	return out, nil
}

// Save replaces the score of a checklist.
func (r *Repo) Save(ctx context.Context, s *domain.ChecklistScore) error {
	ins := postgres.Builder().Insert(table).Columns(columns...).Values(
		s.ChecklistID,
		s.Cat1.Open, s.Cat1.NotAFinding, s.Cat1.NotApplicable, s.Cat1.NotReviewed,
		s.Cat2.Open, s.Cat2.NotAFinding, s.Cat2.NotApplicable, s.Cat2.NotReviewed,
		s.Cat3.Open, s.Cat3.NotAFinding, s.Cat3.NotApplicable, s.Cat3.NotReviewed,
		s.LastCalculatedAt,
	).Suffix(upsertSuffix)

	return postgres.ExecInsert(ctx, postgres.QuerierFromCtx(ctx, r.db), ins, entity, s.ChecklistID)
}

func toDomain(rw row) *domain.ChecklistScore {
	return &domain.ChecklistScore{
		ChecklistID:      rw.ChecklistID,
		Cat1:             domain.StatusCounts{Open: rw.Cat1Open, NotAFinding: rw.Cat1NotAFinding, NotApplicable: rw.Cat1NotApplicable, NotReviewed: rw.Cat1NotReviewed},
		Cat2:             domain.StatusCounts{Open: rw.Cat2Open, NotAFinding: rw.Cat2NotAFinding, NotApplicable: rw.Cat2NotApplicable, NotReviewed: rw.Cat2NotReviewed},
		Cat3:             domain.StatusCounts{Open: rw.Cat3Open, NotAFinding: rw.Cat3NotAFinding, NotApplicable: rw.Cat3NotApplicable, NotReviewed: rw.Cat3NotReviewed},
		LastCalculatedAt: rw.LastCalculatedAt,
	}
}
