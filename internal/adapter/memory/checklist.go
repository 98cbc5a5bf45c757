package memory

import (
	"context"
	"slices"

	"github.com/google/uuid"

	"github.com/heartmarshall/grc-backend/internal/domain"
)

// ChecklistRepo stores checklists. Finding ids are derived from the stored
// findings, as in PostgreSQL.
type ChecklistRepo struct {
	db *DB
}

func NewChecklistRepo(db *DB) *ChecklistRepo { return &ChecklistRepo{db: db} }

func (r *ChecklistRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.StigChecklist, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	s, ok := r.db.checklists[id]
	if !ok {
		return nil, notFound("checklist", id)
	}
	return r.db.rehydrateChecklist(s), nil
}

// List returns matching checklists ordered by creation time.
func (r *ChecklistRepo) List(ctx context.Context, f domain.ChecklistFilter) ([]*domain.StigChecklist, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	snaps := make([]domain.ChecklistSnapshot, 0, len(r.db.checklists))
	for _, s := range r.db.checklists {
		snaps = append(snaps, s)
	}
	slices.SortFunc(snaps, func(a, b domain.ChecklistSnapshot) int { return a.CreatedAt.Compare(b.CreatedAt) })

	var out []*domain.StigChecklist
	for _, s := range snaps {
		c := r.db.rehydrateChecklist(s)
		if !f.Match(c) {
			continue
		}
		out = append(out, c)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (r *ChecklistRepo) Save(ctx context.Context, c *domain.StigChecklist) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := c.Snapshot()
	s.FindingIDs = nil

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if s.SystemID != nil {
		if _, ok := r.db.systems[*s.SystemID]; !ok {
			return notFound("system_group", *s.SystemID)
		}
	}
	version, err := nextVersion("checklist", s.ID, s.Version, c.IsNew(), r.db.checklists)
	if err != nil {
		return err
	}
	s.Version = version
	r.db.checklists[s.ID] = s
	c.MarkPersisted(version)
	return nil
}

// rehydrateChecklist must be called with db.mu held.
func (db *DB) rehydrateChecklist(s domain.ChecklistSnapshot) *domain.StigChecklist {
	findings := db.findingsOf(s.ID)
	s.FindingIDs = make([]uuid.UUID, len(findings))
	for i, f := range findings {
		s.FindingIDs[i] = f.ID
	}
	return domain.RehydrateChecklist(s)
}
