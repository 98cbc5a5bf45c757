package memory

import (
	"context"
	"slices"

	"github.com/google/uuid"

	"github.com/heartmarshall/grc-backend/internal/domain"
)

// FindingRepo stores findings.
type FindingRepo struct {
	db *DB
}

func NewFindingRepo(db *DB) *FindingRepo { return &FindingRepo{db: db} }

func (r *FindingRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.VulnerabilityFinding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	s, ok := r.db.findings[id]
	if !ok {
		return nil, notFound("finding", id)
	}
	return domain.RehydrateFinding(s), nil
}

// ListByChecklist returns the findings of a checklist in import order.
func (r *FindingRepo) ListByChecklist(ctx context.Context, checklistID uuid.UUID) ([]*domain.VulnerabilityFinding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	snaps := r.db.findingsOf(checklistID)
	out := make([]*domain.VulnerabilityFinding, len(snaps))
	for i, s := range snaps {
		out[i] = domain.RehydrateFinding(s)
	}
	return out, nil
}

// Save inserts a new finding or updates an existing one if its version is
// current.
func (r *FindingRepo) Save(ctx context.Context, f *domain.VulnerabilityFinding) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := f.Snapshot()

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.checklists[s.ChecklistID]; !ok {
		return notFound("checklist", s.ChecklistID)
	}
	version, err := nextVersion("finding", s.ID, s.Version, f.IsNew(), r.db.findings)
	if err != nil {
		return err
	}
	s.Version = version
	r.db.findings[s.ID] = s
	f.MarkPersisted(version)
	return nil
}

// findingsOf must be called with db.mu held.
func (db *DB) findingsOf(checklistID uuid.UUID) []domain.FindingSnapshot {
	var out []domain.FindingSnapshot
	for _, s := range db.findings {
		if s.ChecklistID == checklistID {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b domain.FindingSnapshot) int {
		if a.Position != b.Position {
			return a.Position - b.Position
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out
}
