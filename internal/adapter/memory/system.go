package memory

import (
	"context"
	"slices"

	"github.com/google/uuid"

	"github.com/heartmarshall/grc-backend/internal/domain"
)

// SystemRepo stores system groups.
type SystemRepo struct {
	db *DB
}

func NewSystemRepo(db *DB) *SystemRepo { return &SystemRepo{db: db} }

func (r *SystemRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.SystemGroup, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	s, ok := r.db.systems[id]
	if !ok {
		return nil, notFound("system_group", id)
	}
	return domain.RehydrateSystemGroup(s), nil
}

// List returns every system group ordered by creation time.
func (r *SystemRepo) List(ctx context.Context) ([]*domain.SystemGroup, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	snaps := make([]domain.SystemGroupSnapshot, 0, len(r.db.systems))
	for _, s := range r.db.systems {
		snaps = append(snaps, s)
	}
	slices.SortFunc(snaps, func(a, b domain.SystemGroupSnapshot) int { return a.CreatedAt.Compare(b.CreatedAt) })

	out := make([]*domain.SystemGroup, len(snaps))
	for i, s := range snaps {
		out[i] = domain.RehydrateSystemGroup(s)
	}
	return out, nil
}

func (r *SystemRepo) Save(ctx context.Context, g *domain.SystemGroup) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := g.Snapshot()

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	version, err := nextVersion("system_group", s.ID, s.Version, g.IsNew(), r.db.systems)
	if err != nil {
		return err
	}
	s.Version = version
	r.db.systems[s.ID] = s
	g.MarkPersisted(version)
	return nil
}
