package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/heartmarshall/grc-backend/internal/domain"
)

// ScoreRepo stores checklist scores.
type ScoreRepo struct {
	db *DB
}

func NewScoreRepo(db *DB) *ScoreRepo { return &ScoreRepo{db: db} }

func (r *ScoreRepo) Get(ctx context.Context, checklistID uuid.UUID) (*domain.ChecklistScore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	s, ok := r.db.scores[checklistID]
	if !ok {
		return nil, notFound("checklist_score", checklistID)
	}
	return &s, nil
}

// GetMany returns the stored scores of the given checklists. Checklists
// without a score are absent from the map.
func (r *ScoreRepo) GetMany(ctx context.Context, checklistIDs []uuid.UUID) (map[uuid.UUID]*domain.ChecklistScore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := make(map[uuid.UUID]*domain.ChecklistScore, len(checklistIDs))
	for _, id := range checklistIDs {
		if s, ok := r.db.scores[id]; ok {
			out[id] = &s
		}
	}
	return out, nil
}

// Save replaces the score of a checklist.
func (r *ScoreRepo) Save(ctx context.Context, s *domain.ChecklistScore) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.checklists[s.ChecklistID]; !ok {
		return notFound("checklist", s.ChecklistID)
	}
	r.db.scores[s.ChecklistID] = *s
	return nil
}
