package memory

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/heartmarshall/grc-backend/internal/domain"
)

// ScanRepo stores scan records.
type ScanRepo struct {
	db *DB
}

func NewScanRepo(db *DB) *ScanRepo { return &ScanRepo{db: db} }

func (r *ScanRepo) Create(ctx context.Context, s *domain.ScanRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.scans[s.ID]; ok {
		return fmt.Errorf("scan %s: %w", s.ID, domain.ErrAlreadyExists)
	}
	r.db.scans[s.ID] = *s
	return nil
}

func (r *ScanRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ScanRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	s, ok := r.db.scans[id]
	if !ok {
		return nil, notFound("scan", id)
	}
	return &s, nil
}

// ListBySystem returns the scans attached to a system group, newest first.
func (r *ScanRepo) ListBySystem(ctx context.Context, systemID uuid.UUID) ([]*domain.ScanRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []*domain.ScanRecord
	for _, s := range r.db.scans {
		if s.SystemID != nil && *s.SystemID == systemID {
			out = append(out, &s)
		}
	}
	slices.SortFunc(out, func(a, b *domain.ScanRecord) int { return b.ImportedAt.Compare(a.ImportedAt) })
	return out, nil
}

// SetSystem attaches a stored scan to a system group.
func (r *ScanRepo) SetSystem(ctx context.Context, scanID, systemID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	s, ok := r.db.scans[scanID]
	if !ok {
		return notFound("scan", scanID)
	}
	if _, ok := r.db.systems[systemID]; !ok {
		return notFound("system_group", systemID)
	}
	s.SystemID = &systemID
	r.db.scans[scanID] = s
	return nil
}
