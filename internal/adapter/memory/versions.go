package memory

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/heartmarshall/grc-backend/internal/domain"
)

type versioned interface {
	domain.FindingSnapshot | domain.ChecklistSnapshot | domain.SystemGroupSnapshot
}

func versionOf[T versioned](s T) int {
	switch v := any(s).(type) {
	case domain.FindingSnapshot:
		return v.Version
	case domain.ChecklistSnapshot:
		return v.Version
	case domain.SystemGroupSnapshot:
		return v.Version
	}
	return 0
}

// nextVersion applies the compare-and-swap rule: a new aggregate must not
// exist yet, an existing one must still be at expected.
func nextVersion[T versioned](entity string, id uuid.UUID, expected int, isNew bool, table map[uuid.UUID]T) (int, error) {
	cur, ok := table[id]
	if isNew {
		if ok {
			return 0, fmt.Errorf("%s %s: %w", entity, id, domain.ErrAlreadyExists)
		}
		return 1, nil
	}
	if !ok {
		return 0, notFound(entity, id)
	}
	if versionOf(cur) != expected {
		return 0, &domain.ConcurrencyError{Entity: entity, ID: id, ExpectedVersion: expected}
	}
	return expected + 1, nil
}

func notFound(entity string, id uuid.UUID) error {
	return fmt.Errorf("%s %s: %w", entity, id, domain.ErrNotFound)
}
