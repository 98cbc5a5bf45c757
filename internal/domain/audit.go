package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditRecord logs a mutation on a domain entity. Old and New hold the
// changed fields before and after the operation.
type AuditRecord struct {
	ID         uuid.UUID
	Actor      string
	EntityType EntityType
	EntityID   uuid.UUID
	Action     AuditAction
	Old        map[string]any
	New        map[string]any
	CreatedAt  time.Time
}

// NewAuditRecord builds a record stamped with a fresh id and the current time.
func NewAuditRecord(actor string, action AuditAction, entityType EntityType, entityID uuid.UUID, old, new map[string]any) AuditRecord {
	if actor == "" {
		actor = SystemActor
	}
	return AuditRecord{
		ID:         uuid.New(),
		Actor:      actor,
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Old:        old,
		New:        new,
		CreatedAt:  time.Now().UTC(),
	}
}

// SystemActor is recorded when no actor is present in the context.
const SystemActor = "system"
