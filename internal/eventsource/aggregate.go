package eventsource

import (
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// AggregateRoot is embedded by every aggregate. It tracks identity, the
// optimistic-lock version and the buffer of uncommitted events.
//
// Version is 0 for an aggregate that has never been saved. Repositories call
// MarkPersisted after each successful save, which is the only place the
// version moves.
type AggregateRoot struct {
	id        uuid.UUID
	version   int
	createdAt time.Time
	updatedAt time.Time
	pending   []Event
}

// NewAggregateRoot creates the root of a brand-new aggregate.
func NewAggregateRoot(id uuid.UUID, now time.Time) AggregateRoot {
	return AggregateRoot{id: id, createdAt: now, updatedAt: now}
}

// RestoreAggregateRoot rebuilds the root of an aggregate loaded from storage.
func RestoreAggregateRoot(id uuid.UUID, version int, createdAt, updatedAt time.Time) AggregateRoot {
	return AggregateRoot{id: id, version: version, createdAt: createdAt, updatedAt: updatedAt}
}

func (a *AggregateRoot) ID() uuid.UUID        { return a.id }
func (a *AggregateRoot) Version() int         { return a.version }
func (a *AggregateRoot) CreatedAt() time.Time { return a.createdAt }
func (a *AggregateRoot) UpdatedAt() time.Time { return a.updatedAt }

// IsNew reports whether the aggregate has never been persisted.
func (a *AggregateRoot) IsNew() bool { return a.version == 0 }

// Touch records a mutation time.
func (a *AggregateRoot) Touch(now time.Time) { a.updatedAt = now }

// MarkPersisted is called by repositories after the save that moved the
// aggregate from Version() to version succeeded.
func (a *AggregateRoot) MarkPersisted(version int) { a.version = version }

// Raise buffers an event stamped with the aggregate id and the version the
// next save will produce.
func (a *AggregateRoot) Raise(aggregateType string, p Payload) {
	now := time.Now().UTC()
	a.pending = append(a.pending, Event{
		ID:               ulid.Make().String(),
		AggregateID:      a.id,
		AggregateType:    aggregateType,
		AggregateVersion: a.version + 1,
		Sequence:         len(a.pending) + 1,
		OccurredAt:       now,
		Type:             p.EventType(),
		Payload:          p,
	})
	a.updatedAt = now
}

// PendingEvents returns the uncommitted events in raise order.
func (a *AggregateRoot) PendingEvents() []Event {
	out := make([]Event, len(a.pending))
	copy(out, a.pending)
	return out
}

// ClearPendingEvents empties the buffer.
func (a *AggregateRoot) ClearPendingEvents() { a.pending = nil }
