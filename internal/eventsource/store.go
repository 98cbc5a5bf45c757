package eventsource

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrDuplicateEvent is returned when an event with the same id, or the same
// (aggregate, version, sequence) slot, was already appended.
var ErrDuplicateEvent = errors.New("duplicate event")

// Store is a durable, append-only log of events.
type Store interface {
	// Append stores events in the given order and assigns their positions.
	Append(ctx context.Context, events ...Event) error
	// Load returns stored events matching the filter ordered by position.
	Load(ctx context.Context, f Filter) ([]Event, error)
}

// Filter selects stored events. Zero values mean "no constraint".
type Filter struct {
	AggregateID   *uuid.UUID
	AggregateType string
	EventTypes    []string
	AfterPosition int64
	Since         time.Time
	Limit         int
}

// Match reports whether e satisfies every constraint except Limit.
func (f Filter) Match(e Event) bool {
	if f.AggregateID != nil && e.AggregateID != *f.AggregateID {
		return false
	}
	if f.AggregateType != "" && e.AggregateType != f.AggregateType {
		return false
	}
	if len(f.EventTypes) > 0 && !slices.Contains(f.EventTypes, e.Type) {
		return false
	}
	if e.Position <= f.AfterPosition {
		return false
	}
	if !f.Since.IsZero() && e.OccurredAt.Before(f.Since) {
		return false
	}
	return true
}

type slotKey struct {
	aggregateID uuid.UUID
	version     int
	sequence    int
}

// MemoryStore is an in-process Store used in offline mode and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	events []Event
	ids    map[string]struct{}
	slots  map[slotKey]struct{}
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ids:   make(map[string]struct{}),
		slots: make(map[slotKey]struct{}),
	}
}

// Append implements Store. Either all events are appended or none.
func (s *MemoryStore) Append(ctx context.Context, events ...Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		if _, ok := s.ids[e.ID]; ok {
			return fmt.Errorf("append event %s: %w", e.ID, ErrDuplicateEvent)
		}
		if _, ok := s.slots[slotKey{e.AggregateID, e.AggregateVersion, e.Sequence}]; ok {
			return fmt.Errorf("append event %s: %w", e.ID, ErrDuplicateEvent)
		}
	}

	for _, e := range events {
		e.Position = int64(len(s.events) + 1)
		s.events = append(s.events, e)
		s.ids[e.ID] = struct{}{}
		s.slots[slotKey{e.AggregateID, e.AggregateVersion, e.Sequence}] = struct{}{}
	}
	return nil
}

// Load implements Store.
func (s *MemoryStore) Load(ctx context.Context, f Filter) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Event{}
	for _, e := range s.events {
		if !f.Match(e) {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

// Len returns the number of stored events.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
