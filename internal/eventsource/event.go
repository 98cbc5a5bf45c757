// Package eventsource provides the event-sourcing primitives shared by every
// aggregate: immutable domain events, the aggregate root base, an append-only
// store, a synchronous bus and the dispatcher that ties a save to both.
package eventsource

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Payload is the typed body of a domain event. Each event kind is its own
// struct; EventType must be constant for a given type.
type Payload interface {
	EventType() string
}

// Event is an immutable domain event.
//
// AggregateVersion is the version the aggregate reached with the save that
// produced the event; Sequence orders events raised within that same save.
// Position is assigned by the store on append and is zero before that.
type Event struct {
	ID               string
	AggregateID      uuid.UUID
	AggregateType    string
	AggregateVersion int
	Sequence         int
	OccurredAt       time.Time
	Type             string
	Payload          Payload
	Position         int64
}

// NewEvent builds an event outside an aggregate buffer. Projections use it
// for derived notifications that are published but never stored.
func NewEvent(aggregateType string, aggregateID uuid.UUID, version int, p Payload) Event {
	return Event{
		ID:               ulid.Make().String(),
		AggregateID:      aggregateID,
		AggregateType:    aggregateType,
		AggregateVersion: version,
		OccurredAt:       time.Now().UTC(),
		Type:             p.EventType(),
		Payload:          p,
	}
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

type decodeFunc func(data []byte) (Payload, error)

// Registry maps event type names to payload decoders so stored events can be
// loaded back into their concrete payload types.
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]decodeFunc
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{decoders: make(map[string]decodeFunc)}
}

// Register adds payload type T to the registry. Payloads decode as values of T.
func Register[T Payload](r *Registry) {
	var zero T
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[zero.EventType()] = func(data []byte) (Payload, error) {
		var p T
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	}
}

// Known reports whether eventType has a registered decoder.
func (r *Registry) Known(eventType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.decoders[eventType]
	return ok
}

// Decode unmarshals data into the payload type registered for eventType.
func (r *Registry) Decode(eventType string, data []byte) (Payload, error) {
	r.mu.RLock()
	dec, ok := r.decoders[eventType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("decode event %s: unregistered event type", eventType)
	}
	p, err := dec(data)
	if err != nil {
		return nil, fmt.Errorf("decode event %s: %w", eventType, err)
	}
	return p, nil
}

// Encode marshals a payload for storage.
func (r *Registry) Encode(p Payload) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", p.EventType(), err)
	}
	return data, nil
}
