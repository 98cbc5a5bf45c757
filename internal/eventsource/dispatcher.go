package eventsource

import (
	"context"
	"log/slog"
)

// Source is anything buffering uncommitted events, i.e. an aggregate.
type Source interface {
	PendingEvents() []Event
	ClearPendingEvents()
}

// StoreMetrics receives append failures. Implemented by internal/metrics.
type StoreMetrics interface {
	AppendFailed(eventType string)
}

const defaultReplayPageSize = 500

// Dispatcher flushes an aggregate's buffered events after its state was
// saved: each event is appended to the store and then published on the bus.
type Dispatcher struct {
	store   Store
	bus     *Bus
	log     *slog.Logger
	metrics StoreMetrics
}

// NewDispatcher creates a Dispatcher. metrics may be nil.
func NewDispatcher(log *slog.Logger, store Store, bus *Bus, metrics StoreMetrics) *Dispatcher {
	return &Dispatcher{
		store:   store,
		bus:     bus,
		log:     log.With("component", "event_dispatcher"),
		metrics: metrics,
	}
}

// Bus returns the bus events are published on.
func (d *Dispatcher) Bus() *Bus { return d.bus }

// Commit appends and publishes the pending events of every source in order,
// then clears their buffers. A failed append is logged and the event is
// still published: event loss is preferred over failing a save that has
// already been persisted.
func (d *Dispatcher) Commit(ctx context.Context, sources ...Source) {
	for _, src := range sources {
		events := src.PendingEvents()
		src.ClearPendingEvents()

		for _, e := range events {
			if err := d.store.Append(ctx, e); err != nil {
				if d.metrics != nil {
					d.metrics.AppendFailed(e.Type)
				}
				d.log.ErrorContext(ctx, "append event failed",
					slog.String("event_type", e.Type),
					slog.String("event_id", e.ID),
					slog.String("aggregate_id", e.AggregateID.String()),
					slog.Int("aggregate_version", e.AggregateVersion),
					slog.String("error", err.Error()),
				)
			}
			d.bus.Publish(ctx, e)
		}
	}
}

// Replay re-reads stored events matching f in position order and redelivers
// them to the current subscribers. It returns the number of events replayed.
// f.Limit is used as the page size.
func (d *Dispatcher) Replay(ctx context.Context, f Filter) (int, error) {
	if f.Limit <= 0 {
		f.Limit = defaultReplayPageSize
	}

	replayed := 0
	for {
		if err := ctx.Err(); err != nil {
			return replayed, err
		}

		page, err := d.store.Load(ctx, f)
		if err != nil {
			return replayed, err
		}

		for _, e := range page {
			d.bus.Publish(ctx, e)
			replayed++
		}

		if len(page) < f.Limit {
			break
		}
		f.AfterPosition = page[len(page)-1].Position
	}

	d.log.InfoContext(ctx, "replay completed", slog.Int("events", replayed))
	return replayed, nil
}
