package eventsource

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Handler reacts to a published event. A returned error is logged by the
// bus and never reaches the publisher.
type Handler func(ctx context.Context, e Event) error

// BusMetrics receives dispatch outcomes. Implemented by internal/metrics.
type BusMetrics interface {
	EventPublished(eventType string)
	HandlerFailed(handler, eventType string)
}

type subscription struct {
	name   string
	handle Handler
}

// HandlerFailure describes one subscriber that failed for one event.
type HandlerFailure struct {
	Handler string
	Err     error
}

// DispatchReport summarises a single Publish call.
type DispatchReport struct {
	Delivered int
	Failures  []HandlerFailure
}

// OK reports whether every subscriber succeeded.
func (r DispatchReport) OK() bool { return len(r.Failures) == 0 }

// Bus is a synchronous publish/subscribe dispatcher. Subscribers run in the
// publisher's goroutine in registration order; type-specific subscribers run
// before catch-all ones.
type Bus struct {
	mu      sync.RWMutex
	byType  map[string][]subscription
	all     []subscription
	log     *slog.Logger
	metrics BusMetrics
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithBusMetrics attaches a metrics sink.
func WithBusMetrics(m BusMetrics) BusOption {
	return func(b *Bus) { b.metrics = m }
}

// NewBus creates an empty Bus.
func NewBus(log *slog.Logger, opts ...BusOption) *Bus {
	b := &Bus{
		byType: make(map[string][]subscription),
		log:    log.With("component", "event_bus"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers h for events of eventType. name identifies the handler
// in logs and metrics.
func (b *Bus) Subscribe(eventType, name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byType[eventType] = append(b.byType[eventType], subscription{name: name, handle: h})
}

// SubscribeAll registers h for every event.
func (b *Bus) SubscribeAll(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, subscription{name: name, handle: h})
}

// Publish delivers e to every matching subscriber. A failing or panicking
// subscriber does not prevent the others from running.
func (b *Bus) Publish(ctx context.Context, e Event) DispatchReport {
	b.mu.RLock()
	subs := make([]subscription, 0, len(b.byType[e.Type])+len(b.all))
	subs = append(subs, b.byType[e.Type]...)
	subs = append(subs, b.all...)
	b.mu.RUnlock()

	if b.metrics != nil {
		b.metrics.EventPublished(e.Type)
	}

	var report DispatchReport
	for _, sub := range subs {
		if err := invoke(ctx, sub.handle, e); err != nil {
			report.Failures = append(report.Failures, HandlerFailure{Handler: sub.name, Err: err})
			if b.metrics != nil {
				b.metrics.HandlerFailed(sub.name, e.Type)
			}
			b.log.ErrorContext(ctx, "event handler failed",
				slog.String("handler", sub.name),
				slog.String("event_type", e.Type),
				slog.String("event_id", e.ID),
				slog.String("aggregate_id", e.AggregateID.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		report.Delivered++
	}
	return report
}

func invoke(ctx context.Context, h Handler, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, e)
}
