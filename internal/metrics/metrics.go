// Package metrics exposes Prometheus collectors for the event bus, the event
// store, the score projections, the scan parsers and the ops HTTP server.
package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/heartmarshall/grc-backend/internal/domain"
)

var histogramBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// Metrics implements the metrics sinks of eventsource, projection, parser
// and the HTTP middleware. A nil *Metrics is valid and records nothing.
type Metrics struct {
	eventsPublished   *prometheus.CounterVec
	handlerFailures   *prometheus.CounterVec
	appendFailures    *prometheus.CounterVec
	projectionRuns    *prometheus.CounterVec
	projectionErrors  *prometheus.CounterVec
	projectionLatency *prometheus.HistogramVec
	filesParsed       *prometheus.CounterVec
	httpRequests      *prometheus.CounterVec
	httpLatency       *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg. Collectors that are
// already registered are reused.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Domain events published on the bus.",
		}, []string{"event_type"}),
		handlerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "handler_failures_total",
			Help:      "Subscriber failures, by handler and event type.",
		}, []string{"handler", "event_type"}),
		appendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "append_failures_total",
			Help:      "Events that could not be appended to the event store.",
		}, []string{"event_type"}),
		projectionRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "projection",
			Name:      "recomputes_total",
			Help:      "Successful read-model recomputations.",
		}, []string{"projection"}),
		projectionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "projection",
			Name:      "failures_total",
			Help:      "Read-model recomputations that failed.",
		}, []string{"projection"}),
		projectionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "projection",
			Name:      "duration_seconds",
			Help:      "Duration of successful recomputations.",
			Buckets:   histogramBuckets,
		}, []string{"projection"}),
		filesParsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "parser",
			Name:      "files_total",
			Help:      "Parsed scan files, by format and result.",
		}, []string{"format", "result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Count of processed HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution of HTTP handlers.",
			Buckets:   histogramBuckets,
		}, []string{"method", "route", "status"}),
	}

	m.eventsPublished = register(reg, m.eventsPublished)
	m.handlerFailures = register(reg, m.handlerFailures)
	m.appendFailures = register(reg, m.appendFailures)
	m.projectionRuns = register(reg, m.projectionRuns)
	m.projectionErrors = register(reg, m.projectionErrors)
	m.projectionLatency = register(reg, m.projectionLatency)
	m.filesParsed = register(reg, m.filesParsed)
	m.httpRequests = register(reg, m.httpRequests)
	m.httpLatency = register(reg, m.httpLatency)
	return m
}

// register registers c on reg, returning the existing collector when an
// identical one was registered before.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func (m *Metrics) EventPublished(eventType string) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(eventType).Inc()
}

func (m *Metrics) HandlerFailed(handler, eventType string) {
	if m == nil {
		return
	}
	m.handlerFailures.WithLabelValues(handler, eventType).Inc()
}

func (m *Metrics) AppendFailed(eventType string) {
	if m == nil {
		return
	}
	m.appendFailures.WithLabelValues(eventType).Inc()
}

func (m *Metrics) ProjectionRecomputed(projection string, d time.Duration) {
	if m == nil {
		return
	}
	m.projectionRuns.WithLabelValues(projection).Inc()
	m.projectionLatency.WithLabelValues(projection).Observe(d.Seconds())
}

func (m *Metrics) ProjectionFailed(projection string) {
	if m == nil {
		return
	}
	m.projectionErrors.WithLabelValues(projection).Inc()
}

func (m *Metrics) FileParsed(format domain.SourceFormat, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.filesParsed.WithLabelValues(format.String(), result).Inc()
}

// RequestServed records one HTTP request.
func (m *Metrics) RequestServed(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"route":  route,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpLatency.With(labels).Observe(d.Seconds())
}
