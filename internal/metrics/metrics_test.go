package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/grc-backend/internal/domain"
)

func TestMetrics_Counters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := New(reg, "test")

	m.EventPublished(domain.EventFindingCreated)
	m.EventPublished(domain.EventFindingCreated)
	m.HandlerFailed("projection.checklist_score", domain.EventFindingCreated)
	m.AppendFailed(domain.EventChecklistImported)
	m.ProjectionRecomputed("checklist_score", 3*time.Millisecond)
	m.ProjectionFailed("system_compliance")
	m.FileParsed(domain.FormatCKL, true)
	m.FileParsed(domain.FormatNessus, false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.eventsPublished.WithLabelValues(domain.EventFindingCreated)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.handlerFailures.WithLabelValues("projection.checklist_score", domain.EventFindingCreated)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.appendFailures.WithLabelValues(domain.EventChecklistImported)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.projectionRuns.WithLabelValues("checklist_score")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.projectionErrors.WithLabelValues("system_compliance")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.filesParsed.WithLabelValues("ckl", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.filesParsed.WithLabelValues("nessus", "error")))
}

func TestMetrics_RequestServed(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := New(reg, "test")

	m.RequestServed("GET", "/health", 200, 5*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/health", "200")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.httpLatency))
}

func TestMetrics_RegisterTwiceReusesCollectors(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	first := New(reg, "test")
	second := New(reg, "test")

	first.EventPublished("x")
	second.EventPublished("x")

	assert.Equal(t, 2.0, testutil.ToFloat64(first.eventsPublished.WithLabelValues("x")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.EventPublished("x")
	m.HandlerFailed("h", "x")
	m.AppendFailed("x")
	m.ProjectionRecomputed("p", time.Second)
	m.ProjectionFailed("p")
	m.FileParsed(domain.FormatSCAP, true)
	m.RequestServed("GET", "/", 200, time.Second)
}
