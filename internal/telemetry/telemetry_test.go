package telemetry

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.CacheHit("query")
		m.CacheMiss("query")
		m.CacheEviction("query")
		m.CacheExpiration("query")
		m.RoutingDecision("fast")
		m.SetThreshold(0.3)
		m.Calibration()
		m.PoolAcquired(time.Millisecond)
		m.SetPoolInUse(2)
		m.PoolTimeout()
		m.QueryExecuted(time.Millisecond)
	})
	assert.Nil(t, m.Registry())
}

func TestMetricsCounters(t *testing.T) {
	m := New()
	m.CacheHit("query")
	m.CacheHit("query")
	m.CacheMiss("schema")
	m.RoutingDecision("accurate")
	m.SetThreshold(0.2)

	assert.InDelta(t, 2, testutil.ToFloat64(m.cacheHits.WithLabelValues("query")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.cacheMisses.WithLabelValues("schema")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.routingDecisions.WithLabelValues("accurate")), 1e-9)
	assert.InDelta(t, 0.2, testutil.ToFloat64(m.threshold), 1e-9)
}

func TestMetricsHandler(t *testing.T) {
	m := New()
	m.RoutingDecision("fast")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "querymancer_routing_decisions_total")
}
