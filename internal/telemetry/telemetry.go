// Package telemetry exposes Prometheus collectors for the pool, caches and router.
// A nil *Metrics is valid and records nothing.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector registered by querymancer.
type Metrics struct {
	registry *prometheus.Registry

	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
	cacheEvictions   *prometheus.CounterVec
	cacheExpirations *prometheus.CounterVec

	routingDecisions *prometheus.CounterVec
	threshold        prometheus.Gauge
	calibrations     prometheus.Counter

	poolWait     prometheus.Histogram
	poolInUse    prometheus.Gauge
	poolTimeouts prometheus.Counter

	queryDuration prometheus.Histogram
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		cacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "querymancer_cache_hits_total",
			Help: "Cache lookups that returned a live entry",
		}, []string{"cache"}),
		cacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "querymancer_cache_misses_total",
			Help: "Cache lookups that found nothing or an expired entry",
		}, []string{"cache"}),
		cacheEvictions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "querymancer_cache_evictions_total",
			Help: "Entries dropped because the cache was full",
		}, []string{"cache"}),
		cacheExpirations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "querymancer_cache_expirations_total",
			Help: "Entries dropped on access because their TTL elapsed",
		}, []string{"cache"}),
		routingDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "querymancer_routing_decisions_total",
			Help: "Queries routed per backend",
		}, []string{"backend"}),
		threshold: factory.NewGauge(prometheus.GaugeOpts{
			Name: "querymancer_routing_threshold",
			Help: "Current complexity threshold separating fast from accurate",
		}),
		calibrations: factory.NewCounter(prometheus.CounterOpts{
			Name: "querymancer_calibrations_total",
			Help: "Calibration passes that cleared the sample gate",
		}),
		poolWait: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "querymancer_pool_acquire_seconds",
			Help:    "Time spent waiting for a pooled connection",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		}),
		poolInUse: factory.NewGauge(prometheus.GaugeOpts{
			Name: "querymancer_pool_in_use",
			Help: "Connections currently loaned out",
		}),
		poolTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "querymancer_pool_timeouts_total",
			Help: "Acquire calls that gave up waiting",
		}),
		queryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "querymancer_query_duration_seconds",
			Help:    "Statement execution time against the store",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Registry returns the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// CacheHit counts a hit on the named cache.
func (m *Metrics) CacheHit(cache string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(cache).Inc()
}

// CacheMiss counts a miss on the named cache.
func (m *Metrics) CacheMiss(cache string) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// CacheEviction counts a capacity eviction on the named cache.
func (m *Metrics) CacheEviction(cache string) {
	if m == nil {
		return
	}
	m.cacheEvictions.WithLabelValues(cache).Inc()
}

// CacheExpiration counts a TTL expiry on the named cache.
func (m *Metrics) CacheExpiration(cache string) {
	if m == nil {
		return
	}
	m.cacheExpirations.WithLabelValues(cache).Inc()
}

// RoutingDecision counts one routed query.
func (m *Metrics) RoutingDecision(backend string) {
	if m == nil {
		return
	}
	m.routingDecisions.WithLabelValues(backend).Inc()
}

// SetThreshold publishes the current routing threshold.
func (m *Metrics) SetThreshold(v float64) {
	if m == nil {
		return
	}
	m.threshold.Set(v)
}

// Calibration counts a calibration pass.
func (m *Metrics) Calibration() {
	if m == nil {
		return
	}
	m.calibrations.Inc()
}

// PoolAcquired records how long an Acquire call waited.
func (m *Metrics) PoolAcquired(wait time.Duration) {
	if m == nil {
		return
	}
	m.poolWait.Observe(wait.Seconds())
}

// SetPoolInUse publishes the number of loaned connections.
func (m *Metrics) SetPoolInUse(n int) {
	if m == nil {
		return
	}
	m.poolInUse.Set(float64(n))
}

// PoolTimeout counts an Acquire call that timed out.
func (m *Metrics) PoolTimeout() {
	if m == nil {
		return
	}
	m.poolTimeouts.Inc()
}

// QueryExecuted records a statement execution time.
func (m *Metrics) QueryExecuted(d time.Duration) {
	if m == nil {
		return
	}
	m.queryDuration.Observe(d.Seconds())
}
