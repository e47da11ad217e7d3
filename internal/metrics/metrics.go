// Package metrics provides Prometheus metrics for the generation pipeline.
package metrics

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics.
type Metrics struct {
	StageRequests *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	Repairs       *prometheus.CounterVec
	CacheHits     prometheus.Counter
	registry      *prometheus.Registry
}

// New creates and registers all metrics on a dedicated registry.
func New() *Metrics {
	m := &Metrics{
		StageRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_stage_requests_total",
			Help: "Pipeline stage invocations by outcome",
		}, []string{"stage", "outcome"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pipeline_stage_duration_seconds",
			Help:    "Pipeline stage duration including the model call",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"stage"}),
		Repairs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_repairs_total",
			Help: "Fields repaired with canonical fallbacks by kind",
		}, []string{"kind"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pipeline_identify_cache_hits_total",
			Help: "Symptom identification responses served from the LRU cache",
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(m.StageRequests, m.StageDuration, m.Repairs, m.CacheHits)
	return m
}

// ObserveStage records one stage invocation. Nil-safe so the pipeline can
// run without metrics in tests.
func (m *Metrics) ObserveStage(stage, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.StageRequests.WithLabelValues(stage, outcome).Inc()
	m.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// CountRepair records one canonical-fallback substitution.
func (m *Metrics) CountRepair(kind string) {
	if m == nil {
		return
	}
	m.Repairs.WithLabelValues(kind).Inc()
}

// CountCacheHit records one identification cache hit.
func (m *Metrics) CountCacheHit() {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
}

// Handler exposes the registry for a /metrics route.
func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
