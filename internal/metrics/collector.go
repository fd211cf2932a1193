// Package metrics exposes the engine's Prometheus metrics. This package is
// internal; the host process mounts promhttp against the registry it passes
// in.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector registers and records the engine's Prometheus metrics.
type Collector struct {
	routeTotal    *prometheus.CounterVec
	routeDuration *prometheus.HistogramVec
	tokensUsed    *prometheus.CounterVec
	costCents     *prometheus.CounterVec

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	admissionRejections *prometheus.CounterVec
	fallbacks           *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector registers the metric families under the given namespace. A nil
// registerer falls back to the default registry; tests pass their own to keep
// registrations isolated.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.routeTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_requests_total",
			Help:      "Total number of routed generation requests",
		},
		[]string{"category", "provider", "status"},
	)

	c.routeDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "route_duration_seconds",
			Help:      "Route duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"category", "provider"},
	)

	c.tokensUsed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_used_total",
			Help:      "Total tokens consumed",
		},
		[]string{"category", "provider", "model"},
	)

	c.costCents = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cost_cents_total",
			Help:      "Total generation cost in integer cents",
		},
		[]string{"category", "provider", "model"},
	)

	c.cacheHits = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Response cache hits",
		},
		[]string{"category"},
	)

	c.cacheMisses = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Response cache misses",
		},
		[]string{"category"},
	)

	c.admissionRejections = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admission_rejections_total",
			Help:      "Requests rejected by the budget ledger",
		},
		[]string{"category", "code"},
	)

	c.fallbacks = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallbacks_total",
			Help:      "Fallback escalations within provider chains",
		},
		[]string{"category"},
	)

	return c
}

// RecordRoute records one completed route call.
func (c *Collector) RecordRoute(category, provider, model, status string, duration time.Duration, tokens int, costCents int64, fallbacks int, cacheHit bool) {
	c.routeTotal.WithLabelValues(category, provider, status).Inc()
	c.routeDuration.WithLabelValues(category, provider).Observe(duration.Seconds())

	if tokens > 0 {
		c.tokensUsed.WithLabelValues(category, provider, model).Add(float64(tokens))
	}
	if costCents > 0 {
		c.costCents.WithLabelValues(category, provider, model).Add(float64(costCents))
	}
	if fallbacks > 0 {
		c.fallbacks.WithLabelValues(category).Add(float64(fallbacks))
	}
	if cacheHit {
		c.cacheHits.WithLabelValues(category).Inc()
	} else {
		c.cacheMisses.WithLabelValues(category).Inc()
	}
}

// RecordAdmissionRejected counts a ledger rejection.
func (c *Collector) RecordAdmissionRejected(category, code string) {
	c.admissionRejections.WithLabelValues(category, code).Inc()
}
