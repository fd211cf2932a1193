// Package observability instruments the routing engine with OpenTelemetry
// traces and metrics. The host process owns the exporter pipeline; this
// package only uses the API, so without an SDK installed it is a no-op.
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	collector "github.com/studyhall/llmroute/internal/metrics"
)

const instrumentationName = "github.com/studyhall/llmroute/llm"

// Metrics is the engine's metric and trace instrumentation.
type Metrics struct {
	tracer trace.Tracer
	meter  metric.Meter

	routeTotal        metric.Int64Counter
	tokenTotal        metric.Int64Counter
	admissionRejected metric.Int64Counter
	fallbackTotal     metric.Int64Counter
	cacheHitTotal     metric.Int64Counter
	cacheMissTotal    metric.Int64Counter

	routeDuration  metric.Float64Histogram
	costPerRequest metric.Int64Histogram

	activeRoutes metric.Int64UpDownCounter

	// prom mirrors the outcome into the Prometheus registry; optional.
	prom *collector.Collector
}

// NewMetrics creates the instrumentation against the global otel providers.
// The Prometheus collector is optional; pass nil to record OTel only.
func NewMetrics(prom *collector.Collector) (*Metrics, error) {
	m := &Metrics{
		tracer: otel.Tracer(instrumentationName),
		meter:  otel.Meter(instrumentationName),
		prom:   prom,
	}

	var err error

	m.routeTotal, err = m.meter.Int64Counter("ai.route.total",
		metric.WithDescription("Total number of routed generation requests"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}

	m.tokenTotal, err = m.meter.Int64Counter("ai.token.total",
		metric.WithDescription("Total tokens consumed"),
		metric.WithUnit("{token}"))
	if err != nil {
		return nil, err
	}

	m.admissionRejected, err = m.meter.Int64Counter("ai.admission.rejected.total",
		metric.WithDescription("Requests rejected by the budget ledger"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}

	m.fallbackTotal, err = m.meter.Int64Counter("ai.fallback.total",
		metric.WithDescription("Fallback escalations to a lower-preference provider"),
		metric.WithUnit("{fallback}"))
	if err != nil {
		return nil, err
	}

	m.cacheHitTotal, err = m.meter.Int64Counter("ai.cache.hit.total",
		metric.WithDescription("Response cache hits"),
		metric.WithUnit("{hit}"))
	if err != nil {
		return nil, err
	}

	m.cacheMissTotal, err = m.meter.Int64Counter("ai.cache.miss.total",
		metric.WithDescription("Response cache misses"),
		metric.WithUnit("{miss}"))
	if err != nil {
		return nil, err
	}

	m.routeDuration, err = m.meter.Float64Histogram("ai.route.duration",
		metric.WithDescription("Route duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30))
	if err != nil {
		return nil, err
	}

	m.costPerRequest, err = m.meter.Int64Histogram("ai.cost.per_request",
		metric.WithDescription("Cost per request in cents"),
		metric.WithUnit("{cent}"),
		metric.WithExplicitBucketBoundaries(1, 2, 5, 10, 25, 50, 100, 500))
	if err != nil {
		return nil, err
	}

	m.activeRoutes, err = m.meter.Int64UpDownCounter("ai.route.active",
		metric.WithDescription("Number of in-flight route calls"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RouteAttrs describes one route call for instrumentation.
type RouteAttrs struct {
	Category string
	UserID   string
}

// RouteOutcome describes how a route call ended.
type RouteOutcome struct {
	Provider  string
	Model     string
	Status    string
	ErrorCode string
	Tokens    int
	CostCents int64
	Duration  time.Duration
	CacheHit  bool
	Fallbacks int
}

// StartRoute opens a span for a route call and bumps the in-flight gauge.
func (m *Metrics) StartRoute(ctx context.Context, attrs RouteAttrs) (context.Context, trace.Span) {
	ctx, span := m.tracer.Start(ctx, "ai.route",
		trace.WithAttributes(
			attribute.String("ai.category", attrs.Category),
			attribute.String("user.id", attrs.UserID),
		))

	m.activeRoutes.Add(ctx, 1,
		metric.WithAttributes(attribute.String("category", attrs.Category)))

	return ctx, span
}

// EndRoute closes the span and records the outcome metrics.
func (m *Metrics) EndRoute(ctx context.Context, span trace.Span, attrs RouteAttrs, outcome RouteOutcome) {
	defer span.End()

	if m.prom != nil {
		m.prom.RecordRoute(attrs.Category, outcome.Provider, outcome.Model,
			outcome.Status, outcome.Duration, outcome.Tokens, outcome.CostCents,
			outcome.Fallbacks, outcome.CacheHit)
	}

	common := []attribute.KeyValue{
		attribute.String("category", attrs.Category),
		attribute.String("provider", outcome.Provider),
		attribute.String("status", outcome.Status),
	}

	m.activeRoutes.Add(ctx, -1,
		metric.WithAttributes(attribute.String("category", attrs.Category)))

	m.routeTotal.Add(ctx, 1, metric.WithAttributes(common...))
	m.routeDuration.Record(ctx, outcome.Duration.Seconds(), metric.WithAttributes(common...))

	if outcome.Tokens > 0 {
		m.tokenTotal.Add(ctx, int64(outcome.Tokens), metric.WithAttributes(common...))
	}
	if outcome.CostCents > 0 {
		m.costPerRequest.Record(ctx, outcome.CostCents, metric.WithAttributes(common...))
	}
	if outcome.Fallbacks > 0 {
		m.fallbackTotal.Add(ctx, int64(outcome.Fallbacks), metric.WithAttributes(common...))
		span.SetAttributes(attribute.Int("ai.fallbacks", outcome.Fallbacks))
	}
	if outcome.CacheHit {
		m.cacheHitTotal.Add(ctx, 1, metric.WithAttributes(common...))
		span.SetAttributes(attribute.Bool("ai.cache_hit", true))
	} else {
		m.cacheMissTotal.Add(ctx, 1, metric.WithAttributes(common...))
	}
	if outcome.ErrorCode != "" {
		span.SetAttributes(attribute.String("error.code", outcome.ErrorCode))
	}

	span.SetAttributes(
		attribute.String("ai.provider", outcome.Provider),
		attribute.String("ai.model", outcome.Model),
		attribute.Int("ai.tokens", outcome.Tokens),
		attribute.Int64("ai.cost_cents", outcome.CostCents),
		attribute.Float64("ai.duration_ms", float64(outcome.Duration.Milliseconds())))
}

// RecordAdmissionRejected counts a budget-ledger rejection.
func (m *Metrics) RecordAdmissionRejected(ctx context.Context, category, code string) {
	m.admissionRejected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("category", category),
		attribute.String("code", code)))
	if m.prom != nil {
		m.prom.RecordAdmissionRejected(category, code)
	}
}
