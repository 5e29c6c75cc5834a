// Package telemetry holds the Prometheus collectors and the tracer shared by the
// pipeline, the broadcaster and the research tiers.
package telemetry

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const namespace = "claimcheck"

var (
	JobsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_submitted_total",
		Help:      "Media jobs accepted for processing.",
	})
	JobsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_finished_total",
		Help:      "Media jobs that reached a terminal status.",
	}, []string{"status"})
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Wall time spent per pipeline stage.",
		Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1200},
	}, []string{"stage", "outcome"})
	StatementsResearched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "statements_researched_total",
		Help:      "Statements processed in the research stage.",
	}, []string{"outcome"})
	ProviderCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_calls_total",
		Help:      "Evidence provider invocations by tier and outcome.",
	}, []string{"tier", "provider", "outcome"})
	ProviderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "provider_latency_seconds",
		Help:      "Evidence provider call latency.",
		Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
	}, []string{"tier", "provider"})
	ResearchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "research_requests_total",
		Help:      "Statement research requests by result source.",
	}, []string{"source"})
	Subscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "progress_subscribers",
		Help:      "Live progress stream subscribers.",
	})
	SubscribersDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "progress_subscribers_dropped_total",
		Help:      "Subscribers disconnected because their buffer was full.",
	})
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "progress_events_total",
		Help:      "Progress events fanned out, by origin.",
	}, []string{"origin"})
)

// ObserveProvider records one provider call.
func ObserveProvider(tier, provider string, started time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	ProviderCalls.WithLabelValues(tier, provider, outcome).Inc()
	ProviderLatency.WithLabelValues(tier, provider).Observe(time.Since(started).Seconds())
}

// Tracer returns the service tracer. Without an installed SDK it is a no-op.
func Tracer() trace.Tracer {
	return otel.Tracer("github.com/mohammad-safakhou/claimcheck")
}

// StartSpan starts a span with string attributes given as key/value pairs.
func StartSpan(ctx context.Context, name string, kv ...string) (context.Context, trace.Span) {
	attrs := make([]attribute.KeyValue, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		attrs = append(attrs, attribute.String(kv[i], kv[i+1]))
	}
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// Annotate adds string attributes given as key/value pairs to span.
func Annotate(span trace.Span, kv ...string) {
	for i := 0; i+1 < len(kv); i += 2 {
		span.SetAttributes(attribute.String(kv[i], kv[i+1]))
	}
}

// EndSpan records err on span (if any) and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
