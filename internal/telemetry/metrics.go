package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the diagram creator backend.
type Metrics struct {
	CompletionTotal      *prometheus.CounterVec
	CompletionDurationMs *prometheus.HistogramVec
	RenderTotal          *prometheus.CounterVec
	RenderDurationMs     prometheus.Histogram
	RateLimitHitTotal    *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		CompletionTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cdc_completion_total",
			Help: "Total number of completion calls dispatched, by vendor and outcome.",
		}, []string{"vendor", "model", "outcome"}),

		CompletionDurationMs: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cdc_completion_duration_ms",
			Help:    "Completion call duration in milliseconds (including provider latency).",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		}, []string{"vendor", "model"}),

		RenderTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cdc_render_total",
			Help: "Total number of diagram render invocations, by outcome.",
		}, []string{"outcome"}),

		RenderDurationMs: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "cdc_render_duration_ms",
			Help:    "Duration of mermaid CLI invocations in milliseconds.",
			Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		}),

		RateLimitHitTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cdc_rate_limit_hit_total",
			Help: "Total requests rejected by a rate limit, by dimension.",
		}, []string{"dimension"}),
	}
}

// RecordCompletion records one dispatched completion call.
func (m *Metrics) RecordCompletion(vendor, model, outcome string, durationMs float64) {
	m.CompletionTotal.WithLabelValues(vendor, model, outcome).Inc()
	m.CompletionDurationMs.WithLabelValues(vendor, model).Observe(durationMs)
}

// RecordRender records one mermaid CLI invocation.
func (m *Metrics) RecordRender(outcome string, durationMs float64) {
	m.RenderTotal.WithLabelValues(outcome).Inc()
	m.RenderDurationMs.Observe(durationMs)
}

// RecordRateLimitHit records a rejected request.
func (m *Metrics) RecordRateLimitHit(dimension string) {
	m.RateLimitHitTotal.WithLabelValues(dimension).Inc()
}
