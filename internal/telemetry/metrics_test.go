package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestRecordCompletion(t *testing.T) {
	// Use a fresh registry to avoid polluting the default one
	reg := prometheus.NewRegistry()

	completionTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_cdc_completion_total",
		Help: "Test counter",
	}, []string{"vendor", "model", "outcome"})

	completionDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "test_cdc_completion_duration_ms",
		Help:    "Test histogram",
		Buckets: []float64{100, 500, 1000},
	}, []string{"vendor", "model"})

	reg.MustRegister(completionTotal, completionDuration)

	m := &Metrics{
		CompletionTotal:      completionTotal,
		CompletionDurationMs: completionDuration,
	}

	m.RecordCompletion("anthropic", "claude-2", "ok", 150)
	m.RecordCompletion("anthropic", "claude-2", "ok", 300)

	counter, err := completionTotal.GetMetricWithLabelValues("anthropic", "claude-2", "ok")
	if err != nil {
		t.Fatalf("failed to get metric: %v", err)
	}
	var metric dto.Metric
	counter.Write(&metric)
	if *metric.Counter.Value != 2 {
		t.Errorf("expected completion count 2, got %v", *metric.Counter.Value)
	}
}

func TestRecordRender(t *testing.T) {
	renderTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_cdc_render_total",
		Help: "Test counter",
	}, []string{"outcome"})

	renderDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_cdc_render_duration_ms",
		Help:    "Test histogram",
		Buckets: []float64{100, 500},
	})

	m := &Metrics{
		RenderTotal:      renderTotal,
		RenderDurationMs: renderDuration,
	}

	m.RecordRender("cli_error", 42)

	counter, _ := renderTotal.GetMetricWithLabelValues("cli_error")
	var metric dto.Metric
	counter.Write(&metric)
	if *metric.Counter.Value != 1 {
		t.Errorf("expected render count 1, got %v", *metric.Counter.Value)
	}
}

func TestRecordRateLimitHit(t *testing.T) {
	hitTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_cdc_rate_limit_hit_total",
		Help: "Test counter",
	}, []string{"dimension"})

	m := &Metrics{RateLimitHitTotal: hitTotal}
	m.RecordRateLimitHit("rpm")

	counter, _ := hitTotal.GetMetricWithLabelValues("rpm")
	var metric dto.Metric
	counter.Write(&metric)
	if *metric.Counter.Value != 1 {
		t.Errorf("expected rate limit hit count 1, got %v", *metric.Counter.Value)
	}
}
