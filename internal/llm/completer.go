package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/DivinerX/code-diagram-creator/internal/llm/providers"
	"github.com/DivinerX/code-diagram-creator/internal/ratelimit"
	"github.com/DivinerX/code-diagram-creator/internal/telemetry"
	"github.com/DivinerX/code-diagram-creator/internal/types"
)

// limiterKey is the single shared bucket for outbound completion
// calls; every call consumes one slot regardless of vendor.
const limiterKey = "outbound:complete"

// Completer dispatches completion requests to vendor providers. All
// failures — validation, rate limiting, vendor errors — are converted
// to descriptive text in the result and never returned as errors;
// CompletionResult.Failed distinguishes degraded results structurally.
type Completer struct {
	registry *providers.Registry
	health   *providers.HealthTracker
	limiter  *ratelimit.Limiter
	metrics  *telemetry.Metrics
	rpm      int
	window   time.Duration
}

func NewCompleter(registry *providers.Registry, health *providers.HealthTracker, limiter *ratelimit.Limiter, metrics *telemetry.Metrics, rpm int, window time.Duration) *Completer {
	if rpm <= 0 {
		rpm = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Completer{
		registry: registry,
		health:   health,
		limiter:  limiter,
		metrics:  metrics,
		rpm:      rpm,
		window:   window,
	}
}

// Complete validates, rate-limits, and routes one completion request.
func (c *Completer) Complete(ctx context.Context, req types.CompletionRequest) types.CompletionResult {
	if err := ValidateMaxTokens(req.MaxTokens, req.TokenCeiling); err != nil {
		return degraded(err.Error())
	}

	result, err := c.limiter.Check(ctx, limiterKey, int64(c.rpm), c.window)
	if err != nil {
		return degraded(fmt.Sprintf("rate limiter unavailable: %v", err))
	}
	if !result.Allowed {
		if c.metrics != nil {
			c.metrics.RecordRateLimitHit("outbound")
		}
		return degraded(fmt.Sprintf("completion budget of %d calls per %s exhausted, retry in %s", c.rpm, c.window, result.RetryAfter.Round(time.Second)))
	}

	provider, ok := c.registry.Get(req.Vendor)
	if !ok {
		return degraded(fmt.Sprintf("no provider configured for vendor %q", req.Vendor))
	}

	if c.health != nil && !c.health.IsAvailable(req.Vendor) {
		return degraded(fmt.Sprintf("vendor %q temporarily unavailable", req.Vendor))
	}

	start := time.Now()
	text, err := provider.Complete(ctx, req)
	durationMs := float64(time.Since(start).Milliseconds())

	if err != nil {
		if c.health != nil {
			c.health.RecordFailure(req.Vendor)
		}
		if c.metrics != nil {
			c.metrics.RecordCompletion(string(req.Vendor), req.Model, "error", durationMs)
		}
		slog.Error("completion failed",
			"vendor", req.Vendor,
			"model", req.Model,
			"duration_ms", durationMs,
			"error", err,
		)
		// Vendor errors surface as completion text, already formatted
		// by the provider ("OpenAI Client Error: ...").
		return types.CompletionResult{Text: err.Error(), Failed: true}
	}

	if c.health != nil {
		c.health.RecordSuccess(req.Vendor)
	}
	if c.metrics != nil {
		c.metrics.RecordCompletion(string(req.Vendor), req.Model, "ok", durationMs)
	}
	slog.Info("completion served",
		"vendor", req.Vendor,
		"model", req.Model,
		"duration_ms", durationMs,
	)

	return types.CompletionResult{Text: text}
}

// degraded wraps a dispatch-level failure in the never-fail text shape.
func degraded(msg string) types.CompletionResult {
	return types.CompletionResult{
		Text:   "Error completing text: " + msg,
		Failed: true,
	}
}
