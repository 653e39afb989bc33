package health

import (
	"context"
	"fmt"
	"time"

	"github.com/jonwraymond/reqcore/resilience"
)

// BreakerSource exposes circuit breaker state.
type BreakerSource interface {
	Metrics() resilience.CircuitBreakerMetrics
}

// QueueSource exposes request queue state.
type QueueSource interface {
	Stats() resilience.QueueStats
}

// LimiterSource exposes rate limiter state.
type LimiterSource interface {
	Tokens() float64
}

// CircuitBreakerChecker reports closed as healthy, half-open as degraded and
// open as unhealthy.
type CircuitBreakerChecker struct {
	source BreakerSource
}

// NewCircuitBreakerChecker creates a checker over source.
func NewCircuitBreakerChecker(source BreakerSource) *CircuitBreakerChecker {
	return &CircuitBreakerChecker{source: source}
}

func (c *CircuitBreakerChecker) Name() string { return "circuit_breaker" }

func (c *CircuitBreakerChecker) Check(_ context.Context) Result {
	m := c.source.Metrics()
	details := map[string]any{
		"state":    m.State.String(),
		"failures": m.Failures,
	}
	if !m.LastFailure.IsZero() {
		details["last_failure"] = m.LastFailure.UTC().Format(time.RFC3339)
	}

	switch m.State {
	case resilience.StateOpen:
		return Unhealthy("circuit open", resilience.ErrCircuitOpen).WithDetails(details)
	case resilience.StateHalfOpen:
		return Degraded("circuit half-open, trial call pending").WithDetails(details)
	default:
		return Healthy("circuit closed").WithDetails(details)
	}
}

// QueueCheckerConfig configures the request queue checker.
type QueueCheckerConfig struct {
	// DegradedDepth is the number of waiting requests at which the queue is
	// reported degraded.
	// Default: MaxConcurrent of the observed queue
	DegradedDepth int
}

// QueueChecker reports the queue degraded once waiters back up.
type QueueChecker struct {
	config QueueCheckerConfig
	source QueueSource
}

// NewQueueChecker creates a checker over source.
func NewQueueChecker(source QueueSource, config QueueCheckerConfig) *QueueChecker {
	return &QueueChecker{config: config, source: source}
}

func (c *QueueChecker) Name() string { return "request_queue" }

func (c *QueueChecker) Check(_ context.Context) Result {
	s := c.source.Stats()
	threshold := c.config.DegradedDepth
	if threshold <= 0 {
		threshold = s.MaxConcurrent
	}
	details := map[string]any{
		"active":         s.Active,
		"queued":         s.Queued,
		"max_concurrent": s.MaxConcurrent,
		"max_active":     s.MaxActive,
	}

	if threshold > 0 && s.Queued >= threshold {
		return Degraded(fmt.Sprintf("%d requests waiting", s.Queued)).WithDetails(details)
	}
	return Healthy("queue flowing").WithDetails(details)
}

// RateLimiterChecker reports the limiter degraded while its bucket is empty.
type RateLimiterChecker struct {
	source LimiterSource
}

// NewRateLimiterChecker creates a checker over source.
func NewRateLimiterChecker(source LimiterSource) *RateLimiterChecker {
	return &RateLimiterChecker{source: source}
}

func (c *RateLimiterChecker) Name() string { return "rate_limiter" }

func (c *RateLimiterChecker) Check(_ context.Context) Result {
	tokens := c.source.Tokens()
	details := map[string]any{"tokens": tokens}
	if tokens < 1 {
		return Degraded("rate limit reached, callers are waiting").WithDetails(details)
	}
	return Healthy("tokens available").WithDetails(details)
}

var (
	_ Checker = (*CircuitBreakerChecker)(nil)
	_ Checker = (*QueueChecker)(nil)
	_ Checker = (*RateLimiterChecker)(nil)
)
