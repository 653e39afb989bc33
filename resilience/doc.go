// Package resilience provides the failure-handling stack that sits between
// API call sites and the wire transport.
//
// # Patterns
//
//   - Request Queue: bounds in-flight operations and admits waiters in FIFO
//     order.
//
//   - Rate Limiter: a process-local token bucket with a burst allowance.
//     Acquire blocks until a token is available.
//
//   - Circuit Breaker: stops attempting calls after persistent failures and
//     lets a single trial call through once the reset timeout has elapsed.
//
//   - Retry: classifies failures (HTTP status, network class, error code
//     tokens) and retries with exponential backoff, jitter and server
//     Retry-After hints.
//
//   - Timeout: bounds each attempt.
//
// # Usage
//
//	executor := resilience.NewExecutor(
//	    resilience.WithRequestQueue(resilience.NewRequestQueue(resilience.QueueConfig{MaxConcurrent: 10})),
//	    resilience.WithRateLimiter(resilience.NewRateLimiter(resilience.RateLimiterConfig{Rate: 10, Burst: 20})),
//	    resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	        FailureThreshold: 5,
//	        ResetTimeout:     time.Minute,
//	    })),
//	    resilience.WithRetry(resilience.NewRetry(resilience.DefaultRetryConfig())),
//	    resilience.WithTimeout(30*time.Second),
//	)
//
//	resp, err := resilience.ExecuteValue(ctx, executor, func(ctx context.Context) (*transport.Response, error) {
//	    return tr.Attempt(ctx, req)
//	})
//
// Use ExecuteValue rather than capturing a result inside Execute: an attempt
// abandoned by the timeout keeps running and must not write shared state.
//
// Every blocking step observes ctx.
package resilience
