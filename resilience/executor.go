package resilience

import (
	"context"
	"time"
)

// Executor composes the resilience stack for one logical call:
//
//	queue -> rate limiter -> circuit breaker -> retry -> timeout -> op
//
// Each layer is optional. The queue admits the call, the limiter spends one
// token for it, the breaker sees its outcome after retries, and the timeout
// bounds every attempt.
type Executor struct {
	queue          *RequestQueue
	rateLimiter    *RateLimiter
	circuitBreaker *CircuitBreaker
	retry          *Retry
	timeout        *Timeout
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// NewExecutor creates an executor from opts.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithRequestQueue bounds concurrency with q.
func WithRequestQueue(q *RequestQueue) ExecutorOption {
	return func(e *Executor) { e.queue = q }
}

// WithRateLimiter spends one token of rl per call.
func WithRateLimiter(rl *RateLimiter) ExecutorOption {
	return func(e *Executor) { e.rateLimiter = rl }
}

// WithCircuitBreaker guards calls with cb.
func WithCircuitBreaker(cb *CircuitBreaker) ExecutorOption {
	return func(e *Executor) { e.circuitBreaker = cb }
}

// WithRetry retries failed attempts with r.
func WithRetry(r *Retry) ExecutorOption {
	return func(e *Executor) { e.retry = r }
}

// WithTimeout bounds every attempt by d.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.timeout = NewTimeout(TimeoutConfig{Timeout: d}) }
}

// WithTimeoutConfig bounds every attempt with t.
func WithTimeoutConfig(t *Timeout) ExecutorOption {
	return func(e *Executor) { e.timeout = t }
}

type stage func(ctx context.Context, op func(context.Context) error) error

// stages lists the layers around the attempt, outermost first. The timeout
// is applied by ExecuteValue itself since it owns the attempt's result.
func (e *Executor) stages() []stage {
	s := make([]stage, 0, 4)
	if e.queue != nil {
		s = append(s, e.queue.Add)
	}
	if e.rateLimiter != nil {
		s = append(s, e.rateLimiter.Execute)
	}
	if e.circuitBreaker != nil {
		s = append(s, e.circuitBreaker.Execute)
	}
	if e.retry != nil {
		s = append(s, e.retry.Execute)
	}
	return s
}

// Execute runs op through every configured layer.
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	_, err := ExecuteValue(ctx, e, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// ExecuteValue runs op through every configured layer of e and returns the
// value of the attempt that succeeded. Attempts abandoned by the timeout
// cannot overwrite it.
func ExecuteValue[T any](ctx context.Context, e *Executor, op func(context.Context) (T, error)) (T, error) {
	var result T
	run := func(ctx context.Context) error {
		var (
			v   T
			err error
		)
		if e.timeout != nil {
			v, err = TimeoutValue(ctx, e.timeout, op)
		} else {
			v, err = op(ctx)
		}
		if err != nil {
			return err
		}
		result = v
		return nil
	}

	stages := e.stages()
	for i := len(stages) - 1; i >= 0; i-- {
		st, inner := stages[i], run
		run = func(ctx context.Context) error { return st(ctx, inner) }
	}
	if err := run(ctx); err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// Queue returns the request queue, or nil.
func (e *Executor) Queue() *RequestQueue { return e.queue }

// RateLimiter returns the rate limiter, or nil.
func (e *Executor) RateLimiter() *RateLimiter { return e.rateLimiter }

// CircuitBreaker returns the circuit breaker, or nil.
func (e *Executor) CircuitBreaker() *CircuitBreaker { return e.circuitBreaker }

// Retry returns the retry layer, or nil.
func (e *Executor) Retry() *Retry { return e.retry }
