package resilience

import (
	"context"
	"errors"
	"time"
)

// TimeoutConfig configures the per-attempt timeout.
type TimeoutConfig struct {
	// Timeout bounds a single attempt.
	// Default: 30 seconds
	Timeout time.Duration
}

// Timeout bounds each attempt. An attempt that outlives its deadline is
// abandoned and reported as ErrTimeout, which the retry policy treats as a
// network-class failure.
type Timeout struct {
	config TimeoutConfig
}

// NewTimeout creates a per-attempt timeout.
func NewTimeout(config TimeoutConfig) *Timeout {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &Timeout{config: config}
}

// Execute runs op under a deadline of Config().Timeout. Cancellation of ctx
// itself is returned unchanged.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	_, err := TimeoutValue(ctx, t, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// TimeoutValue is Execute for operations that produce a value. The value
// is handed back over the attempt's channel, so an abandoned attempt that
// finishes late never reaches the caller.
func TimeoutValue[T any](ctx context.Context, t *Timeout, op func(context.Context) (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}

	attemptCtx, cancel := context.WithTimeoutCause(ctx, t.config.Timeout, ErrTimeout)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		v, err := op(attemptCtx)
		done <- result{v: v, err: err}
	}()

	var zero T
	var err error
	select {
	case r := <-done:
		if r.err == nil {
			return r.v, nil
		}
		err = r.err
	case <-attemptCtx.Done():
		err = attemptCtx.Err()
	}

	if ctx.Err() == nil && errors.Is(context.Cause(attemptCtx), ErrTimeout) && errors.Is(err, context.DeadlineExceeded) {
		return zero, ErrTimeout
	}
	return zero, err
}

// Config returns the timeout configuration.
func (t *Timeout) Config() TimeoutConfig {
	return t.config
}
