package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"strings"
	"sync/atomic"
	"time"
)

// Default retry classification.
var (
	DefaultRetryableStatusCodes = []int{429, 500, 502, 503, 504}
	DefaultRetryableErrorCodes  = []string{"ECONNRESET", "ENOTFOUND", "ECONNREFUSED", "ETIMEDOUT"}
)

// RetryConfig configures retry behavior.
type RetryConfig struct {
	// MaxRetries is the number of retries after the initial attempt.
	// Negative values are treated as 0.
	// Default (DefaultRetryConfig): 3
	MaxRetries int `yaml:"max_retries"`

	// BaseDelay is the delay before the first retry.
	// Default: 1s
	BaseDelay time.Duration `yaml:"base_delay"`

	// MaxDelay caps any single delay, including server-provided ones.
	// Default: 30s
	MaxDelay time.Duration `yaml:"max_delay"`

	// ExponentialBase is the per-attempt delay multiplier.
	// Default: 2
	ExponentialBase float64 `yaml:"exponential_base"`

	// Jitter scales computed delays by a random factor in [0.5, 1.0].
	// Default (DefaultRetryConfig): true
	Jitter bool `yaml:"jitter"`

	// RetryableStatusCodes lists HTTP statuses that trigger a retry.
	// Default: 429, 500, 502, 503, 504
	RetryableStatusCodes []int `yaml:"retryable_status_codes"`

	// RetryableErrorCodes lists tokens matched case-insensitively against
	// error messages.
	// Default: ECONNRESET, ENOTFOUND, ECONNREFUSED, ETIMEDOUT
	RetryableErrorCodes []string `yaml:"retryable_error_codes"`

	// RetryIf replaces the built-in classification when set.
	RetryIf func(err error) bool `yaml:"-"`
}

// DefaultRetryConfig returns the client-level retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:           3,
		BaseDelay:            time.Second,
		MaxDelay:             30 * time.Second,
		ExponentialBase:      2,
		Jitter:               true,
		RetryableStatusCodes: append([]int(nil), DefaultRetryableStatusCodes...),
		RetryableErrorCodes:  append([]string(nil), DefaultRetryableErrorCodes...),
	}
}

// RetryPolicy is an immutable retry classification and backoff policy.
type RetryPolicy struct {
	config      RetryConfig
	statusCodes map[int]struct{}
	errorCodes  []string
}

// NewRetryPolicy creates a policy from config. The config is copied.
func NewRetryPolicy(config RetryConfig) *RetryPolicy {
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = time.Second
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.ExponentialBase <= 0 {
		config.ExponentialBase = 2
	}
	if config.RetryableStatusCodes == nil {
		config.RetryableStatusCodes = DefaultRetryableStatusCodes
	}
	if config.RetryableErrorCodes == nil {
		config.RetryableErrorCodes = DefaultRetryableErrorCodes
	}
	config.RetryableStatusCodes = append([]int(nil), config.RetryableStatusCodes...)
	config.RetryableErrorCodes = append([]string(nil), config.RetryableErrorCodes...)

	p := &RetryPolicy{
		config:      config,
		statusCodes: make(map[int]struct{}, len(config.RetryableStatusCodes)),
		errorCodes:  make([]string, 0, len(config.RetryableErrorCodes)),
	}
	for _, code := range config.RetryableStatusCodes {
		p.statusCodes[code] = struct{}{}
	}
	for _, code := range config.RetryableErrorCodes {
		if code = strings.TrimSpace(code); code != "" {
			p.errorCodes = append(p.errorCodes, strings.ToLower(code))
		}
	}
	return p
}

// Config returns a copy of the policy configuration.
func (p *RetryPolicy) Config() RetryConfig {
	c := p.config
	c.RetryableStatusCodes = append([]int(nil), p.config.RetryableStatusCodes...)
	c.RetryableErrorCodes = append([]string(nil), p.config.RetryableErrorCodes...)
	return c
}

// MaxRetries returns the number of retries after the first attempt.
func (p *RetryPolicy) MaxRetries() int {
	return p.config.MaxRetries
}

// IsRetryable classifies err.
func (p *RetryPolicy) IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrCircuitOpen) {
		return false
	}
	if p.config.RetryIf != nil {
		return p.config.RetryIf(err)
	}

	if status, ok := StatusCode(err); ok {
		if _, retryable := p.statusCodes[status]; retryable {
			return true
		}
	}
	if IsNetworkError(err) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, code := range p.errorCodes {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return false
}

// Delay returns the wait before the retry following attempt (0-based).
func (p *RetryPolicy) Delay(attempt int, err error) time.Duration {
	var delay time.Duration

	if ra, ok := RetryAfter(err); ok {
		// Server-provided delays are not jittered.
		delay = ra
	} else {
		mult := math.Pow(p.config.ExponentialBase, float64(attempt))
		d := float64(p.config.BaseDelay) * mult
		if p.config.Jitter {
			// #nosec G404 -- jitter is non-cryptographic timing variance.
			d *= 0.5 + rand.Float64()*0.5
		}
		if d > float64(math.MaxInt64) {
			d = float64(math.MaxInt64)
		}
		delay = time.Duration(d)
	}

	if delay > p.config.MaxDelay {
		delay = p.config.MaxDelay
	}
	return delay
}

// Retry runs operations under a swappable RetryPolicy.
type Retry struct {
	policy atomic.Pointer[RetryPolicy]

	// OnRetry is called with the call's context before sleeping ahead of
	// each retry. Set it before the first Execute.
	OnRetry func(ctx context.Context, attempt int, err error, delay time.Duration)
}

// NewRetry creates a retry executor with the policy built from config.
func NewRetry(config RetryConfig) *Retry {
	r := &Retry{}
	r.policy.Store(NewRetryPolicy(config))
	return r
}

// Policy returns the current policy.
func (r *Retry) Policy() *RetryPolicy {
	return r.policy.Load()
}

// SetPolicy replaces the policy. In-flight executions keep the policy they
// started with.
func (r *Retry) SetPolicy(p *RetryPolicy) {
	if p != nil {
		r.policy.Store(p)
	}
}

// Execute runs op until it succeeds, fails with a non-retryable error, or
// MaxRetries+1 attempts have been made. op must be safe to repeat.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	policy := r.policy.Load()
	maxRetries := policy.MaxRetries()

	for attempt := 0; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return err
		}
		if !policy.IsRetryable(err) {
			return err
		}
		if attempt >= maxRetries {
			return &RetryExhaustedError{Attempts: attempt + 1, Err: err}
		}

		delay := policy.Delay(attempt, err)
		if r.OnRetry != nil {
			r.OnRetry(ctx, attempt+1, err, delay)
		}

		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// Config returns the current policy configuration.
func (r *Retry) Config() RetryConfig {
	return r.policy.Load().Config()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
