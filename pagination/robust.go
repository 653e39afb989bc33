package pagination

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/jonwraymond/reqcore/resilience"
)

// RobustConfig configures RobustFetch.
type RobustConfig struct {
	// MaxAttempts is the total number of fetch attempts.
	// Default: 3
	MaxAttempts int

	// InitialDelay is the first backoff delay.
	// Default: 1s
	InitialDelay time.Duration

	// MaxDelay caps a single backoff delay.
	// Default: 30s
	MaxDelay time.Duration

	// Multiplier grows the delay after each attempt.
	// Default: 2
	Multiplier float64

	// Jitter is the randomization factor applied to each delay.
	// Default: 0.5
	Jitter float64

	// Validate inspects a successful payload. A non-nil error forces a
	// retry as if the fetch had failed.
	Validate func(raw []byte) error

	// OnRetry is called before each backoff sleep.
	OnRetry func(err error, delay time.Duration)
}

func (c RobustConfig) withDefaults() RobustConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2
	}
	if c.Jitter < 0 || c.Jitter > 1 {
		c.Jitter = 0.5
	}
	return c
}

// RobustFetch wraps fetch with its own exponential backoff and an optional
// payload validator. Validation failures are retried; context cancellation,
// an open circuit and invalid options are not.
func RobustFetch(fetch FetchFunc, cfg RobustConfig) FetchFunc {
	cfg = cfg.withDefaults()

	return func(ctx context.Context, params url.Values) ([]byte, error) {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = cfg.InitialDelay
		b.MaxInterval = cfg.MaxDelay
		b.Multiplier = cfg.Multiplier
		b.RandomizationFactor = cfg.Jitter

		attempts := 0
		opts := []backoff.RetryOption{
			backoff.WithBackOff(b),
			backoff.WithMaxTries(uint(cfg.MaxAttempts)),
		}
		if cfg.OnRetry != nil {
			opts = append(opts, backoff.WithNotify(backoff.Notify(cfg.OnRetry)))
		}

		raw, err := backoff.Retry(ctx, func() ([]byte, error) {
			attempts++
			raw, err := fetch(ctx, params)
			if err != nil {
				if permanentFetchError(err) {
					return nil, backoff.Permanent(err)
				}
				return nil, err
			}
			if cfg.Validate != nil {
				if verr := cfg.Validate(raw); verr != nil {
					return nil, &invalidPageError{err: verr}
				}
			}
			return raw, nil
		}, opts...)
		if err != nil {
			if attempts >= cfg.MaxAttempts && !permanentFetchError(err) {
				return nil, &resilience.RetryExhaustedError{Attempts: attempts, Err: err}
			}
			return nil, err
		}
		return raw, nil
	}
}

func permanentFetchError(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, resilience.ErrCircuitOpen) ||
		errors.Is(err, ErrInvalidOptions) ||
		terminalStatus(err)
}

// NewRobustIterator builds an iterator over RobustFetch(fetch, cfg). The
// iterator's own page retry is disabled so attempts are not multiplied.
func NewRobustIterator[T any](manager *Manager, fetch FetchFunc, cfg RobustConfig, opts IteratorOptions) *Iterator[T] {
	opts.RetryAttempts = 1
	return NewIterator[T](manager, RobustFetch(fetch, cfg), opts)
}

// ShapeValidator rejects payloads that match neither recognized response
// shape.
func ShapeValidator(raw []byte) error {
	_, err := decodeRawPage(raw)
	return err
}

// SchemaValidator compiles a JSON Schema and returns a validator suitable
// for RobustConfig.Validate.
func SchemaValidator(schema string) (func(raw []byte) error, error) {
	compiled, err := jsonschema.CompileString("page.schema.json", schema)
	if err != nil {
		return nil, fmt.Errorf("pagination: compile schema: %w", err)
	}

	return func(raw []byte) error {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var doc any
		if err := dec.Decode(&doc); err != nil {
			return fmt.Errorf("%w: %v", ErrUnrecognizedShape, err)
		}
		return compiled.Validate(doc)
	}, nil
}
