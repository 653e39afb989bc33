package pagination

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"

	"github.com/jonwraymond/reqcore/resilience"
)

// FetchFunc retrieves one raw page for the given query parameters. It is
// normally routed through the client's resilience stack.
type FetchFunc func(ctx context.Context, params url.Values) ([]byte, error)

// Stats summarizes an iterator's progress.
type Stats struct {
	// Items counts items handed to the caller; buffered items are excluded.
	Items   int
	Batches int
	// AverageBatchSize is Items per fetched page.
	AverageBatchSize float64
	Exhausted        bool
}

// Iterator lazily walks a paginated endpoint, decoding items into T.
//
// An Iterator is forward-only, not restartable, and not safe for concurrent
// use.
type Iterator[T any] struct {
	manager *Manager
	fetch   FetchFunc
	opts    IteratorOptions
	retry   *resilience.Retry

	current   Options
	validated bool
	buf       []T
	done      bool
	err       error

	returned int
	fetched  int
	batches  int
}

// NewIterator creates an iterator starting at opts.Options.
func NewIterator[T any](manager *Manager, fetch FetchFunc, opts IteratorOptions) *Iterator[T] {
	opts = opts.withDefaults()
	return &Iterator[T]{
		manager: manager,
		fetch:   fetch,
		opts:    opts,
		current: opts.Options.clone(),
		retry: resilience.NewRetry(resilience.RetryConfig{
			MaxRetries:      opts.RetryAttempts - 1,
			BaseDelay:       opts.RetryDelay,
			MaxDelay:        opts.MaxRetryDelay,
			ExponentialBase: 2,
			Jitter:          true,
			RetryIf:         retryablePageError,
		}),
	}
}

// retryablePageError retries every fetch failure except terminal ones:
// bad options, an unrecognized page shape, and HTTP statuses other than 429
// and 5xx. Context and open-circuit errors are excluded by the retry policy
// itself.
func retryablePageError(err error) bool {
	if errors.Is(err, ErrInvalidOptions) || errors.Is(err, ErrUnrecognizedShape) {
		return false
	}
	return !terminalStatus(err)
}

// terminalStatus reports whether err carries an HTTP status that a re-send
// cannot fix: anything other than 429 and 5xx.
func terminalStatus(err error) bool {
	code, ok := resilience.StatusCode(err)
	return ok && code != http.StatusTooManyRequests && code < http.StatusInternalServerError
}

// Next returns the next item. ok is false once the sequence is exhausted or
// after an error; errors are sticky.
func (it *Iterator[T]) Next(ctx context.Context) (item T, ok bool, err error) {
	for len(it.buf) == 0 {
		if it.err != nil {
			return item, false, it.err
		}
		if it.done {
			return item, false, nil
		}
		if err := it.fetchPage(ctx); err != nil {
			return item, false, err
		}
	}

	item = it.buf[0]
	it.buf = it.buf[1:]
	return item, true, nil
}

// NextBatch returns the unconsumed remainder of the current page, fetching
// the next page when it is empty. A nil batch with a nil error means the
// sequence is exhausted.
func (it *Iterator[T]) NextBatch(ctx context.Context) ([]T, error) {
	for len(it.buf) == 0 {
		if it.err != nil {
			return nil, it.err
		}
		if it.done {
			return nil, nil
		}
		if err := it.fetchPage(ctx); err != nil {
			return nil, err
		}
	}

	batch := it.buf
	it.buf = nil
	return batch, nil
}

func (it *Iterator[T]) fetchPage(ctx context.Context) error {
	if !it.validated {
		it.validated = true
		if err := it.manager.Validate(it.current); err != nil {
			it.err = err
			return err
		}
	}

	remaining := -1
	if it.opts.MaxResults > 0 {
		remaining = it.opts.MaxResults - it.returned
		if remaining <= 0 {
			it.done = true
			return nil
		}
	}

	params := it.manager.BuildQueryParams(it.current)
	var raw []byte
	err := it.retry.Execute(ctx, func(ctx context.Context) error {
		var err error
		raw, err = it.fetch(ctx, params)
		return err
	})
	if err != nil {
		it.err = fmt.Errorf("pagination: fetch %s: %w", it.manager.Endpoint(), err)
		return it.err
	}
	it.fetched++

	result, err := it.manager.ParseResponse(raw, it.current)
	if err != nil {
		it.err = err
		return err
	}

	items := result.Data
	if remaining >= 0 && len(items) > remaining {
		items = items[:remaining]
	}
	decoded := make([]T, 0, len(items))
	for i, rawItem := range items {
		var v T
		if err := json.Unmarshal(rawItem, &v); err != nil {
			it.err = fmt.Errorf("pagination: decode %s item %d: %w", it.manager.Endpoint(), i, err)
			return it.err
		}
		decoded = append(decoded, v)
	}

	it.buf = decoded
	it.returned += len(decoded)
	if len(decoded) > 0 {
		it.batches++
	}

	next, more := it.manager.NextPageOptions(result, it.current)
	switch {
	case !more, len(result.Data) == 0:
		it.done = true
	case it.opts.MaxResults > 0 && it.returned >= it.opts.MaxResults:
		it.done = true
	default:
		it.current = next
	}
	return nil
}

// Stats returns progress so far.
func (it *Iterator[T]) Stats() Stats {
	s := Stats{
		Items:     it.returned - len(it.buf),
		Batches:   it.batches,
		Exhausted: it.done && len(it.buf) == 0,
	}
	if s.Batches > 0 {
		s.AverageBatchSize = float64(s.Items) / float64(s.Batches)
	}
	return s
}

// Fetches returns the number of successful page fetches.
func (it *Iterator[T]) Fetches() int { return it.fetched }

// All returns the remaining items as a range-over-func sequence. Iteration
// ends after the first error is yielded.
func (it *Iterator[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			item, ok, err := it.Next(ctx)
			if err != nil {
				yield(item, err)
				return
			}
			if !ok || !yield(item, nil) {
				return
			}
		}
	}
}

// Batches returns the remaining pages as a range-over-func sequence.
func (it *Iterator[T]) Batches(ctx context.Context) iter.Seq2[[]T, error] {
	return func(yield func([]T, error) bool) {
		for {
			batch, err := it.NextBatch(ctx)
			if err != nil {
				yield(nil, err)
				return
			}
			if batch == nil || !yield(batch, nil) {
				return
			}
		}
	}
}

// ToSlice collects the remaining items.
func (it *Iterator[T]) ToSlice(ctx context.Context) ([]T, error) {
	var out []T
	for item, err := range it.All(ctx) {
		if err != nil {
			return out, err
		}
		out = append(out, item)
	}
	return out, nil
}

// ForEach calls fn for each remaining item, stopping at the first error.
func (it *Iterator[T]) ForEach(ctx context.Context, fn func(T) error) error {
	for item, err := range it.All(ctx) {
		if err != nil {
			return err
		}
		if err := fn(item); err != nil {
			return err
		}
	}
	return nil
}

// Filter collects the remaining items for which keep returns true.
func (it *Iterator[T]) Filter(ctx context.Context, keep func(T) bool) ([]T, error) {
	var out []T
	err := it.ForEach(ctx, func(item T) error {
		if keep(item) {
			out = append(out, item)
		}
		return nil
	})
	return out, err
}

// Find returns the first remaining item matching match. No pages past the
// match are fetched.
func (it *Iterator[T]) Find(ctx context.Context, match func(T) bool) (T, bool, error) {
	for item, err := range it.All(ctx) {
		if err != nil {
			var zero T
			return zero, false, err
		}
		if match(item) {
			return item, true, nil
		}
	}
	var zero T
	return zero, false, nil
}

// Count consumes the iterator and returns the number of remaining items.
func (it *Iterator[T]) Count(ctx context.Context) (int, error) {
	n := 0
	for {
		batch, err := it.NextBatch(ctx)
		if err != nil {
			return n, err
		}
		if batch == nil {
			return n, nil
		}
		n += len(batch)
	}
}

// Map lazily transforms the items of it.
func Map[T, U any](ctx context.Context, it *Iterator[T], fn func(T) (U, error)) iter.Seq2[U, error] {
	return func(yield func(U, error) bool) {
		for item, err := range it.All(ctx) {
			var u U
			if err == nil {
				u, err = fn(item)
			}
			if !yield(u, err) || err != nil {
				return
			}
		}
	}
}
