package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/reqcore/observe"
)

// ErrorPolicy selects how a ConcurrentIterator handles a failing source.
type ErrorPolicy int

const (
	// ErrorPolicyLog drops the failing source, logs it, records it in
	// Failures, and keeps merging the others.
	ErrorPolicyLog ErrorPolicy = iota

	// ErrorPolicyPropagate cancels the merge and surfaces the error.
	ErrorPolicyPropagate
)

func (p ErrorPolicy) String() string {
	switch p {
	case ErrorPolicyLog:
		return "log"
	case ErrorPolicyPropagate:
		return "propagate"
	default:
		return "unknown"
	}
}

// ConcurrentOptions configures a ConcurrentIterator.
type ConcurrentOptions struct {
	// Concurrency is the number of sources drained at once.
	// Default: 3
	Concurrency int

	// ErrorPolicy defaults to ErrorPolicyLog.
	ErrorPolicy ErrorPolicy

	// Logger receives dropped-source warnings. Default: observe.NopLogger()
	Logger observe.Logger
}

// SourceFailure records a source dropped under ErrorPolicyLog.
type SourceFailure struct {
	Index int
	Err   error
}

// ConcurrentIterator merges several iterators with bounded concurrency.
// Items from one source keep their order; there is no ordering across
// sources.
type ConcurrentIterator[T any] struct {
	ctx     context.Context
	sources []*Iterator[T]
	opts    ConcurrentOptions

	once   sync.Once
	cancel context.CancelFunc
	items  chan T

	mu       sync.Mutex
	failures []SourceFailure
	mergeErr error
	finished bool
	err      error
}

// NewConcurrentIterator creates a merge over sources. Each source must not
// be used elsewhere afterwards.
//
// ctx governs every page fetch for the life of the merge. The ctx passed to
// Next only bounds that call's wait for an item, so a per-call deadline on
// Next does not stop the producers.
func NewConcurrentIterator[T any](ctx context.Context, sources []*Iterator[T], opts ConcurrentOptions) *ConcurrentIterator[T] {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 3
	}
	if opts.Logger == nil {
		opts.Logger = observe.NopLogger()
	}
	return &ConcurrentIterator[T]{ctx: ctx, sources: sources, opts: opts}
}

// start launches the producers under the merge context.
func (c *ConcurrentIterator[T]) start() {
	ctx, cancel := context.WithCancel(c.ctx)
	c.cancel = cancel
	c.items = make(chan T)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)

	go func() {
		for i, src := range c.sources {
			g.Go(func() error {
				return c.drain(gctx, i, src)
			})
		}
		err := g.Wait()
		c.mu.Lock()
		c.mergeErr = err
		c.mu.Unlock()
		close(c.items)
	}()
}

func (c *ConcurrentIterator[T]) drain(ctx context.Context, index int, src *Iterator[T]) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for {
		item, ok, err := src.Next(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if c.opts.ErrorPolicy == ErrorPolicyPropagate {
				return fmt.Errorf("pagination: source %d: %w", index, err)
			}
			c.mu.Lock()
			c.failures = append(c.failures, SourceFailure{Index: index, Err: err})
			c.mu.Unlock()
			c.opts.Logger.Warn(ctx, "dropping failed pagination source",
				observe.Field{Key: "source", Value: index},
				observe.Field{Key: "endpoint", Value: src.manager.Endpoint()},
				observe.Field{Key: "error", Value: err.Error()},
			)
			return nil
		}
		if !ok {
			return nil
		}
		select {
		case c.items <- item:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Next returns the next item from whichever source produced one first.
func (c *ConcurrentIterator[T]) Next(ctx context.Context) (item T, ok bool, err error) {
	c.once.Do(c.start)

	c.mu.Lock()
	finished, ferr := c.finished, c.err
	c.mu.Unlock()
	if finished {
		return item, false, ferr
	}

	select {
	case v, open := <-c.items:
		if open {
			return v, true, nil
		}
		return item, false, c.finish(false)
	case <-ctx.Done():
		return item, false, ctx.Err()
	}
}

// finish records the outcome once the producers have exited.
func (c *ConcurrentIterator[T]) finish(closed bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.finished {
		c.finished = true
		c.err = c.mergeErr
		if closed && (c.err == nil || errors.Is(c.err, context.Canceled)) {
			c.err = ErrClosed
		}
		c.cancel()
	}
	return c.err
}

// Close stops every source and releases the producers. Next returns
// ErrClosed afterwards unless Next had already reported the outcome.
func (c *ConcurrentIterator[T]) Close() {
	c.once.Do(c.start)

	c.mu.Lock()
	if c.finished {
		c.mu.Unlock()
		return
	}
	c.cancel()
	c.mu.Unlock()

	for range c.items {
	}
	c.finish(true)
}

// ToSlice collects every merged item.
func (c *ConcurrentIterator[T]) ToSlice(ctx context.Context) ([]T, error) {
	var out []T
	for {
		item, ok, err := c.Next(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, item)
	}
}

// Failures returns the sources dropped under ErrorPolicyLog.
func (c *ConcurrentIterator[T]) Failures() []SourceFailure {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]SourceFailure(nil), c.failures...)
}
