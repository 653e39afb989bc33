package resilience

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// QueueConfig configures the request queue.
type QueueConfig struct {
	// MaxConcurrent is the maximum number of operations in flight.
	// Default: 10
	MaxConcurrent int
}

// RequestQueue bounds in-flight operations. Waiters are admitted in the
// order they called Add; completion order is not preserved.
type RequestQueue struct {
	config QueueConfig
	sem    *semaphore.Weighted

	mu        sync.Mutex
	active    int
	queued    int
	maxActive int
}

// NewRequestQueue creates a new request queue.
func NewRequestQueue(config QueueConfig) *RequestQueue {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}

	return &RequestQueue{
		config: config,
		sem:    semaphore.NewWeighted(int64(config.MaxConcurrent)),
	}
}

// Add waits for a slot, runs op, and releases the slot when op returns.
// A caller whose ctx ends while waiting leaves the queue without running op.
func (q *RequestQueue) Add(ctx context.Context, op func(context.Context) error) error {
	if err := q.acquire(ctx); err != nil {
		return err
	}
	defer q.release()

	return op(ctx)
}

// Submit is Add for operations that produce a value.
func Submit[T any](ctx context.Context, q *RequestQueue, op func(context.Context) (T, error)) (T, error) {
	var result T
	err := q.Add(ctx, func(ctx context.Context) error {
		var err error
		result, err = op(ctx)
		return err
	})
	return result, err
}

func (q *RequestQueue) acquire(ctx context.Context) error {
	q.mu.Lock()
	q.queued++
	q.mu.Unlock()

	err := q.sem.Acquire(ctx, 1)

	q.mu.Lock()
	defer q.mu.Unlock()
	q.queued--
	if err != nil {
		return err
	}
	q.active++
	if q.active > q.maxActive {
		q.maxActive = q.active
	}
	return nil
}

func (q *RequestQueue) release() {
	q.mu.Lock()
	q.active--
	q.mu.Unlock()
	q.sem.Release(1)
}

// Stats returns a point-in-time view of the queue.
func (q *RequestQueue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()

	return QueueStats{
		Active:        q.active,
		Queued:        q.queued,
		MaxActive:     q.maxActive,
		MaxConcurrent: q.config.MaxConcurrent,
	}
}

// QueueStats contains request queue statistics.
type QueueStats struct {
	Active        int
	Queued        int
	MaxActive     int
	MaxConcurrent int
}
