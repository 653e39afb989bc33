package pagination

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// BatchHandler processes one page of items.
type BatchHandler[T any] func(ctx context.Context, batch []T) error

// BatchReport counts the work ProcessBatches completed.
type BatchReport struct {
	Batches int
	Items   int
}

// ProcessBatches reads pages from it and runs handle on up to concurrency
// pages at once. Pages are fetched in order; handlers may finish in any
// order. The first handler or fetch error cancels the rest and is returned.
func ProcessBatches[T any](ctx context.Context, it *Iterator[T], concurrency int, handle BatchHandler[T]) (BatchReport, error) {
	if concurrency <= 0 {
		concurrency = 1
	}

	var batches, items atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var fetchErr error
	for gctx.Err() == nil {
		batch, err := it.NextBatch(gctx)
		if err != nil {
			fetchErr = err
			break
		}
		if batch == nil {
			break
		}
		g.Go(func() error {
			if err := handle(gctx, batch); err != nil {
				return err
			}
			batches.Add(1)
			items.Add(int64(len(batch)))
			return nil
		})
	}

	err := g.Wait()
	report := BatchReport{Batches: int(batches.Load()), Items: int(items.Load())}
	if err != nil {
		return report, err
	}
	return report, fetchErr
}
