package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of items a batch runs at once.
const DefaultConcurrency = 10

// ErrAborted is returned when the context is done before a chunk starts.
var ErrAborted = errors.New("batch processing aborted")

// BatchOptions configure BatchProcess.
type BatchOptions struct {
	// Concurrency is the chunk size. Defaults to DefaultConcurrency.
	Concurrency int
	// OnProgress is called after every finished item. Calls never overlap.
	OnProgress func(completed, total int)
}

// BatchProcess runs process over items in consecutive chunks of Concurrency items,
// waiting for a whole chunk before starting the next. Results keep the input order.
// The context is checked only between chunks; items already running are not interrupted.
func BatchProcess[T, R any](ctx context.Context, items []T, process func(context.Context, T) (R, error), opts BatchOptions) ([]R, error) {
	size := opts.Concurrency
	if size <= 0 {
		size = DefaultConcurrency
	}
	results := make([]R, len(items))

	var (
		mu        sync.Mutex
		completed int
	)
	report := func() {
		mu.Lock()
		defer mu.Unlock()
		completed++
		if opts.OnProgress != nil {
			opts.OnProgress(completed, len(items))
		}
	}

	for start := 0; start < len(items); start += size {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAborted, err)
		}
		end := min(start+size, len(items))

		var eg errgroup.Group
		for i := start; i < end; i++ {
			eg.Go(func() error {
				r, err := process(ctx, items[i])
				if err != nil {
					return err
				}
				results[i] = r
				report()
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}
	}
	return results, nil
}
