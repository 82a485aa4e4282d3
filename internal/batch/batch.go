// Package batch applies a function to keyed items in barrier-separated
// batches, each with its own bounded worker pool.
package batch

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Item is one keyed input.
type Item[K comparable, V any] struct {
	Key   K
	Value V
}

// Func processes a single item.
type Func[K comparable, In, Out any] func(ctx context.Context, key K, in In) (Out, error)

// DefaultWorkers is the per-batch pool size used when none is given:
// NumCPU+4, capped at 32.
func DefaultWorkers() int {
	n := runtime.NumCPU() + 4
	if n > 32 {
		n = 32
	}
	return n
}

// Options tune Map. The zero value runs every item in one batch with
// DefaultWorkers.
type Options[K comparable, Out any] struct {
	BatchSize int
	Workers   int
	// OnResult observes each successful item as it completes. Calls are
	// serialized.
	OnResult func(key K, out Out)
}

// Map runs fn over items batch by batch. Every item of a batch finishes
// before the next batch starts. The first failing item ends the batch: no
// further items are dispatched, in-flight siblings run to completion, and
// Map returns that item's error without starting another batch.
//
// fn receives ctx unchanged; Map itself only checks ctx between dispatches.
func Map[K comparable, In, Out any](ctx context.Context, items []Item[K, In], fn Func[K, In, Out], opts Options[K, Out]) (map[K]Out, error) {
	results := make(map[K]Out, len(items))
	if len(items) == 0 {
		return results, nil
	}

	size := opts.BatchSize
	if size <= 0 {
		size = len(items)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers()
	}

	var mu sync.Mutex
	for start := 0; start < len(items); start += size {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := start + size
		if end > len(items) {
			end = len(items)
		}

		// dispatch stops once a sibling has failed
		g, failed := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for _, item := range items[start:end] {
			if failed.Err() != nil {
				break
			}
			item := item
			g.Go(func() error {
				out, err := fn(ctx, item.Key, item.Value)
				if err != nil {
					return &ItemError[K]{Key: item.Key, Err: err}
				}
				mu.Lock()
				results[item.Key] = out
				if opts.OnResult != nil {
					opts.OnResult(item.Key, out)
				}
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// ItemError identifies the item whose failure aborted Map.
type ItemError[K comparable] struct {
	Key K
	Err error
}

func (e *ItemError[K]) Error() string {
	return fmt.Sprintf("item %v: %v", e.Key, e.Err)
}

func (e *ItemError[K]) Unwrap() error {
	return e.Err
}
