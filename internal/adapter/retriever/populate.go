package retriever

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"ragbench/internal/adapter/store"
	"ragbench/internal/log"
	"ragbench/internal/port"
)

// Progress stages reported while populating a collection.
const (
	StageEmbed = "embed"
	StageIndex = "index"
)

// InsertOptions tune bulk population of a collection.
type InsertOptions struct {
	BatchSize  int // chunks per write
	MaxWorkers int // upper bound on concurrent writers
	Progress   port.Progress
}

func (o InsertOptions) batchSize() int {
	if o.BatchSize <= 0 {
		return 100
	}
	return o.BatchSize
}

// workers is min(NumCPU, MaxWorkers).
func (o InsertOptions) workers() int {
	n := runtime.NumCPU()
	limit := o.MaxWorkers
	if limit <= 0 {
		limit = 20
	}
	return min(n, limit)
}

func (o InsertOptions) progress() port.Progress {
	if o.Progress == nil {
		return port.NopProgress{}
	}
	return o.Progress
}

// bulkInsert calls put for consecutive disjoint ranges of [0, n) from a
// bounded pool of writers. The first failure stops dispatch and is
// returned once running writers finish.
func bulkInsert(ctx context.Context, n int, opts InsertOptions, put func(start, end int) error) error {
	size := opts.batchSize()
	progress := opts.progress()
	progress.Start(StageIndex, n)
	defer progress.Finish(StageIndex)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers())
	for start := 0; start < n; start += size {
		if gctx.Err() != nil {
			break
		}
		start := start
		end := min(start+size, n)
		g.Go(func() error {
			if err := put(start, end); err != nil {
				return fmt.Errorf("error adding %d to %d: %w", start, end, err)
			}
			progress.Add(StageIndex, end-start)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// populateOnce runs populate unless the collection already holds a
// complete population for method. A partial population left by an
// interrupted run is cleared first. populate failures leave the
// collection marked incomplete, so the next run starts over.
func populateOnce(ctx context.Context, coll *store.Collection, method, paramsHash string, dimension int, populate func(ctx context.Context) error) error {
	check, err := coll.Check(method, paramsHash)
	if err != nil {
		return err
	}
	if check.Populated {
		if check.ParamsChanged {
			log.Warnw("reusing collection built with different index parameters",
				"collection", coll.Name(), "embed_method", method)
		}
		log.Infow("collection already populated, skipping indexing",
			"collection", coll.Name(), "embed_method", method)
		return nil
	}
	if check.NeedsReset {
		log.Warnw("clearing partially populated collection",
			"collection", coll.Name(), "reason", check.Reason)
		if err := coll.Reset(); err != nil {
			return fmt.Errorf("failed to reset collection %s: %w", coll.Name(), err)
		}
	}

	if err := populate(ctx); err != nil {
		return fmt.Errorf("failed to populate collection %s: %w", coll.Name(), err)
	}
	return coll.MarkComplete(method, paramsHash, dimension)
}

// SearchOptions tune query fan-out during retrieval.
type SearchOptions struct {
	BatchSize int // queries per barrier
	Workers   int // 0 = batch.DefaultWorkers()
}
