package bbbpool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bbbpool/bbbpool/logging"
)

// Result is the outcome of one fanout item, stored at the index of its input.
type Result[O any] struct {
	Value O
	Err   error
}

// batch is a contiguous range [start, end) of the fanout input.
type batch struct {
	start, end int
}

// partition splits total items into contiguous batches for at most
// maxWorkers workers. Every batch but the last holds the same number of
// items; the last one takes what is left.
func partition(total, maxWorkers int) []batch {
	if total <= 0 {
		return nil
	}
	if maxWorkers < 1 {
		maxWorkers = 1
	}

	workers := maxWorkers
	if total < workers {
		workers = total
	}

	size := (total + workers - 1) / workers
	workers = total / size
	if total%size != 0 {
		workers++
	}

	batches := make([]batch, 0, workers)
	for w := 0; w < workers; w++ {
		start := w * size
		end := start + size
		if w == workers-1 {
			end = total
		}
		batches = append(batches, batch{start: start, end: end})
	}
	return batches
}

// Fanout runs fn over items with at most maxWorkers concurrent workers and
// blocks until all of them have returned. Each worker processes its batch
// sequentially and writes only the result indices of its own batch, so the
// returned slice is aligned with items whatever the completion order. A
// failing item never stops its siblings.
func Fanout[I, O any](ctx context.Context, logger *logging.Logger, items []I,
	maxWorkers int, fn func(context.Context, I) (O, error)) []Result[O] {

	results := make([]Result[O], len(items))
	batches := partition(len(items), maxWorkers)
	if len(batches) == 0 {
		return results
	}

	// Setup our wait group to ensure we block until all workers have
	// completed.
	var wg sync.WaitGroup
	wg.Add(len(batches))

	// Build a buffered channel to pass the batches to worker threads.
	work := make(chan batch, len(batches))

	logger.Debug("core/fanout: initiating %v concurrent workers to process %v items",
		len(batches), len(items))

	for range batches {
		go fanoutWorker(ctx, logger, work, items, results, fn, &wg)
	}

	for _, b := range batches {
		work <- b
	}
	close(work)

	// Block on all worker threads.
	wg.Wait()

	return results
}

func fanoutWorker[I, O any](ctx context.Context, logger *logging.Logger, work <-chan batch,
	items []I, results []Result[O], fn func(context.Context, I) (O, error),
	wg *sync.WaitGroup) {

	// Each worker takes exactly one batch.
	defer wg.Done()

	b, ok := <-work
	if !ok {
		return
	}

	for i := b.start; i < b.end; i++ {
		if err := ctx.Err(); err != nil {
			results[i] = Result[O]{Err: err}
			continue
		}
		v, err := callItem(ctx, i, items[i], fn)
		if errors.Is(err, errItemPanicked) {
			logger.Error("core/fanout: %v", err)
		}
		results[i] = Result[O]{Value: v, Err: err}
	}
}

var errItemPanicked = errors.New("item panicked")

// callItem runs fn on one item, turning a panic into the item's error.
func callItem[I, O any](ctx context.Context, index int, item I,
	fn func(context.Context, I) (O, error)) (v O, err error) {

	defer func() {
		if p := recover(); p != nil {
			var zero O
			v, err = zero, fmt.Errorf("%w at index %d: %v", errItemPanicked, index, p)
		}
	}()
	return fn(ctx, item)
}

// Succeeded returns the inputs whose results carry no error, preserving
// order.
func Succeeded[I, O any](items []I, results []Result[O]) []I {
	var out []I
	for i, r := range results {
		if r.Err == nil {
			out = append(out, items[i])
		}
	}
	return out
}
