// Package workerpool distributes batch work across a fixed number of
// concurrently executing workers.
//
// Two distribution strategies are provided. Chunked hands each worker one
// contiguous run of items and invokes the task once per run; it suits tasks
// that hold an expensive session open while iterating their items (one
// browser/export session per worker). RoundRobin interleaves items across
// workers and applies the task to each item independently.
package workerpool

import (
	"fmt"

	"golang.org/x/sync/errgroup"
)

// ChunkFunc processes one contiguous bucket of items and returns a single
// result for the whole bucket.
type ChunkFunc[T, R any] func(items []T) (R, error)

// ItemFunc processes a single item.
type ItemFunc[T, R any] func(item T) (R, error)

// Chunked splits items into workers contiguous buckets and runs fn once per
// bucket concurrently. Bucket sizes differ by at most one: the first
// len(items) mod workers buckets get the extra item. Results are returned in
// bucket order once every bucket has run.
//
// If any bucket's fn returns an error, the first such error is returned and
// the results slice is nil. Running workers are not cancelled; their
// outcomes are simply unobserved by the caller.
func Chunked[T, R any](items []T, workers int, fn ChunkFunc[T, R]) ([]R, error) {
	if workers < 1 {
		return nil, fmt.Errorf("workerpool: workers must be >= 1, got %d", workers)
	}

	buckets := splitChunks(items, workers)
	results := make([]R, len(buckets))

	var g errgroup.Group
	for i, bucket := range buckets {
		g.Go(func() error {
			r, err := fn(bucket)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// RoundRobin assigns item i to worker i mod workers and applies fn to each
// item. Each worker processes its own items sequentially; workers run
// concurrently. Results are returned grouped by worker, workers in order,
// and within one worker in item order.
//
// Error semantics match Chunked: the first worker error is returned after
// all workers finish and no partial results are merged.
func RoundRobin[T, R any](items []T, workers int, fn ItemFunc[T, R]) ([]R, error) {
	if workers < 1 {
		return nil, fmt.Errorf("workerpool: workers must be >= 1, got %d", workers)
	}

	buckets := splitRoundRobin(items, workers)
	perWorker := make([][]R, len(buckets))

	var g errgroup.Group
	for i, bucket := range buckets {
		g.Go(func() error {
			out := make([]R, 0, len(bucket))
			for _, item := range bucket {
				r, err := fn(item)
				if err != nil {
					return err
				}
				out = append(out, r)
			}
			perWorker[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var results []R
	for _, out := range perWorker {
		results = append(results, out...)
	}
	return results, nil
}

// splitChunks divides items into workers contiguous buckets. The first
// len(items) mod workers buckets receive one extra item so sizes differ by
// at most one. Buckets may be empty when there are more workers than items.
func splitChunks[T any](items []T, workers int) [][]T {
	base := len(items) / workers
	remainder := len(items) % workers

	buckets := make([][]T, workers)
	start := 0
	for i := range workers {
		size := base
		if i < remainder {
			size++
		}
		buckets[i] = items[start : start+size]
		start += size
	}
	return buckets
}

// splitRoundRobin deals items into workers buckets like a deck of cards.
func splitRoundRobin[T any](items []T, workers int) [][]T {
	buckets := make([][]T, workers)
	for i, item := range items {
		buckets[i%workers] = append(buckets[i%workers], item)
	}
	return buckets
}
