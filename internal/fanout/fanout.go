// Package fanout implements the bounded concurrent_map primitive described
// in spec §9 ("Coroutine control flow"): a fan-out collector that accepts
// an iterable of argument tuples, a callable, and a concurrency limit. It
// is grounded on the errgroup.WithContext + wg.SetLimit idiom used
// throughout the teacher codebase (e.g. its bounded block/epoch fan-outs),
// generalized here to gather every result into a disjoint, pre-sized
// output slice rather than racing for a single first response.
package fanout

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Map runs fn once per item in items, with at most concurrency goroutines
// in flight at a time (concurrency <= 0 means unlimited). Each invocation
// writes only to results[idx] (spec §5: "each per-sub-chunk task ... writes
// into a disjoint region of the output"), so the final slice is assembled
// deterministically regardless of completion order. The first error from
// any invocation cancels the shared context and is returned; other
// in-flight invocations are allowed to finish, and Map then returns a nil
// slice, so their results are discarded.
func Map[T, R any](ctx context.Context, items []T, concurrency int, fn func(ctx context.Context, idx int, item T) (R, error)) ([]R, error) {
	results := make([]R, len(items))
	grp, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		grp.SetLimit(concurrency)
	}
	for idx, item := range items {
		idx, item := idx, item
		grp.Go(func() error {
			r, err := fn(gctx, idx, item)
			if err != nil {
				return err
			}
			results[idx] = r
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Each is Map for side-effecting work with no per-item result.
func Each[T any](ctx context.Context, items []T, concurrency int, fn func(ctx context.Context, idx int, item T) error) error {
	_, err := Map(ctx, items, concurrency, func(ctx context.Context, idx int, item T) (struct{}, error) {
		return struct{}{}, fn(ctx, idx, item)
	})
	return err
}
