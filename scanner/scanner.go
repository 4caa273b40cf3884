// Package scanner implements bounded-concurrency fan-out/fan-in over a
// slice of tasks, generalizing the semaphore-and-WaitGroup upload pattern
// used elsewhere in this codebase's object-store client to an arbitrary
// handler type via generics.
package scanner

import (
	"context"
	"sync"
	"sync/atomic"
)

// DefaultConcurrency is used by callers that do not have a specific
// concurrency requirement.
const DefaultConcurrency = 5

// Scan runs handler over every item with at most concurrency handlers
// in flight at once; remaining items wait their turn. If any handler
// returns an error, outstanding (already-dispatched) handlers are allowed
// to finish but no new handler is started; the first failure in input
// order is returned alongside whatever results were produced before it
// was observed. Results are always returned in input order.
func Scan[T any, R any](ctx context.Context, items []T, concurrency int, handler func(context.Context, T) (R, error)) ([]R, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	results := make([]R, len(items))
	errs := make([]error, len(items))
	var failed int32

	for i, item := range items {
		wg.Add(1)
		go func(i int, item T) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			if atomic.LoadInt32(&failed) != 0 {
				return
			}

			r, err := handler(ctx, item)
			if err != nil {
				atomic.StoreInt32(&failed, 1)
				errs[i] = err
				return
			}
			results[i] = r
		}(i, item)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// ScanAndFlatten behaves like Scan but handler produces a slice per item;
// the successful results are concatenated in input order.
func ScanAndFlatten[T any, R any](ctx context.Context, items []T, concurrency int, handler func(context.Context, T) ([]R, error)) ([]R, error) {
	perItem, err := Scan(ctx, items, concurrency, handler)
	flat := make([]R, 0, len(perItem))
	for _, rs := range perItem {
		flat = append(flat, rs...)
	}
	return flat, err
}
