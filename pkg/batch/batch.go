// Package batch runs a per-item operation over a slice with a concurrency
// ceiling, completing every item regardless of individual failures.
package batch

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Run executes fn over every item with at most limit invocations in flight at
// once. It returns only after all items have settled. The returned slice maps
// item index to that item's error (nil on success); a failing item never
// cancels its siblings; the caller decides whether any error is fatal.
//
// Completion order is unspecified: items take the first available slot.
func Run[T any](ctx context.Context, items []T, limit int, fn func(ctx context.Context, item T) error) []error {
	if limit < 1 {
		limit = 1
	}

	errs := make([]error, len(items))
	sem := semaphore.NewWeighted(int64(limit))
	var wg sync.WaitGroup

	for i, item := range items {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context cancelled while waiting for a slot; the remaining
			// items are marked rather than silently skipped.
			errs[i] = err
			continue
		}

		wg.Add(1)
		go func(i int, item T) {
			defer wg.Done()
			defer sem.Release(1)
			errs[i] = fn(ctx, item)
		}(i, item)
	}

	wg.Wait()
	return errs
}

// FirstError returns the first non-nil error in errs, or nil.
func FirstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
