// Package parallel provides the data-parallel helpers used for grid-search
// candidates, forest trees and row-wise prediction.
//
// Workers only ever receive index ranges. Callers write results into slots
// indexed by item, so the outcome never depends on scheduling order.
package parallel

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/YuminosukeSato/pdbench/pkg/errors"
)

// Workers returns the number of workers to use for n items when the caller
// asked for nJobs. nJobs <= 0 means one worker per CPU core.
func Workers(n, nJobs int) int {
	w := nJobs
	if w <= 0 {
		w = runtime.NumCPU()
	}
	if w > n {
		w = n
	}
	if w < 1 {
		w = 1
	}
	return w
}

// ParallelizeN divides items into contiguous ranges, one per worker, and runs
// fn(start, end) for each range concurrently. nJobs <= 0 uses every CPU core.
//
// A panic in a worker is recovered there and re-raised on the calling
// goroutine as a *errors.PanicError once every worker has finished, so a
// Recover or SafeExecute around the call still catches it.
func ParallelizeN(items, nJobs int, fn func(start, end int)) {
	if items <= 0 {
		return
	}
	numWorkers := Workers(items, nJobs)
	if numWorkers == 1 {
		fn(0, items)
		return
	}

	// ceiling division
	chunkSize := (items + numWorkers - 1) / numWorkers

	var (
		wg        sync.WaitGroup
		panicOnce sync.Once
		panicked  *errors.PanicError
	)
	for i := 0; i < numWorkers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > items {
			end = items
		}
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			var err error
			defer func() {
				var pe *errors.PanicError
				if errors.As(err, &pe) {
					panicOnce.Do(func() { panicked = pe })
				}
			}()
			defer errors.Recover(&err, fmt.Sprintf("parallel range [%d, %d)", s, e))
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
	if panicked != nil {
		panic(panicked)
	}
}

// ForEach calls fn(i) for every i in [0, items) using nJobs workers and
// returns the error of the lowest failing index, or nil. A panic in fn(i)
// becomes a *errors.PanicError in slot i.
func ForEach(items, nJobs int, fn func(i int) error) error {
	if items <= 0 {
		return nil
	}
	errs := make([]error, items)
	ParallelizeN(items, nJobs, func(start, end int) {
		for i := start; i < end; i++ {
			errs[i] = errors.SafeExecute(fmt.Sprintf("parallel item %d", i), func() error {
				return fn(i)
			})
		}
	})
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
