// Package parallel provides the chunked worker loop used for per-layer
// convolution and per-tree forest work.
package parallel

import (
	"runtime"
	"sync"

	"github.com/YuminosukeSato/firehazard/pkg/errors"
)

// Parallelize splits [0, items) into one contiguous chunk per CPU core and
// calls fn(start, end) for each chunk concurrently. It returns after every
// chunk has finished.
func Parallelize(items int, fn func(start, end int)) {
	ParallelizeN(items, runtime.NumCPU(), fn)
}

// ParallelizeN is Parallelize with an explicit worker count. workers <= 0
// means runtime.NumCPU().
func ParallelizeN(items, workers int, fn func(start, end int)) {
	if items <= 0 {
		return
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > items {
		workers = items
	}

	// ceiling division
	chunkSize := (items + workers - 1) / workers

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
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
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ForEach calls fn(i) for every i in [0, items) using Parallelize. The
// first non-nil error by index order is returned. A panic in fn is returned
// as an errors.PanicError.
func ForEach(items int, fn func(i int) error) error {
	return ForEachN(items, runtime.NumCPU(), fn)
}

// ForEachN is ForEach with an explicit worker count.
func ForEachN(items, workers int, fn func(i int) error) error {
	if items <= 0 {
		return nil
	}
	errs := make([]error, items)
	ParallelizeN(items, workers, func(start, end int) {
		for i := start; i < end; i++ {
			errs[i] = errors.SafeExecute("parallel.ForEach", func() error { return fn(i) })
		}
	})
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
