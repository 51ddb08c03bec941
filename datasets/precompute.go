package datasets

import (
	"fmt"
	"runtime"
	"sync"
)

// Precompute reads every example of ds into memory. Rows are parsed by a small
// worker pool; each worker writes directly into the result slot of its index,
// so the returned order is the dataset order regardless of scheduling.
// workers <= 0 uses runtime.NumCPU().
func Precompute(ds Dataset, workers int) ([]Example, error) {
	n := ds.Len()
	out := make([]Example, n)
	if n == 0 {
		return out, nil
	}

	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers <= 0 {
		workers = 1
	}
	if workers > n {
		workers = n
	}

	jobs := make(chan int, n)
	errCh := make(chan error, workers)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for idx := range jobs {
				ex, err := ds.Example(idx)
				if err != nil {
					// report the first error from this worker and stop
					errCh <- fmt.Errorf("example %d: %w", idx, err)
					return
				}
				out[idx] = ex
			}
		}()
	}

	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	close(errCh)

	if err, ok := <-errCh; ok {
		return nil, err
	}
	return out, nil
}

// Labels returns the label ids of examples in order.
func Labels(examples []Example) []int {
	out := make([]int, len(examples))
	for i, ex := range examples {
		out[i] = ex.Label
	}
	return out
}
