// Package workerpool provides a bounded fan-out over a slice of jobs,
// generalized from the teacher's processFilesConcurrently
// (server/cmdHandlers.go): a fixed number of goroutines drain a job
// channel and store each job's error at its index in a shared slice,
// rather than spawning one goroutine per job.
package workerpool

import "runtime"

// Run executes fn for each item in items using at most maxWorkers
// goroutines (capped to len(items), and to runtime.NumCPU()/2 with
// maxWorkers<=0, matching the teacher's default). It returns one error
// per item, in the same order as items, or nil where fn succeeded.
func Run[T any](items []T, maxWorkers int, fn func(T) error) []error {
	n := len(items)
	if n == 0 {
		return nil
	}

	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU() / 2
	}
	if maxWorkers > n {
		maxWorkers = n
	}
	if maxWorkers < 1 {
		maxWorkers = 1
	}

	type job struct {
		index int
		item  T
	}

	jobs := make(chan job, n)
	errs := make([]error, n)
	done := make(chan struct{})

	for w := 0; w < maxWorkers; w++ {
		go func() {
			for j := range jobs {
				errs[j.index] = fn(j.item)
			}
			done <- struct{}{}
		}()
	}

	for i, item := range items {
		jobs <- job{index: i, item: item}
	}
	close(jobs)

	for w := 0; w < maxWorkers; w++ {
		<-done
	}

	return errs
}
