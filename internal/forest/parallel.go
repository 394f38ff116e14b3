package forest

import (
	"runtime"
	"sync"
)

// buildItem identifies one tree to grow.
type buildItem struct {
	Seq int
}

// buildResult holds a grown tree.
type buildResult struct {
	Seq  int
	Tree *Tree
}

// parallelBuild grows trees using a pool of workers.
// Results are sent to the returned channel in arrival order (not sequence order).
// Use orderedCollect to consume results in sequence-number order.
// If workers is 0, runtime.NumCPU() is used.
func parallelBuild(items <-chan buildItem, workers int, build func(buildItem) *Tree) <-chan buildResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make(chan buildResult, 2*workers)

	var wg sync.WaitGroup
	wg.Add(workers)

	for range workers {
		go func() {
			defer wg.Done()
			for item := range items {
				results <- buildResult{Seq: item.Seq, Tree: build(item)}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// orderedCollect calls fn for each result in sequence-number order.
// It buffers out-of-order results in a pending map and emits them
// as soon as the next expected sequence number is available.
// Blocks until the results channel is closed.
func orderedCollect(results <-chan buildResult, fn func(buildResult) error) error {
	pending := make(map[int]buildResult)
	nextSeq := 0

	for r := range results {
		pending[r.Seq] = r

		for {
			rr, ok := pending[nextSeq]
			if !ok {
				break
			}
			delete(pending, nextSeq)
			nextSeq++
			if err := fn(rr); err != nil {
				// Drain remaining results to unblock workers.
				for range results {
				}
				return err
			}
		}
	}

	return nil
}
