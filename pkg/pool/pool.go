package pool

import (
	"context"
	"sync"
)

// WorkerFunc processes one item and may return an error.
type WorkerFunc[T any] func(ctx context.Context, item T) error

// DoneFunc is called after each item is processed, from the worker goroutine.
// Implementations must be safe for concurrent use.
type DoneFunc[T any] func(item T, err error)

// Run processes items with numWorkers goroutines and returns every error the
// workers produced. Cancelling ctx stops feeding new items; items already
// handed to a worker finish. onDone may be nil.
func Run[T any](ctx context.Context, items []T, numWorkers int, workerFunc WorkerFunc[T], onDone DoneFunc[T]) []error {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if numWorkers > len(items) && len(items) > 0 {
		numWorkers = len(items)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		allErrors []error
	)
	taskChan := make(chan T)

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range taskChan {
				err := workerFunc(ctx, item)
				if err != nil {
					mu.Lock()
					allErrors = append(allErrors, err)
					mu.Unlock()
				}
				if onDone != nil {
					onDone(item, err)
				}
			}
		}()
	}

OUT:
	for _, item := range items {
		select {
		case taskChan <- item:
		case <-ctx.Done():
			break OUT
		}
	}
	close(taskChan)
	wg.Wait()

	return allErrors
}
