package dispatch

import (
	"context"
	"sync"
)

// Pool runs size Worker goroutines against the same Queue, each processing
// one Task Runner invocation at a time — the "small bounded number"
// concurrency bound, using goroutines as the semaphore rather than a
// separate limiter.
type Pool struct {
	size   int
	worker *Worker
}

// NewPool constructs a Pool of size workers, all draining worker's queue.
func NewPool(size int, worker *Worker) *Pool {
	return &Pool{size: size, worker: worker}
}

// Run blocks until ctx is cancelled, running size workers concurrently.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup

	for range p.size {
		wg.Add(1)

		go func() {
			defer wg.Done()

			p.worker.Run(ctx)
		}()
	}

	wg.Wait()
}
