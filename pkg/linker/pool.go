package linker

import "sync"

// workerPool runs a fixed number of goroutines draining a shared job
// channel, the shape spec.md §5 asks for ("a bounded worker pool"). No
// pass in this core calls it: Resolver.ResolveAll uses runParallel and
// LiveTracer.Run starts its own channel workers. No x/sync errgroup or semaphore
// appears anywhere in the retrieval pack, so this is the same
// channel+WaitGroup pattern Go's own standard library documentation
// uses for worker pools.
type workerPool struct {
	jobs chan func()
	wg   sync.WaitGroup
}

// newWorkerPool starts n workers (n<1 is treated as 1) draining jobs
// until the pool is closed.
func newWorkerPool(n int) *workerPool {
	if n < 1 {
		n = 1
	}
	p := &workerPool{jobs: make(chan func())}
	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				job()
			}
		}()
	}
	return p
}

// Submit enqueues job, blocking if every worker is busy.
func (p *workerPool) Submit(job func()) {
	p.jobs <- job
}

// Close stops accepting jobs and waits for every in-flight job to
// finish.
func (p *workerPool) Close() {
	close(p.jobs)
	p.wg.Wait()
}

// runParallel runs fn(item) for every item, across a pool of n workers,
// and waits for all of them to finish. Used by passes that fan out
// per-object work with no producer/consumer relationship between the
// items (e.g. Resolver.ResolveAll).
func runParallel[T any](n int, items []T, fn func(T)) {
	if len(items) == 0 {
		return
	}
	if n < 1 {
		n = 1
	}
	if n > len(items) {
		n = len(items)
	}

	var wg sync.WaitGroup
	ch := make(chan T)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			for item := range ch {
				fn(item)
			}
		}()
	}
	for _, item := range items {
		ch <- item
	}
	close(ch)
	wg.Wait()
}
