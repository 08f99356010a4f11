// Package workerpool provides a bounded goroutine pool for running
// batch gate evaluations in parallel. A batch judges one findings
// document per application; the pool caps the concurrent runs so a
// large batch cannot exhaust file handles on the baseline and history
// stores.
package workerpool

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool runs submitted tasks on a fixed set of reused workers. Workers
// are spawned lazily on the first submissions, so an empty batch costs
// nothing.
type Pool struct {
	workers int32
	tasks   chan func()
	running int32
	closed  int32
	wg      sync.WaitGroup
}

// New creates a pool with the given number of workers. Zero or
// negative means one worker per CPU.
func New(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Pool{
		workers: int32(workers),
		tasks:   make(chan func(), workers*16),
	}
}

// Submit queues a task for an available worker. When all workers are
// busy the task waits in the queue. Returns false if the pool is
// closed.
func (p *Pool) Submit(task func()) bool {
	if atomic.LoadInt32(&p.closed) == 1 {
		return false
	}

	for {
		running := atomic.LoadInt32(&p.running)
		if running >= p.workers {
			break
		}
		if atomic.CompareAndSwapInt32(&p.running, running, running+1) {
			p.wg.Add(1)
			go p.worker()
			break
		}
	}

	select {
	case p.tasks <- task:
		return true
	default:
		// Queue full: allow up to workers*2 before blocking, so a
		// burst of slow evaluations cannot wedge the submitter.
		for {
			running := atomic.LoadInt32(&p.running)
			if running >= p.workers*2 {
				break
			}
			if atomic.CompareAndSwapInt32(&p.running, running, running+1) {
				p.wg.Add(1)
				go p.worker()
				break
			}
		}
		p.tasks <- task
		return true
	}
}

// worker drains the task queue. A panicking task takes its worker
// down; the worker respawns itself so pool capacity holds for the
// rest of the batch.
func (p *Pool) worker() {
	defer func() {
		if r := recover(); r != nil {
			if atomic.LoadInt32(&p.closed) == 0 {
				// The replacement inherits this worker's running
				// count and WaitGroup slot.
				go p.worker()
				return
			}
		}
		atomic.AddInt32(&p.running, -1)
		p.wg.Done()
	}()

	for task := range p.tasks {
		if task != nil {
			task()
		}
	}
}

// Running returns the current number of live workers.
func (p *Pool) Running() int {
	return int(atomic.LoadInt32(&p.running))
}

// Cap returns the configured worker count.
func (p *Pool) Cap() int {
	return int(atomic.LoadInt32(&p.workers))
}

// Close shuts the pool down, completing all queued tasks first.
// Closing twice is safe.
func (p *Pool) Close() {
	if !atomic.CompareAndSwapInt32(&p.closed, 0, 1) {
		return
	}
	close(p.tasks)
	p.wg.Wait()
}

// ParallelFor runs fn for each index from 0 to n-1 on the pool and
// blocks until every iteration finishes. On a closed pool no
// iteration runs and the call returns immediately.
func (p *Pool) ParallelFor(n int, fn func(i int)) {
	if n <= 0 {
		return
	}

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		idx := i
		if !p.Submit(func() {
			defer wg.Done()
			fn(idx)
		}) {
			wg.Done()
		}
	}
	wg.Wait()
}
