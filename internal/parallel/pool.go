// Package parallel runs blocking provider work (database reads, network
// round trips, image decoding) on a fixed set of goroutines.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Stats contains pool counters.
type Stats struct {
	Submitted uint64
	Completed uint64
	// Spilled counts items run on an extra goroutine because every queue
	// was full.
	Spilled uint64
}

// WorkerPool is a pool of goroutines for tile fetching and decoding.
//
// The pool distributes work items across multiple workers, each with their own
// queue. Workers can steal work from other workers when their own queue is empty.
// This helps balance load when some tiles are slower to fetch than others.
//
// Submit never blocks: when every queue is full the item runs on its own
// goroutine, so callers on the render thread are not stalled by slow I/O.
//
// Thread safety: WorkerPool is safe for concurrent use.
type WorkerPool struct {
	// workers is the number of worker goroutines.
	workers int

	// workQueues holds per-worker work queues.
	// Each worker primarily pulls from its own queue but can steal from others.
	workQueues []chan func()

	// done signals workers to stop.
	done chan struct{}

	// wg waits for workers and spilled items.
	wg sync.WaitGroup

	// mu orders Submit against Close so no item is queued after the
	// workers drained.
	mu      sync.RWMutex
	running bool

	submitted atomic.Uint64
	completed atomic.Uint64
	spilled   atomic.Uint64
}

// NewWorkerPool creates a new worker pool with the specified number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
// The pool starts immediately and workers begin waiting for work.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	// A visible tile set is a few hundred requests at most.
	queueSize := max(workers*16, 64)

	p := &WorkerPool{
		workers:    workers,
		workQueues: make([]chan func(), workers),
		done:       make(chan struct{}),
		running:    true,
	}
	for i := range workers {
		p.workQueues[i] = make(chan func(), queueSize)
	}

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

// worker is the main loop for each worker goroutine.
func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	myQueue := p.workQueues[id]

	for {
		select {
		case <-p.done:
			// Drain remaining work before exiting
			p.drainQueue(myQueue)
			return

		case work := <-myQueue:
			p.run(work)

		default:
			// Try to steal work from another worker
			if stolen := p.steal(id); stolen != nil {
				p.run(stolen)
				continue
			}
			// No work available anywhere, block on own queue
			select {
			case <-p.done:
				p.drainQueue(myQueue)
				return
			case work := <-myQueue:
				p.run(work)
			}
		}
	}
}

func (p *WorkerPool) run(work func()) {
	if work == nil {
		return
	}
	defer p.completed.Add(1)
	work()
}

// drainQueue executes all remaining work in a queue.
func (p *WorkerPool) drainQueue(queue chan func()) {
	for {
		select {
		case work := <-queue:
			p.run(work)
		default:
			return
		}
	}
}

// steal attempts to take work from another worker's queue.
// Returns nil if no work is available.
func (p *WorkerPool) steal(myID int) func() {
	for i := range p.workers {
		if i == myID {
			continue
		}
		select {
		case work := <-p.workQueues[i]:
			return work
		default:
		}
	}
	return nil
}

// Submit queues fn on the worker with the shortest queue. It reports false
// when the pool is closed or fn is nil; fn is then never run.
func (p *WorkerPool) Submit(fn func()) bool {
	if fn == nil {
		return false
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.running {
		return false
	}
	p.submitted.Add(1)

	// Find worker with shortest queue (simple load balancing)
	minIdx := 0
	minLen := len(p.workQueues[0])
	for i := 1; i < p.workers; i++ {
		if qLen := len(p.workQueues[i]); qLen < minLen {
			minLen = qLen
			minIdx = i
		}
	}

	select {
	case p.workQueues[minIdx] <- fn:
	default:
		p.spilled.Add(1)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.run(fn)
		}()
	}
	return true
}

// Close gracefully shuts down the pool.
// It stops accepting new work, waits for all queued work to complete,
// and then stops all workers.
// Close is safe to call multiple times.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.done)
	p.mu.Unlock()

	p.wg.Wait()
}

// Workers returns the number of workers in the pool.
func (p *WorkerPool) Workers() int {
	return p.workers
}

// IsRunning returns true if the pool is still accepting work.
func (p *WorkerPool) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// QueuedWork returns the total number of work items currently queued.
// This is an approximation as queues can change while iterating.
func (p *WorkerPool) QueuedWork() int {
	total := 0
	for _, q := range p.workQueues {
		total += len(q)
	}
	return total
}

// Stats returns a snapshot of the pool counters.
func (p *WorkerPool) Stats() Stats {
	return Stats{
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Spilled:   p.spilled.Load(),
	}
}
