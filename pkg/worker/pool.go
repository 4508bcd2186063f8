package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hbomb79/Siphon/pkg/logger"
)

var (
	ErrPoolNotStarted = errors.New("worker pool is not running")
	ErrPoolStarted    = errors.New("cannot start an already started worker pool")
)

// Task is a unit of blocking work executed by one of the pool's workers.
type Task func() error

// WorkerPool owns a fixed number of workers which pull tasks from a
// shared queue. The size of the pool bounds how many blocking tasks
// (subprocesses, extractor calls) may run at once. The WaitGroup is
// automatically controlled by the WorkerPool.
type WorkerPool struct {
	mu      sync.RWMutex
	workers []Worker
	queue   chan *job
	Wg      sync.WaitGroup
	started bool
}

// NewWorkerPool creates a new WorkerPool with the given number
// of workers. Sizes below one are raised to one.
func NewWorkerPool(size int) *WorkerPool {
	if size < 1 {
		size = 1
	}

	pool := &WorkerPool{workers: make([]Worker, 0, size), queue: make(chan *job)}
	for i := 0; i < size; i++ {
		pool.workers = append(pool.workers, NewWorker(fmt.Sprintf("pool-worker-%d", i), pool.queue))
	}

	return pool
}

// Start cycles through all the workers currently inside the
// WorkerPool and creates a goroutine for each.
//
// Start does NOT block, however consumers can wait on the
// WaitGroup in the pool if they wish.
func (pool *WorkerPool) Start() error {
	pool.mu.Lock()
	defer pool.mu.Unlock()
	if pool.started {
		return ErrPoolStarted
	}

	pool.started = true
	for _, worker := range pool.workers {
		pool.Wg.Add(1)
		go func(wg *sync.WaitGroup, w Worker) {
			defer wg.Done()
			w.Start()
		}(&pool.Wg, worker)
	}

	return nil
}

// Do hands the task to the next free worker and blocks until it has
// finished, returning the task's error. The context only bounds the
// time spent waiting for a free worker: once a worker has accepted the
// task it runs to completion.
func (pool *WorkerPool) Do(ctx context.Context, label string, task Task) error {
	// The read lock is held while handing over so that Close cannot close
	// the queue underneath a pending send.
	pool.mu.RLock()
	if !pool.started {
		pool.mu.RUnlock()
		return ErrPoolNotStarted
	}

	j := &job{label: label, task: task, done: make(chan error, 1)}
	select {
	case pool.queue <- j:
		pool.mu.RUnlock()
	case <-ctx.Done():
		pool.mu.RUnlock()
		return fmt.Errorf("waiting for free worker for %s: %w", label, ctx.Err())
	}

	return <-j.done
}

// Size returns the number of workers in the pool
func (pool *WorkerPool) Size() int { return len(pool.workers) }

// Busy returns the labels of the workers currently executing a task.
func (pool *WorkerPool) Busy() []string {
	busy := make([]string, 0, len(pool.workers))
	for _, w := range pool.workers {
		if w.Status() == Working {
			busy = append(busy, w.Label())
		}
	}

	return busy
}

// Close stops accepting work, waits for running tasks to
// finish and for every worker to exit.
func (pool *WorkerPool) Close() {
	pool.mu.Lock()
	if !pool.started {
		pool.mu.Unlock()
		return
	}
	pool.started = false
	for _, w := range pool.workers {
		w.Close()
	}
	close(pool.queue)
	pool.mu.Unlock()

	if busy := pool.Busy(); len(busy) > 0 {
		workerLogger.Emit(logger.INFO, "Waiting for %d busy worker(s) to finish: %v\n", len(busy), busy)
	}
	pool.Wg.Wait()
}
