// Package dispatcher manages worker fan-out over the task queue.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/linkgraph-crawler/internal/crawljob"
	"github.com/JakeFAU/linkgraph-crawler/internal/worker"
)

// Queue is the task queue the dispatcher feeds and drains.
type Queue interface {
	worker.Source
	TryEnqueue(task crawljob.Task) error
	Close()
}

// Dispatcher fans out queued tasks to a pool of workers.
type Dispatcher struct {
	queue   Queue
	workers []*worker.Worker
}

// New creates a Dispatcher with n workers running tasks through runner.
// closedErr is the queue's closed sentinel; workers stop on it.
func New(queue Queue, runner worker.Runner, n int, closedErr error, logger *zap.Logger) *Dispatcher {
	if n <= 0 {
		n = 1
	}
	workers := make([]*worker.Worker, n)
	for i := range workers {
		workers[i] = worker.New(i+1, queue, runner, closedErr, logger)
	}
	return &Dispatcher{queue: queue, workers: workers}
}

// Workers reports the pool size.
func (d *Dispatcher) Workers() int {
	return len(d.workers)
}

// Run starts all workers and blocks until the context finishes. The queue
// is closed on return.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	<-ctx.Done()
	d.queue.Close()
	wg.Wait()
}

// Submit hands a task to the queue without blocking.
func (d *Dispatcher) Submit(task crawljob.Task) error {
	if err := d.queue.TryEnqueue(task); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}
