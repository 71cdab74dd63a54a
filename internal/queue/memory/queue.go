// Package memory provides the in-process crawl task queue.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/linkgraph-crawler/internal/crawljob"
)

var (
	// ErrClosed is returned once the queue has been closed.
	ErrClosed = errors.New("queue closed")
	// ErrFull is returned by TryEnqueue when no capacity remains.
	ErrFull = errors.New("queue full")
)

// Queue is a bounded in-memory queue with context-aware operations.
// Tasks still buffered at Close are dropped.
type Queue struct {
	ch        chan crawljob.Task
	done      chan struct{}
	closeOnce sync.Once
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{
		ch:   make(chan crawljob.Task, capacity),
		done: make(chan struct{}),
	}
}

// Enqueue pushes a task, blocking until there is room, the queue closes or ctx ends.
func (q *Queue) Enqueue(ctx context.Context, task crawljob.Task) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case <-q.done:
		return ErrClosed
	case q.ch <- task:
		return nil
	}
}

// TryEnqueue pushes a task without blocking.
func (q *Queue) TryEnqueue(task crawljob.Task) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}
	select {
	case q.ch <- task:
		return nil
	default:
		return ErrFull
	}
}

// Dequeue pops the next task, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (crawljob.Task, error) {
	select {
	case <-ctx.Done():
		return crawljob.Task{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case <-q.done:
		return crawljob.Task{}, ErrClosed
	case task := <-q.ch:
		return task, nil
	}
}

// Len reports the number of buffered tasks.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops the queue. Closing twice is safe.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.done) })
}
