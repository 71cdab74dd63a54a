package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/linkgraph-crawler/internal/crawljob"
)

func TestQueueEnqueueDequeue(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	result := make(chan crawljob.Task, 1)
	errCh := make(chan error, 1)

	go func() {
		task, err := q.Dequeue(context.Background())
		if err != nil {
			errCh <- err
			return
		}
		result <- task
	}()

	if err := q.Enqueue(context.Background(), crawljob.Task{ID: "task-1"}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	select {
	case err := <-errCh:
		t.Fatalf("Dequeue() error = %v", err)
	case got := <-result:
		if got.ID != "task-1" {
			t.Fatalf("expected task-1, got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("dequeue did not return task")
	}
}

func TestQueueCancelationErrors(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewQueue(1).Dequeue(ctx)
	require.EqualError(t, err, "dequeue canceled: context canceled")

	q := NewQueue(1)
	require.NoError(t, q.Enqueue(context.Background(), crawljob.Task{ID: "primed"}))
	require.EqualError(t, q.Enqueue(ctx, crawljob.Task{}), "enqueue canceled: context canceled")
}

func TestQueueTryEnqueueReportsFull(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	require.NoError(t, q.TryEnqueue(crawljob.Task{ID: "a"}))
	require.ErrorIs(t, q.TryEnqueue(crawljob.Task{ID: "b"}), ErrFull)
	require.Equal(t, 1, q.Len())
}

func TestQueueClose(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	q.Close()
	_, err := q.Dequeue(context.Background())
	require.True(t, errors.Is(err, ErrClosed))
	require.ErrorIs(t, q.Enqueue(context.Background(), crawljob.Task{}), ErrClosed)
	require.ErrorIs(t, q.TryEnqueue(crawljob.Task{}), ErrClosed)
	// Closing twice should be safe.
	q.Close()
}
