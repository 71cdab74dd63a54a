package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/linkgraph-crawler/internal/crawler"
)

// ErrTaskNotFound is returned when no task is registered under an ID.
var ErrTaskNotFound = errors.New("task not found")

// TaskStore is the in-process registry of crawl task statuses.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[string]*crawler.TaskStatus
}

// NewTaskStore constructs an empty TaskStore.
func NewTaskStore() *TaskStore {
	return &TaskStore{tasks: make(map[string]*crawler.TaskStatus)}
}

// Create registers status under id.
func (s *TaskStore) Create(_ context.Context, id string, status *crawler.TaskStatus) error {
	if status == nil {
		return errors.New("task status is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[id]; exists {
		return fmt.Errorf("task %s already exists", id)
	}
	s.tasks[id] = status
	return nil
}

// Get returns the live status registered under id.
func (s *TaskStore) Get(_ context.Context, id string) (*crawler.TaskStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, ErrTaskNotFound)
	}
	return status, nil
}

// Delete removes id from the registry. Unknown ids are ignored.
func (s *TaskStore) Delete(_ context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
}

// Len reports the number of registered tasks.
func (s *TaskStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}
