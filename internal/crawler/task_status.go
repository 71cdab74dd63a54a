package crawler

import (
	"sync"
	"time"
)

// TaskState is the lifecycle state of a crawl task.
type TaskState string

// Task states reported to pollers.
const (
	TaskStarting  TaskState = "starting"
	TaskRunning   TaskState = "running"
	TaskCompleted TaskState = "completed"
	TaskFailed    TaskState = "failed"
)

// TaskStatus is a mutable progress record updated in place while a crawl runs.
// It is safe for concurrent use.
type TaskStatus struct {
	mu          sync.RWMutex
	taskID      string
	state       TaskState
	seedURLs    []string
	urlsCrawled int
	urlsQueued  int
	errors      []string
	startTime   time.Time
	finishTime  time.Time
	finished    bool
	failure     string
}

// TaskSnapshot is a point-in-time copy of a TaskStatus.
type TaskSnapshot struct {
	TaskID          string     `json:"task_id,omitempty"`
	Status          TaskState  `json:"status"`
	SeedURLs        []string   `json:"seed_urls"`
	URLsCrawled     int        `json:"urls_crawled"`
	TotalURLsQueued int        `json:"total_urls_queued"`
	Errors          []string   `json:"errors"`
	StartTime       time.Time  `json:"start_time"`
	FinishTime      *time.Time `json:"finish_time,omitempty"`
	Finished        bool       `json:"finished"`
	Failure         string     `json:"failure,omitempty"`
}

// NewTaskStatus returns a record in the starting state.
func NewTaskStatus(taskID string, seedURLs []string, start time.Time) *TaskStatus {
	return &TaskStatus{
		taskID:    taskID,
		state:     TaskStarting,
		seedURLs:  append([]string(nil), seedURLs...),
		startTime: start,
	}
}

// MarkRunning moves the task into the running state.
func (s *TaskStatus) MarkRunning() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = TaskRunning
}

// Update mirrors run counters into the record.
func (s *TaskStatus) Update(crawled, queued int, errs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.urlsCrawled = crawled
	s.urlsQueued = queued
	s.errors = append(s.errors[:0], errs...)
}

// Complete marks the task finished successfully.
func (s *TaskStatus) Complete(at time.Time) {
	s.finish(TaskCompleted, "", at)
}

// Fail marks the task finished with a run-level failure.
func (s *TaskStatus) Fail(reason string, at time.Time) {
	s.finish(TaskFailed, reason, at)
}

func (s *TaskStatus) finish(state TaskState, reason string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.failure = reason
	s.finished = true
	s.finishTime = at
}

// State returns the current lifecycle state.
func (s *TaskStatus) State() TaskState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Snapshot copies the record for serialization.
func (s *TaskStatus) Snapshot() TaskSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := TaskSnapshot{
		TaskID:          s.taskID,
		Status:          s.state,
		SeedURLs:        append([]string{}, s.seedURLs...),
		URLsCrawled:     s.urlsCrawled,
		TotalURLsQueued: s.urlsQueued,
		Errors:          append([]string{}, s.errors...),
		StartTime:       s.startTime,
		Finished:        s.finished,
		Failure:         s.failure,
	}
	if s.finished {
		ft := s.finishTime
		snap.FinishTime = &ft
	}
	return snap
}
