package crawler

import (
	"context"
	"strings"
	"sync"
	"time"
)

// visitTracker provides thread-safe visited-key tracking to prevent revisits.
type visitTracker interface {
	MarkIfNew(key string) bool
	Seen(key string) bool
	Len() int
}

type concurrentVisitTracker struct {
	seen  sync.Map
	mu    sync.Mutex
	count int
}

func newConcurrentVisitTracker() *concurrentVisitTracker {
	return &concurrentVisitTracker{}
}

// MarkIfNew stores the key if it has not been seen before and returns true.
func (t *concurrentVisitTracker) MarkIfNew(key string) bool {
	if key == "" {
		return false
	}
	_, loaded := t.seen.LoadOrStore(key, struct{}{})
	if !loaded {
		t.mu.Lock()
		t.count++
		t.mu.Unlock()
	}
	return !loaded
}

// Seen reports whether the key was marked.
func (t *concurrentVisitTracker) Seen(key string) bool {
	_, ok := t.seen.Load(key)
	return ok
}

func (t *concurrentVisitTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// domainKey folds hosts so pacing treats Example.com and example.com alike.
func domainKey(rawURL string) string {
	return strings.ToLower(GetDomain(rawURL))
}

// pauseController abstracts how the crawler waits between requests to one domain.
type pauseController interface {
	Pause(ctx context.Context, delay time.Duration)
}

type timerPauseController struct{}

func (p *timerPauseController) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
