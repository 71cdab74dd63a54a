package crawler

import "sync"

type frontierItem struct {
	url    string
	depth  int
	isSeed bool
}

// fifoFrontier is an unbounded FIFO queue that tracks unfinished items.
// It closes itself once every item put has been marked done, which is the
// signal for breadth-first workers to exit.
type fifoFrontier struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []frontierItem
	pending int
	closed  bool
}

func newFIFOFrontier() *fifoFrontier {
	f := &fifoFrontier{}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Put appends an item. It returns false once the frontier is closed.
func (f *fifoFrontier) Put(item frontierItem) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	f.items = append(f.items, item)
	f.pending++
	f.cond.Signal()
	return true
}

// Get blocks until an item is available or the frontier closes.
func (f *fifoFrontier) Get() (frontierItem, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for len(f.items) == 0 && !f.closed {
		f.cond.Wait()
	}
	if f.closed {
		return frontierItem{}, false
	}
	item := f.items[0]
	f.items[0] = frontierItem{}
	f.items = f.items[1:]
	return item, true
}

// Done marks one item returned by Get as finished.
func (f *fifoFrontier) Done() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending > 0 {
		f.pending--
	}
	if f.pending == 0 {
		f.closed = true
		f.cond.Broadcast()
	}
}

// Close wakes all waiters and discards remaining items.
func (f *fifoFrontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.items = nil
	f.cond.Broadcast()
}

// Len reports the number of items waiting to be taken.
func (f *fifoFrontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}
