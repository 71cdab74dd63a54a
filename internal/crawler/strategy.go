package crawler

import (
	"context"
	"sync"

	"github.com/JakeFAU/linkgraph-crawler/internal/metrics"
)

// traverser walks the frontier starting from the seeds.
type traverser interface {
	traverse(ctx context.Context, e *Engine, seeds []frontierItem)
}

func newTraverser(s Strategy) (traverser, error) {
	parsed, err := ParseStrategy(string(s))
	if err != nil {
		return nil, err
	}
	if parsed == StrategyDepthFirst {
		return depthFirst{}, nil
	}
	return breadthFirst{}, nil
}

// breadthFirst runs a fixed pool of workers over a shared FIFO frontier.
type breadthFirst struct{}

func (breadthFirst) traverse(ctx context.Context, e *Engine, seeds []frontierItem) {
	if len(seeds) == 0 {
		return
	}
	frontier := newFIFOFrontier()
	stop := context.AfterFunc(ctx, frontier.Close)
	defer stop()

	for _, seed := range seeds {
		if frontier.Put(seed) {
			e.run.queued.Add(1)
		}
	}
	e.mirror()

	var wg sync.WaitGroup
	for range e.settings.MaxConcurrentRequests {
		wg.Add(1)
		go func() {
			defer wg.Done()
			metrics.IncActiveWorkers()
			defer metrics.DecActiveWorkers()
			for {
				item, ok := frontier.Get()
				if !ok {
					return
				}
				if pageID, visited := e.visit(ctx, item); visited {
					for _, next := range e.expand(ctx, pageID, item) {
						if frontier.Put(next) {
							e.run.queued.Add(1)
						}
					}
				}
				e.mirror()
				frontier.Done()
			}
		}()
	}
	wg.Wait()
}

// depthFirst walks an explicit LIFO stack on the calling goroutine.
type depthFirst struct{}

func (depthFirst) traverse(ctx context.Context, e *Engine, seeds []frontierItem) {
	stack := make([]frontierItem, 0, len(seeds))
	for i := len(seeds) - 1; i >= 0; i-- {
		stack = append(stack, seeds[i])
	}
	e.run.queued.Add(int64(len(seeds)))
	e.mirror()

	for len(stack) > 0 {
		if ctx.Err() != nil {
			return
		}
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if pageID, visited := e.visit(ctx, item); visited {
			next := e.expand(ctx, pageID, item)
			// Reverse push so the first link in the document is explored first.
			for i := len(next) - 1; i >= 0; i-- {
				stack = append(stack, next[i])
			}
			e.run.queued.Add(int64(len(next)))
		}
		e.mirror()
	}
}
