// Package worker runs queued crawl tasks.
package worker

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/JakeFAU/linkgraph-crawler/internal/crawler"
	"github.com/JakeFAU/linkgraph-crawler/internal/crawljob"
	"github.com/JakeFAU/linkgraph-crawler/internal/metrics"
)

// Source yields queued tasks.
type Source interface {
	Dequeue(ctx context.Context) (crawljob.Task, error)
}

// Runner executes a crawl request.
type Runner interface {
	CrawlWebsite(ctx context.Context, req crawljob.Request) (crawler.Stats, error)
}

// Worker consumes tasks and runs them one at a time.
type Worker struct {
	id     int
	source Source
	runner Runner
	closed error
	logger *zap.Logger
}

// New constructs a Worker. closedErr is the Source error that means no more
// tasks will arrive; nil keeps the worker polling until ctx ends.
func New(id int, source Source, runner Runner, closedErr error, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		id:     id,
		source: source,
		runner: runner,
		closed: closedErr,
		logger: logger.With(zap.Int("worker", id)),
	}
}

// Run blocks, consuming tasks until the context finishes or the source closes.
func (w *Worker) Run(ctx context.Context) {
	for {
		task, err := w.source.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if w.closed != nil && errors.Is(err, w.closed) {
				w.logger.Debug("task source closed")
				return
			}
			w.logger.Error("dequeue failed", zap.Error(err))
			continue
		}
		w.process(ctx, task)
	}
}

func (w *Worker) process(ctx context.Context, task crawljob.Task) {
	w.logger.Info("task started", zap.String("task_id", task.ID), zap.Strings("seeds", task.Request.SeedURLs))
	req := task.Request
	if task.Status != nil {
		req.Status = task.Status
	}

	stats, err := w.runner.CrawlWebsite(ctx, req)
	if err != nil {
		metrics.ObserveTask(string(crawler.TaskFailed))
		w.logger.Error("task failed", zap.String("task_id", task.ID), zap.Error(err))
		return
	}
	metrics.ObserveTask(string(crawler.TaskCompleted))
	w.logger.Info("task completed",
		zap.String("task_id", task.ID),
		zap.Int("urls_crawled", stats.URLsCrawled),
		zap.Int("urls_queued", stats.URLsQueued),
		zap.Int("errors", stats.Errors),
		zap.Duration("duration", stats.Duration),
	)
}
