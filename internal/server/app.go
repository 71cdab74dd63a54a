// Package server assembles the crawler service and runs it until shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/linkgraph-crawler/internal/api"
	"github.com/JakeFAU/linkgraph-crawler/internal/clock/system"
	"github.com/JakeFAU/linkgraph-crawler/internal/config"
	"github.com/JakeFAU/linkgraph-crawler/internal/crawler"
	"github.com/JakeFAU/linkgraph-crawler/internal/crawljob"
	"github.com/JakeFAU/linkgraph-crawler/internal/dispatcher"
	"github.com/JakeFAU/linkgraph-crawler/internal/id/uuid"
	queuememory "github.com/JakeFAU/linkgraph-crawler/internal/queue/memory"
	"github.com/JakeFAU/linkgraph-crawler/internal/storage"
	storememory "github.com/JakeFAU/linkgraph-crawler/internal/storage/memory"
)

const readHeaderTimeout = 5 * time.Second

// Option customizes Build.
type Option func(*crawljob.Options)

// WithFetchers replaces the fetcher factory used for every run.
func WithFetchers(f crawljob.FetcherFactory) Option {
	return func(o *crawljob.Options) { o.Fetchers = f }
}

// WithResolver replaces the DNS pre-check.
func WithResolver(r crawler.Resolver) Option {
	return func(o *crawljob.Options) { o.Resolver = r }
}

// App contains the application's dependencies.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	backend  *storage.Backend
	service  *crawljob.Service
	tasks    *storememory.TaskStore
	queue    *queuememory.Queue
	dispatch *dispatcher.Dispatcher
	api      *api.Server
}

// Build opens the configured store and wires the crawl service, task queue,
// workers and HTTP API.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("building application dependencies",
		zap.String("addr", cfg.Server.Addr),
		zap.String("store", cfg.Store.Driver),
		zap.Int("workers", cfg.Jobs.Workers),
	)

	backend, err := storage.Open(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}

	clock := system.New()
	svcOpts := crawljob.Options{
		Defaults:          cfg.CrawlSettings(),
		Store:             backend.Store,
		Clock:             clock,
		MarkdownCacheSize: cfg.Markdown.CacheSize,
		FallbackDNS:       cfg.Crawler.FallbackDNS,
	}
	for _, opt := range opts {
		opt(&svcOpts)
	}
	service, err := crawljob.NewService(svcOpts, logger)
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("crawl service init failed: %w", err)
	}

	tasks := storememory.NewTaskStore()
	queue := queuememory.NewQueue(cfg.Jobs.QueueSize)
	dispatch := dispatcher.New(queue, service, cfg.Jobs.Workers, queuememory.ErrClosed, logger)
	apiServer := api.NewServer(api.Options{
		Tasks:     tasks,
		Submitter: dispatch,
		Crawls:    service,
		Pages:     backend.Store,
		IDs:       uuid.New(),
		Clock:     clock,
		Config:    cfg,
	}, logger)

	return &App{
		cfg:      cfg,
		logger:   logger,
		backend:  backend,
		service:  service,
		tasks:    tasks,
		queue:    queue,
		dispatch: dispatch,
		api:      apiServer,
	}, nil
}

// Handler returns the HTTP API handler.
func (a *App) Handler() http.Handler {
	return a.api.Handler()
}

// Service returns the crawl service.
func (a *App) Service() *crawljob.Service {
	return a.service
}

// Run listens on the configured address and blocks until ctx is canceled or
// SIGINT/SIGTERM arrives.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.Addr)
	if err != nil {
		_ = a.Close()
		return fmt.Errorf("listen %s: %w", a.cfg.Server.Addr, err)
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.Serve(ctx, ln)
}

// Serve runs the workers and the HTTP server on ln until ctx ends, then
// shuts both down and closes the store.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.api.Handler(),
		ReadTimeout:       a.cfg.Server.ReadTimeout,
		WriteTimeout:      a.cfg.Server.WriteTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("dispatcher started", zap.Int("workers", a.dispatch.Workers()))
		a.dispatch.Run(gctx)
		return nil
	})
	g.Go(func() error {
		a.logger.Info("http server started", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutdown initiated")
		timeout := a.cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	err := g.Wait()
	return errors.Join(err, a.Close())
}

// Close releases the store and flushes the logger.
func (a *App) Close() error {
	a.queue.Close()
	err := a.backend.Close()
	a.logger.Info("shutdown complete")
	_ = a.logger.Sync() //nolint:errcheck // stderr sync fails on some platforms
	return err
}
