package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkgraph-crawler/internal/config"
	"github.com/JakeFAU/linkgraph-crawler/internal/crawler"
	"github.com/JakeFAU/linkgraph-crawler/internal/crawljob"
	"github.com/JakeFAU/linkgraph-crawler/internal/metrics"
)

// TaskRegistry tracks the progress records of submitted crawls.
type TaskRegistry interface {
	Create(ctx context.Context, id string, status *crawler.TaskStatus) error
	Get(ctx context.Context, id string) (*crawler.TaskStatus, error)
	Delete(ctx context.Context, id string)
}

// Submitter hands tasks to the background workers without blocking.
type Submitter interface {
	Submit(task crawljob.Task) error
}

// CrawlService validates crawl requests and converts single pages.
type CrawlService interface {
	SettingsFor(req crawljob.Request) (crawler.Settings, error)
	PageAsMarkdown(ctx context.Context, rawURL string, skipSSLVerification bool) (string, error)
}

// PageFinder reads persisted pages from the link graph.
type PageFinder interface {
	PageByURL(ctx context.Context, url string) (crawler.Page, error)
}

// Options wires a Server. Pages may be nil when no store is configured.
type Options struct {
	Tasks     TaskRegistry
	Submitter Submitter
	Crawls    CrawlService
	Pages     PageFinder
	IDs       crawler.IDGenerator
	Clock     crawler.Clock
	Config    config.Config
}

// Server wires HTTP handlers to the task registry, dispatcher and stores.
type Server struct {
	router    chi.Router
	tasks     TaskRegistry
	submitter Submitter
	crawls    CrawlService
	pages     PageFinder
	idGen     crawler.IDGenerator
	clock     crawler.Clock
	cfg       config.Config
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		tasks:     opts.Tasks,
		submitter: opts.Submitter,
		crawls:    opts.Crawls,
		pages:     opts.Pages,
		idGen:     opts.IDs,
		clock:     opts.Clock,
		cfg:       opts.Config,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.CleanPath)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if opts.Config.Server.RequestTimeout > 0 {
			r.Use(timeoutMiddleware(opts.Config.Server.RequestTimeout))
		}
		if opts.Config.Auth.Enabled {
			r.Use(apiKeyMiddleware(opts.Config.Auth.APIKeys))
		}
		r.Route("/crawls", func(r chi.Router) {
			r.Post("/", s.submitCrawl)
			r.Get("/{task_id}", s.getCrawl)
		})
		r.Route("/pages", func(r chi.Router) {
			r.Get("/", s.getPage)
			r.Post("/markdown", s.pageMarkdown)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload) //nolint:errcheck // client went away
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
