// Package crawljob is the entry point for running crawls: it merges request
// overrides onto service defaults, builds per-run collaborators and drives
// the traversal engine while keeping a TaskStatus current.
package crawljob

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/linkgraph-crawler/internal/clock/system"
	"github.com/JakeFAU/linkgraph-crawler/internal/crawler"
	collyfetcher "github.com/JakeFAU/linkgraph-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/linkgraph-crawler/internal/markdown"
	"github.com/JakeFAU/linkgraph-crawler/internal/policy/ratelimit"
)

var (
	// ErrNoSeeds is returned when a request carries no usable seed URL.
	ErrNoSeeds = errors.New("at least one seed url is required")
	// ErrInvalidURL is returned by PageAsMarkdown for URLs without scheme or host.
	ErrInvalidURL = errors.New("invalid url")
	// ErrFetchFailed is returned by PageAsMarkdown when the page cannot be fetched.
	ErrFetchFailed = errors.New("fetch failed")
)

// Request describes one crawl. Nil pointers and empty strings fall back to
// the service defaults.
type Request struct {
	SeedURLs           []string
	Depth              *int
	ConcurrentRequests *int
	FollowExternal     *bool
	Strategy           string
	CollectionID       string

	CreatedBy  string
	APIKeyName string

	// Store overrides the service's link graph store for this run.
	Store crawler.LinkGraphStore
	// Status, when set, is kept current for pollers.
	Status *crawler.TaskStatus
}

// Task is a queued crawl request paired with its progress record.
type Task struct {
	ID      string
	Request Request
	Status  *crawler.TaskStatus
}

// FetcherFactory builds the fetcher used for one run.
type FetcherFactory func(settings crawler.Settings, logger *zap.Logger) crawler.Fetcher

// RobotsFactory builds the robots cache used for one run.
type RobotsFactory func(settings crawler.Settings, logger *zap.Logger) crawler.RobotsPolicy

// Options wires a Service.
type Options struct {
	Defaults          crawler.Settings
	Store             crawler.LinkGraphStore
	Resolver          crawler.Resolver
	Clock             crawler.Clock
	MarkdownCacheSize int
	// FallbackDNS is the host:port the default resolver retries against.
	FallbackDNS string
	// Fetchers and Robots default to the colly fetcher and the HTTP robots cache.
	Fetchers FetcherFactory
	Robots   RobotsFactory
}

// Service runs crawl jobs.
type Service struct {
	defaults  crawler.Settings
	store     crawler.LinkGraphStore
	resolver  crawler.Resolver
	clock     crawler.Clock
	cacheSize int
	fetchers  FetcherFactory
	robots    RobotsFactory
	converter *markdown.Converter
	logger    *zap.Logger
}

// NewService validates the defaults and builds a Service.
func NewService(opts Options, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := opts.Defaults.Validate(); err != nil {
		return nil, fmt.Errorf("invalid default settings: %w", err)
	}
	if opts.Resolver == nil {
		opts.Resolver = crawler.NewFallbackResolver(opts.FallbackDNS, logger)
	}
	if opts.Clock == nil {
		opts.Clock = system.New()
	}
	if opts.Fetchers == nil {
		opts.Fetchers = collyFetchers
	}
	if opts.Robots == nil {
		opts.Robots = httpRobots
	}
	converter, err := markdown.NewConverter(opts.MarkdownCacheSize)
	if err != nil {
		return nil, err
	}
	return &Service{
		defaults:  opts.Defaults,
		store:     opts.Store,
		resolver:  opts.Resolver,
		clock:     opts.Clock,
		cacheSize: opts.MarkdownCacheSize,
		fetchers:  opts.Fetchers,
		robots:    opts.Robots,
		converter: converter,
		logger:    logger,
	}, nil
}

// Defaults returns the service's default crawl settings.
func (s *Service) Defaults() crawler.Settings {
	return s.defaults
}

// Store returns the default link graph store, which may be nil.
func (s *Service) Store() crawler.LinkGraphStore {
	return s.store
}

// CrawlWebsite runs one crawl to completion. Per-URL failures are reported in
// the returned Stats; an error is returned only when the run cannot start or
// its context ends before the traversal finishes.
func (s *Service) CrawlWebsite(ctx context.Context, req Request) (crawler.Stats, error) {
	status := req.Status
	fail := func(err error) (crawler.Stats, error) {
		if status != nil {
			status.Fail(err.Error(), s.clock.Now())
		}
		s.logger.Warn("crawl failed to start", zap.Strings("seeds", req.SeedURLs), zap.Error(err))
		return crawler.Stats{}, err
	}

	seeds := compactSeeds(req.SeedURLs)
	if len(seeds) == 0 {
		return fail(ErrNoSeeds)
	}
	settings, err := s.SettingsFor(req)
	if err != nil {
		return fail(err)
	}
	store := req.Store
	if store == nil {
		store = s.store
	}
	if store == nil {
		return fail(errors.New("no link graph store configured"))
	}

	logger := s.logger.With(zap.String("collection_id", req.CollectionID))
	converter, err := markdown.NewConverter(s.cacheSize)
	if err != nil {
		return fail(err)
	}
	graph, err := crawler.NewLinkGraph(store, converter, s.clock, crawler.Identity{
		CollectionID: req.CollectionID,
		CreatedBy:    req.CreatedBy,
		APIKeyName:   req.APIKeyName,
	})
	if err != nil {
		return fail(err)
	}
	deps := crawler.Dependencies{
		Fetcher:  s.fetchers(settings, logger),
		Graph:    graph,
		Resolver: s.resolver,
		Status:   status,
		Clock:    s.clock,
	}
	if settings.RespectRobotsTxt {
		deps.Robots = s.robots(settings, logger)
	}
	if settings.RequestsPerSecond > 0 {
		deps.Limiter = ratelimit.New(ratelimit.Config{RequestsPerSecond: settings.RequestsPerSecond})
	}
	engine, err := crawler.NewEngine(settings, deps, logger)
	if err != nil {
		return fail(err)
	}

	if status != nil {
		status.MarkRunning()
	}
	stats := engine.Crawl(ctx, seeds)
	if err := ctx.Err(); err != nil {
		if status != nil {
			status.Fail(fmt.Sprintf("crawl interrupted: %v", err), s.clock.Now())
		}
		return stats, fmt.Errorf("crawl interrupted: %w", err)
	}
	if status != nil {
		status.Complete(s.clock.Now())
	}
	return stats, nil
}

// SettingsFor merges the request overrides onto the defaults and validates the result.
func (s *Service) SettingsFor(req Request) (crawler.Settings, error) {
	settings := s.defaults
	settings.SkipExtensions = append([]string(nil), s.defaults.SkipExtensions...)
	if req.Depth != nil {
		settings.MaxDepth = *req.Depth
	}
	if req.ConcurrentRequests != nil {
		settings.MaxConcurrentRequests = *req.ConcurrentRequests
	}
	if req.FollowExternal != nil {
		settings.FollowExternalLinks = *req.FollowExternal
	}
	if req.Strategy != "" {
		strategy, err := crawler.ParseStrategy(req.Strategy)
		if err != nil {
			return crawler.Settings{}, err
		}
		settings.Strategy = strategy
	}
	if err := settings.Validate(); err != nil {
		return crawler.Settings{}, fmt.Errorf("invalid crawl settings: %w", err)
	}
	return settings, nil
}

// PageAsMarkdown fetches a single page and returns it as markdown. It does not
// touch the link graph.
func (s *Service) PageAsMarkdown(ctx context.Context, rawURL string, skipSSLVerification bool) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if !crawler.IsValidURL(rawURL) {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	settings := s.defaults
	settings.VerifySSL = !skipSSLVerification

	outcome := s.fetchers(settings, s.logger).Fetch(ctx, rawURL)
	if !outcome.OK() {
		return "", fmt.Errorf("%w: %s", ErrFetchFailed, outcome.Reason)
	}
	out, err := s.converter.Convert(outcome.Body)
	if err != nil {
		return "", fmt.Errorf("convert page: %w", err)
	}
	return out, nil
}

func compactSeeds(seeds []string) []string {
	out := make([]string, 0, len(seeds))
	for _, seed := range seeds {
		if seed = strings.TrimSpace(seed); seed != "" {
			out = append(out, seed)
		}
	}
	return out
}

func collyFetchers(settings crawler.Settings, logger *zap.Logger) crawler.Fetcher {
	return collyfetcher.New(collyfetcher.ConfigFromSettings(settings), logger)
}

func httpRobots(settings crawler.Settings, logger *zap.Logger) crawler.RobotsPolicy {
	return crawler.NewRobotsCache(settings.UserAgent, settings.VerifySSL, logger)
}
