package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/linkgraph-crawler/internal/metrics"
)

// Dependencies are the collaborators an Engine drives.
type Dependencies struct {
	Fetcher  Fetcher
	Graph    *LinkGraph
	Resolver Resolver
	// Robots is consulted only when Settings.RespectRobotsTxt is set.
	Robots RobotsPolicy
	// Limiter, when set, is waited on before every fetch.
	Limiter DomainLimiter
	// Status, when set, mirrors run counters for progress polling.
	Status *TaskStatus
	Clock  Clock
}

// Engine orchestrates one crawl run at a time over the link graph.
// Crawl must not be called concurrently on the same Engine.
type Engine struct {
	settings  Settings
	strategy  Strategy
	traverser traverser

	fetcher  Fetcher
	graph    *LinkGraph
	resolver Resolver
	robots   RobotsPolicy
	limiter  DomainLimiter
	status   *TaskStatus
	clock    Clock
	pauser   pauseController
	blocked  *domainBlocklist
	logger   *zap.Logger

	run *runState
}

type runState struct {
	visited *concurrentVisitTracker
	domains *concurrentVisitTracker
	crawled atomic.Int64
	queued  atomic.Int64

	mu     sync.Mutex
	errors []string

	// mirrorMu serializes status updates so counters reach pollers in order.
	mirrorMu sync.Mutex

	start time.Time
	end   time.Time
}

func newRunState(start time.Time) *runState {
	return &runState{
		visited: newConcurrentVisitTracker(),
		domains: newConcurrentVisitTracker(),
		start:   start,
	}
}

func (r *runState) errorList() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.errors...)
}

// NewEngine validates settings and selects the traversal strategy.
func NewEngine(settings Settings, deps Dependencies, logger *zap.Logger) (*Engine, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid crawl settings: %w", err)
	}
	strategy, err := ParseStrategy(string(settings.Strategy))
	if err != nil {
		return nil, err
	}
	trav, err := newTraverser(strategy)
	if err != nil {
		return nil, err
	}
	if deps.Fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if deps.Graph == nil {
		return nil, errors.New("link graph is required")
	}
	if deps.Resolver == nil {
		return nil, errors.New("resolver is required")
	}
	if deps.Robots == nil {
		deps.Robots = allowAllPolicy{}
	}
	if deps.Clock == nil {
		deps.Clock = systemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		settings:  settings,
		strategy:  strategy,
		traverser: trav,
		fetcher:   deps.Fetcher,
		graph:     deps.Graph,
		resolver:  deps.Resolver,
		robots:    deps.Robots,
		limiter:   deps.Limiter,
		status:    deps.Status,
		clock:     deps.Clock,
		pauser:    &timerPauseController{},
		blocked:   newDomainBlocklist(settings.BlockedDomains),
		logger:    logger,
	}, nil
}

// Strategy reports the traversal strategy selected at construction.
func (e *Engine) Strategy() Strategy {
	return e.strategy
}

// Crawl resets the run state, traverses from the seeds and returns summary
// statistics. Individual URL failures are recorded, never returned.
func (e *Engine) Crawl(ctx context.Context, seedURLs []string) Stats {
	e.run = newRunState(e.clock.Now())
	if e.settings.MaxDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.settings.MaxDuration)
		defer cancel()
	}
	seeds := seedItems(seedURLs)
	e.logger.Info("crawl started",
		zap.String("strategy", string(e.strategy)),
		zap.Int("seeds", len(seeds)),
		zap.Int("max_depth", e.settings.MaxDepth),
		zap.Int("workers", e.settings.MaxConcurrentRequests),
	)

	e.traverser.traverse(ctx, e, seeds)

	e.run.end = e.clock.Now()
	e.mirror()
	stats := e.stats()
	outcome := "completed"
	if ctx.Err() != nil {
		outcome = "canceled"
	}
	metrics.ObserveRun(string(e.strategy), outcome)
	e.logger.Info("crawl finished",
		zap.String("outcome", outcome),
		zap.Int("urls_crawled", stats.URLsCrawled),
		zap.Int("urls_queued", stats.URLsQueued),
		zap.Int("errors", stats.Errors),
		zap.Duration("duration", stats.Duration),
	)
	return stats
}

// seedItems normalizes seeds and drops duplicates, preserving order.
func seedItems(seedURLs []string) []frontierItem {
	seen := make(map[string]struct{}, len(seedURLs))
	items := make([]frontierItem, 0, len(seedURLs))
	for _, raw := range seedURLs {
		normalized := NormalizeURL(raw, "")
		if normalized == "" {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		items = append(items, frontierItem{url: normalized, depth: 0, isSeed: true})
	}
	return items
}

// visit runs the per-URL algorithm and reports the page id when the URL was
// fetched and persisted successfully.
func (e *Engine) visit(ctx context.Context, item frontierItem) (int64, bool) {
	rawURL := item.url
	if item.depth > e.settings.MaxDepth || IsFileURL(rawURL, e.settings.SkipExtensions) {
		return 0, false
	}
	if e.blocked.Blocks(rawURL) {
		e.logger.Debug("domain blocked", zap.String("url", rawURL))
		metrics.ObservePage(rawURL, "blocked")
		return 0, false
	}
	if !e.run.visited.MarkIfNew(rawURL) {
		return 0, false
	}
	if len(rawURL) > MaxURLLength || !IsValidURL(rawURL) {
		e.recordError(rawURL, "invalid URL")
		return 0, false
	}
	if err := e.resolver.Resolve(ctx, hostname(rawURL)); err != nil {
		e.recordError(rawURL, fmt.Sprintf("DNS resolution failed: %v", err))
		return 0, false
	}
	if e.settings.RespectRobotsTxt && !e.robots.Allowed(ctx, rawURL) {
		e.logger.Debug("robots.txt disallows url", zap.String("url", rawURL))
		metrics.ObservePage(rawURL, "robots_disallowed")
		return 0, false
	}
	e.pace(ctx, rawURL)
	if ctx.Err() != nil {
		return 0, false
	}

	page, err := e.graph.GetOrCreatePage(ctx, rawURL, item.depth, item.isSeed)
	if err != nil {
		e.recordError(rawURL, err.Error())
		return 0, false
	}

	outcome := e.fetcher.Fetch(ctx, rawURL)
	if !outcome.OK() {
		if ctx.Err() != nil {
			return 0, false
		}
		if err := e.graph.StorePageError(ctx, page.ID, outcome.Reason); err != nil {
			e.logger.Warn("persist page error failed", zap.String("url", rawURL), zap.Error(err))
		}
		e.recordError(rawURL, outcome.Reason)
		return 0, false
	}

	if err := e.graph.StorePageContent(ctx, page.ID, outcome.Body, outcome.StatusCode, outcome.ContentType); err != nil {
		e.recordError(rawURL, err.Error())
		return 0, false
	}
	if item.depth < e.settings.MaxDepth {
		e.storeLinks(ctx, page, outcome.Body, item.depth)
	}

	e.run.crawled.Add(1)
	metrics.ObservePage(rawURL, "success")
	e.logger.Debug("page crawled",
		zap.String("url", rawURL),
		zap.Int("depth", item.depth),
		zap.Int("status", outcome.StatusCode),
	)
	return page.ID, true
}

// pace sleeps before hitting a domain already seen in this run.
func (e *Engine) pace(ctx context.Context, rawURL string) {
	if !e.run.domains.MarkIfNew(domainKey(rawURL)) {
		delay := e.settings.DelayBetweenRequests
		if e.settings.RespectRobotsTxt {
			if robotsDelay := e.robots.CrawlDelay(ctx, rawURL); robotsDelay > delay {
				delay = robotsDelay
			}
		}
		e.pauser.Pause(ctx, delay)
	}
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx, rawURL); err != nil {
			e.logger.Debug("rate limiter wait aborted", zap.String("url", rawURL), zap.Error(err))
		}
	}
}

// storeLinks persists the admissible outgoing links of a fetched page. A
// failed write is recorded against the link target, which then counts as
// queued, and the remaining links are still stored.
func (e *Engine) storeLinks(ctx context.Context, page Page, html string, depth int) {
	for _, link := range ExtractLinks(html, page.URL) {
		if !e.admissible(page.URL, link.URL) {
			continue
		}
		target, err := e.graph.GetOrCreatePage(ctx, link.URL, depth+1, false)
		if err == nil {
			err = e.graph.AddLink(ctx, page.ID, target.ID, link.Text, link.Rel)
		}
		if err != nil {
			e.run.queued.Add(1)
			e.recordError(link.URL, err.Error())
		}
	}
}

// expand lists the unvisited frontier reachable from a visited page.
func (e *Engine) expand(ctx context.Context, pageID int64, from frontierItem) []frontierItem {
	next := from.depth + 1
	if next > e.settings.MaxDepth {
		return nil
	}
	targets, err := e.graph.OutgoingLinks(ctx, pageID)
	if err != nil {
		e.logger.Warn("load outgoing links failed", zap.String("url", from.url), zap.Error(err))
		return nil
	}
	seen := make(map[int64]struct{}, len(targets))
	items := make([]frontierItem, 0, len(targets))
	for _, target := range targets {
		if _, dup := seen[target.ID]; dup {
			continue
		}
		seen[target.ID] = struct{}{}
		if e.run.visited.Seen(target.URL) || !e.admissible(from.url, target.URL) {
			continue
		}
		items = append(items, frontierItem{url: target.URL, depth: next})
	}
	return items
}

// admissible applies the external-link, file-extension and blocklist filters.
func (e *Engine) admissible(fromURL, toURL string) bool {
	if IsFileURL(toURL, e.settings.SkipExtensions) || e.blocked.Blocks(toURL) {
		return false
	}
	if !e.settings.FollowExternalLinks && domainKey(toURL) != domainKey(fromURL) {
		return false
	}
	return true
}

func (e *Engine) recordError(rawURL, message string) {
	e.run.mu.Lock()
	e.run.errors = append(e.run.errors, rawURL+": "+message)
	e.run.mu.Unlock()
	metrics.ObservePage(rawURL, "error")
	e.logger.Warn("crawl error", zap.String("url", rawURL), zap.String("error", message))
}

func (e *Engine) mirror() {
	if e.status == nil {
		return
	}
	e.run.mirrorMu.Lock()
	defer e.run.mirrorMu.Unlock()
	e.status.Update(int(e.run.crawled.Load()), int(e.run.queued.Load()), e.run.errorList())
}

func (e *Engine) stats() Stats {
	errs := e.run.errorList()
	duration := e.run.end.Sub(e.run.start)
	crawled := int(e.run.crawled.Load())
	var pps float64
	if secs := duration.Seconds(); secs > 0 {
		pps = float64(crawled) / secs
	}
	return Stats{
		Strategy:       e.strategy,
		URLsCrawled:    crawled,
		URLsQueued:     int(e.run.queued.Load()),
		Errors:         len(errs),
		ErrorDetails:   errs,
		Duration:       duration,
		DurationSecs:   duration.Seconds(),
		PagesPerSecond: pps,
		StartTime:      e.run.start,
		EndTime:        e.run.end,
	}
}

func hostname(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
