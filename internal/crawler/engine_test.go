package crawler_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkgraph-crawler/internal/crawler"
	"github.com/JakeFAU/linkgraph-crawler/internal/markdown"
	"github.com/JakeFAU/linkgraph-crawler/internal/storage/memory"
)

type siteFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	order []string
}

func (f *siteFetcher) Fetch(_ context.Context, rawURL string) crawler.FetchOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.order = append(f.order, rawURL)
	body, ok := f.pages[rawURL]
	if !ok {
		out := crawler.PermanentFailure("HTTP 404")
		out.StatusCode = http.StatusNotFound
		return out
	}
	return crawler.Success(body, http.StatusOK, "text/html; charset=utf-8")
}

func (f *siteFetcher) fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.order...)
}

type staticResolver struct {
	fail map[string]bool
}

func (r staticResolver) Resolve(_ context.Context, host string) error {
	if r.fail[host] {
		return errors.New("no such host")
	}
	return nil
}

type denyPaths struct {
	denied map[string]bool
}

func (d denyPaths) Allowed(_ context.Context, rawURL string) bool { return !d.denied[rawURL] }
func (denyPaths) CrawlDelay(context.Context, string) time.Duration { return 0 }

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var testSite = map[string]string{
	"https://site.test/":  `<html><title>Home</title><a href="/a">A</a> <a href="/b" rel="nofollow">B</a></html>`,
	"https://site.test/a": `<html><title>A</title><a href="/c">C</a><a href="/">home</a></html>`,
	"https://site.test/b": `<html><title>B</title><p>leaf</p></html>`,
	"https://site.test/c": `<html><title>C</title><p>deep</p></html>`,
}

type harness struct {
	store   *memory.LinkGraphStore
	fetcher *siteFetcher
	status  *crawler.TaskStatus
	deps    crawler.Dependencies
}

func newHarness(t *testing.T, pages map[string]string) *harness {
	t.Helper()
	store := memory.NewLinkGraphStore()
	conv, err := markdown.NewConverter(0)
	require.NoError(t, err)
	clock := fixedClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	graph, err := crawler.NewLinkGraph(store, conv, clock, crawler.Identity{CollectionID: "col", CreatedBy: "test"})
	require.NoError(t, err)
	fetcher := &siteFetcher{pages: pages}
	status := crawler.NewTaskStatus("t1", nil, clock.now)
	return &harness{
		store:   store,
		fetcher: fetcher,
		status:  status,
		deps: crawler.Dependencies{
			Fetcher:  fetcher,
			Graph:    graph,
			Resolver: staticResolver{},
			Status:   status,
			Clock:    clock,
		},
	}
}

func testSettings() crawler.Settings {
	s := crawler.DefaultSettings()
	s.DelayBetweenRequests = 0
	s.MaxDepth = 2
	return s
}

// useStore rebuilds the harness link graph over store.
func (h *harness) useStore(t *testing.T, store crawler.LinkGraphStore) {
	t.Helper()
	conv, err := markdown.NewConverter(0)
	require.NoError(t, err)
	graph, err := crawler.NewLinkGraph(store, conv, h.deps.Clock, crawler.Identity{CollectionID: "col", CreatedBy: "test"})
	require.NoError(t, err)
	h.deps.Graph = graph
}

// rejectingStore fails every edge pointing at rejectURL.
type rejectingStore struct {
	*memory.LinkGraphStore
	rejectURL string

	mu       sync.Mutex
	rejectID int64
}

func (s *rejectingStore) GetOrCreatePage(ctx context.Context, page crawler.NewPage) (crawler.Page, error) {
	p, err := s.LinkGraphStore.GetOrCreatePage(ctx, page)
	if err == nil && p.URL == s.rejectURL {
		s.mu.Lock()
		s.rejectID = p.ID
		s.mu.Unlock()
	}
	return p, err
}

func (s *rejectingStore) AddLink(ctx context.Context, link crawler.Link) error {
	s.mu.Lock()
	reject := s.rejectID != 0 && link.TargetID == s.rejectID
	s.mu.Unlock()
	if reject {
		return errors.New("link rejected")
	}
	return s.LinkGraphStore.AddLink(ctx, link)
}

func (h *harness) crawl(t *testing.T, settings crawler.Settings, seeds ...string) crawler.Stats {
	t.Helper()
	engine, err := crawler.NewEngine(settings, h.deps, zap.NewNop())
	require.NoError(t, err)
	return engine.Crawl(context.Background(), seeds)
}

func urlsOf(pages []crawler.Page) []string {
	out := make([]string, 0, len(pages))
	for _, p := range pages {
		out = append(out, p.URL)
	}
	return out
}

func TestBreadthFirstCrawlPersistsGraph(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testSite)
	stats := h.crawl(t, testSettings(), "https://site.test/")

	require.Equal(t, crawler.StrategyBreadthFirst, stats.Strategy)
	require.Equal(t, 4, stats.URLsCrawled)
	require.Equal(t, 0, stats.Errors)
	require.ElementsMatch(t,
		[]string{"https://site.test/", "https://site.test/a", "https://site.test/b", "https://site.test/c"},
		h.fetcher.fetched())

	home, err := h.store.PageByURL(context.Background(), "https://site.test/")
	require.NoError(t, err)
	require.True(t, home.IsSeed)
	require.Equal(t, 0, home.CrawlDepth)
	require.Equal(t, "Home", home.Title)
	require.Equal(t, crawler.GenerateContentHash(testSite["https://site.test/"]), home.ContentHash)
	require.Equal(t, "col", home.CollectionID)
	require.Equal(t, "test", home.CreatedBy)
	require.Equal(t, http.StatusOK, home.StatusCode)
	require.NotNil(t, home.LastFetched)

	out, err := h.store.OutgoingLinks(context.Background(), home.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"https://site.test/a", "https://site.test/b"}, urlsOf(out))

	c, err := h.store.PageByURL(context.Background(), "https://site.test/c")
	require.NoError(t, err)
	require.Equal(t, 2, c.CrawlDepth)
	require.Contains(t, c.Content, "deep")

	snap := h.status.Snapshot()
	require.Equal(t, 4, snap.URLsCrawled)
	require.GreaterOrEqual(t, snap.TotalURLsQueued, 4)
}

func TestDepthFirstVisitsDocumentOrder(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testSite)
	settings := testSettings()
	settings.Strategy = crawler.StrategyDepthFirst
	stats := h.crawl(t, settings, "https://site.test/")

	require.Equal(t, crawler.StrategyDepthFirst, stats.Strategy)
	require.Equal(t, []string{
		"https://site.test/",
		"https://site.test/a",
		"https://site.test/c",
		"https://site.test/b",
	}, h.fetcher.fetched())
}

func TestMaxDepthStopsExpansionAndLinkStorage(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testSite)
	settings := testSettings()
	settings.MaxDepth = 1
	stats := h.crawl(t, settings, "https://site.test/")

	require.Equal(t, 3, stats.URLsCrawled)
	_, err := h.store.PageByURL(context.Background(), "https://site.test/c")
	require.ErrorIs(t, err, crawler.ErrPageNotFound)

	a, err := h.store.PageByURL(context.Background(), "https://site.test/a")
	require.NoError(t, err)
	out, err := h.store.OutgoingLinks(context.Background(), a.ID)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestDepthZeroFetchesOnlySeeds(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testSite)
	settings := testSettings()
	settings.MaxDepth = 0
	stats := h.crawl(t, settings, "https://site.test/", "https://site.test/", "https://site.test/b#frag")

	require.Equal(t, 2, stats.URLsCrawled)
	require.ElementsMatch(t, []string{"https://site.test/", "https://site.test/b"}, h.fetcher.fetched())
	require.Len(t, h.store.Links(), 0)
}

func TestFetchFailuresAreRecordedNotFatal(t *testing.T) {
	t.Parallel()

	pages := map[string]string{
		"https://site.test/":  `<a href="/missing">gone</a><a href="/b">b</a>`,
		"https://site.test/b": `<p>ok</p>`,
	}
	h := newHarness(t, pages)
	stats := h.crawl(t, testSettings(), "https://site.test/")

	require.Equal(t, 2, stats.URLsCrawled)
	require.Equal(t, 1, stats.Errors)
	require.Equal(t, []string{"https://site.test/missing: HTTP 404"}, stats.ErrorDetails)

	missing, err := h.store.PageByURL(context.Background(), "https://site.test/missing")
	require.NoError(t, err)
	require.Equal(t, "HTTP 404", missing.Error)
	require.NotNil(t, missing.LastFetched)
	require.Equal(t, []string{"https://site.test/missing: HTTP 404"}, h.status.Snapshot().Errors)
}

func TestFailedLinkWriteKeepsPageAndSiblings(t *testing.T) {
	t.Parallel()

	pages := map[string]string{
		"https://site.test/":  `<a href="/a">a</a><a href="/b">b</a>`,
		"https://site.test/a": `<p>a</p>`,
		"https://site.test/b": `<p>b</p>`,
	}
	h := newHarness(t, pages)
	store := &rejectingStore{LinkGraphStore: h.store, rejectURL: "https://site.test/a"}
	h.useStore(t, store)
	stats := h.crawl(t, testSettings(), "https://site.test/")

	require.Equal(t, 2, stats.URLsCrawled)
	require.Equal(t, []string{"https://site.test/a: add link: link rejected"}, stats.ErrorDetails)
	require.LessOrEqual(t, stats.URLsCrawled+stats.Errors, stats.URLsQueued)
	require.ElementsMatch(t, []string{"https://site.test/", "https://site.test/b"}, h.fetcher.fetched())

	home, err := h.store.PageByURL(context.Background(), "https://site.test/")
	require.NoError(t, err)
	out, err := h.store.OutgoingLinks(context.Background(), home.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"https://site.test/b"}, urlsOf(out))
}

func TestOverlongURLsAreNeverStored(t *testing.T) {
	t.Parallel()

	long := "/x" + strings.Repeat("a", 3000)
	pages := map[string]string{
		"https://site.test/":  `<a href="` + long + `">long</a><a href="/b">b</a>`,
		"https://site.test/b": `<p>b</p>`,
	}
	h := newHarness(t, pages)
	stats := h.crawl(t, testSettings(), "https://site.test/", "https://site.test"+long)

	require.Equal(t, 2, stats.URLsCrawled)
	require.Equal(t, []string{"https://site.test" + long + ": invalid URL"}, stats.ErrorDetails)
	for _, p := range h.store.Pages() {
		require.LessOrEqual(t, len(p.URL), crawler.MaxURLLength)
	}
	require.ElementsMatch(t, []string{"https://site.test/", "https://site.test/b"}, h.fetcher.fetched())
}

func TestStatusCountersNeverDecrease(t *testing.T) {
	t.Parallel()

	pages := map[string]string{}
	var index strings.Builder
	for i := range 60 {
		path := fmt.Sprintf("/p%d", i)
		index.WriteString(`<a href="` + path + `">p</a>`)
		pages["https://site.test"+path] = `<p>leaf</p>`
	}
	pages["https://site.test/"] = index.String()

	h := newHarness(t, pages)
	settings := testSettings()
	settings.MaxConcurrentRequests = 8

	done := make(chan struct{})
	var violations []string
	go func() {
		defer close(done)
		last := 0
		for {
			snap := h.status.Snapshot()
			if snap.URLsCrawled < last {
				violations = append(violations, fmt.Sprintf("%d after %d", snap.URLsCrawled, last))
			}
			last = snap.URLsCrawled
			if last == 61 {
				return
			}
			time.Sleep(time.Microsecond)
		}
	}()

	stats := h.crawl(t, settings, "https://site.test/")
	require.Equal(t, 61, stats.URLsCrawled)
	<-done
	require.Empty(t, violations)
}

func TestDNSFailureSkipsPersistence(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testSite)
	h.deps.Resolver = staticResolver{fail: map[string]bool{"site.test": true}}
	stats := h.crawl(t, testSettings(), "https://site.test/")

	require.Equal(t, 0, stats.URLsCrawled)
	require.Len(t, stats.ErrorDetails, 1)
	require.Contains(t, stats.ErrorDetails[0], "DNS resolution failed")
	require.Empty(t, h.fetcher.fetched())
	require.Empty(t, h.store.Pages())
}

func TestInvalidSeedIsRecorded(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testSite)
	stats := h.crawl(t, testSettings(), "not-a-url")

	require.Equal(t, 0, stats.URLsCrawled)
	require.Equal(t, []string{"not-a-url: invalid URL"}, stats.ErrorDetails)
}

func TestLinkFilters(t *testing.T) {
	t.Parallel()

	pages := map[string]string{
		"https://site.test/": `
			<a href="https://other.test/x">external</a>
			<a href="/report.PDF">pdf</a>
			<a href="https://ads.site.test/banner">ad</a>
			<a href="mailto:me@site.test">mail</a>
			<a href="/ok">ok</a>`,
		"https://site.test/ok":         `<p>ok</p>`,
		"https://other.test/x":         `<p>other</p>`,
		"https://ads.site.test/banner": `<p>ad</p>`,
	}

	t.Run("same host only", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, pages)
		settings := testSettings()
		settings.BlockedDomains = []string{"*.ads.site.test"}
		h.crawl(t, settings, "https://site.test/")

		require.ElementsMatch(t, []string{"https://site.test/", "https://site.test/ok"}, h.fetcher.fetched())
		stored := urlsOf(h.store.Pages())
		sort.Strings(stored)
		require.Equal(t, []string{"https://site.test/", "https://site.test/ok"}, stored)
	})

	t.Run("follow external", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, pages)
		settings := testSettings()
		settings.FollowExternalLinks = true
		settings.BlockedDomains = []string{"ads.site.test"}
		h.crawl(t, settings, "https://site.test/")

		require.ElementsMatch(t,
			[]string{"https://site.test/", "https://site.test/ok", "https://other.test/x"},
			h.fetcher.fetched())
	})
}

func TestRobotsDisallowSkipsURL(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testSite)
	h.deps.Robots = denyPaths{denied: map[string]bool{"https://site.test/a": true}}
	settings := testSettings()
	settings.RespectRobotsTxt = true
	stats := h.crawl(t, settings, "https://site.test/")

	require.Equal(t, 2, stats.URLsCrawled)
	require.Equal(t, 0, stats.Errors)
	require.NotContains(t, h.fetcher.fetched(), "https://site.test/a")
}

func TestCanceledContextStopsCrawl(t *testing.T) {
	t.Parallel()

	for _, strategy := range []crawler.Strategy{crawler.StrategyBreadthFirst, crawler.StrategyDepthFirst} {
		h := newHarness(t, testSite)
		settings := testSettings()
		settings.Strategy = strategy
		engine, err := crawler.NewEngine(settings, h.deps, zap.NewNop())
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		stats := engine.Crawl(ctx, []string{"https://site.test/"})
		require.Equal(t, 0, stats.URLsCrawled, strategy)
	}
}

func TestMaxDurationCapsRun(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testSite)
	settings := testSettings()
	settings.Strategy = crawler.StrategyDepthFirst
	settings.DelayBetweenRequests = 10 * time.Second
	settings.MaxDuration = 50 * time.Millisecond

	start := time.Now()
	stats := h.crawl(t, settings, "https://site.test/")

	require.Less(t, time.Since(start), 5*time.Second)
	require.Equal(t, 1, stats.URLsCrawled)
	require.Equal(t, []string{"https://site.test/"}, h.fetcher.fetched())
}

func TestNewEngineValidation(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testSite)

	bad := testSettings()
	bad.Strategy = "random"
	_, err := crawler.NewEngine(bad, h.deps, nil)
	require.ErrorIs(t, err, crawler.ErrUnknownStrategy)

	bad = testSettings()
	bad.MaxConcurrentRequests = 0
	_, err = crawler.NewEngine(bad, h.deps, nil)
	require.ErrorContains(t, err, "max_concurrent_requests")

	deps := h.deps
	deps.Fetcher = nil
	_, err = crawler.NewEngine(testSettings(), deps, nil)
	require.EqualError(t, err, "fetcher is required")

	deps = h.deps
	deps.Resolver = nil
	_, err = crawler.NewEngine(testSettings(), deps, nil)
	require.EqualError(t, err, "resolver is required")
}
