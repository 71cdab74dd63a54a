package crawljob

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkgraph-crawler/internal/crawler"
	"github.com/JakeFAU/linkgraph-crawler/internal/storage/memory"
)

type fakeFetcher struct {
	mu       sync.Mutex
	pages    map[string]crawler.FetchOutcome
	requests []string
	settings crawler.Settings
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) crawler.FetchOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, url)
	if outcome, ok := f.pages[url]; ok {
		return outcome
	}
	return crawler.PermanentFailure("HTTP 404")
}

type okResolver struct{}

func (okResolver) Resolve(context.Context, string) error { return nil }

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func testDefaults() crawler.Settings {
	s := crawler.DefaultSettings()
	s.DelayBetweenRequests = 0
	s.MaxConcurrentRequests = 2
	return s
}

func newTestService(t *testing.T, fetcher *fakeFetcher, store crawler.LinkGraphStore) *Service {
	t.Helper()
	svc, err := NewService(Options{
		Defaults: testDefaults(),
		Store:    store,
		Resolver: okResolver{},
		Clock:    fixedClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		Fetchers: func(settings crawler.Settings, _ *zap.Logger) crawler.Fetcher {
			fetcher.mu.Lock()
			fetcher.settings = settings
			fetcher.mu.Unlock()
			return fetcher
		},
	}, zap.NewNop())
	require.NoError(t, err)
	return svc
}

func sitePages() map[string]crawler.FetchOutcome {
	return map[string]crawler.FetchOutcome{
		"http://site.test/": crawler.Success(
			`<html><title>Home</title><body><a href="/a">A</a><a href="https://other.test/">ext</a></body></html>`,
			200, "text/html"),
		"http://site.test/a": crawler.Success(`<html><title>A</title><body><p>leaf</p></body></html>`, 200, "text/html"),
	}
}

func TestCrawlWebsiteCompletesAndPersists(t *testing.T) {
	t.Parallel()

	store := memory.NewLinkGraphStore()
	fetcher := &fakeFetcher{pages: sitePages()}
	svc := newTestService(t, fetcher, store)
	status := crawler.NewTaskStatus("t1", []string{"http://site.test/"}, time.Now())
	depth := 1

	stats, err := svc.CrawlWebsite(context.Background(), Request{
		SeedURLs:     []string{" http://site.test/ ", ""},
		Depth:        &depth,
		CollectionID: "docs",
		CreatedBy:    "api",
		Status:       status,
	})
	require.NoError(t, err)
	require.Equal(t, 2, stats.URLsCrawled)
	require.Zero(t, stats.Errors)

	snap := status.Snapshot()
	require.Equal(t, crawler.TaskCompleted, snap.Status)
	require.True(t, snap.Finished)
	require.Equal(t, 2, snap.URLsCrawled)

	home, err := store.PageByURL(context.Background(), "http://site.test/")
	require.NoError(t, err)
	require.Equal(t, "Home", home.Title)
	require.Equal(t, "docs", home.CollectionID)
	require.Equal(t, "api", home.UpdatedBy)
	require.True(t, home.IsSeed)

	_, err = store.PageByURL(context.Background(), "https://other.test/")
	require.ErrorIs(t, err, crawler.ErrPageNotFound)
}

func TestCrawlWebsiteUsesStoreOverride(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: sitePages()}
	svc := newTestService(t, fetcher, nil)
	override := memory.NewLinkGraphStore()
	depth := 0

	stats, err := svc.CrawlWebsite(context.Background(), Request{
		SeedURLs: []string{"http://site.test/"},
		Depth:    &depth,
		Store:    override,
	})
	require.NoError(t, err)
	require.Equal(t, 1, stats.URLsCrawled)
	require.Len(t, override.Pages(), 1)
}

func TestCrawlWebsiteRunLevelFailures(t *testing.T) {
	t.Parallel()

	negative := -1
	testCases := []struct {
		name    string
		store   crawler.LinkGraphStore
		req     Request
		wantErr error
	}{
		{"no seeds", memory.NewLinkGraphStore(), Request{SeedURLs: []string{" "}}, ErrNoSeeds},
		{"unknown strategy", memory.NewLinkGraphStore(), Request{SeedURLs: []string{"http://site.test/"}, Strategy: "random"}, crawler.ErrUnknownStrategy},
		{"negative depth", memory.NewLinkGraphStore(), Request{SeedURLs: []string{"http://site.test/"}, Depth: &negative}, nil},
		{"no store", nil, Request{SeedURLs: []string{"http://site.test/"}}, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			fetcher := &fakeFetcher{pages: sitePages()}
			svc := newTestService(t, fetcher, tc.store)
			status := crawler.NewTaskStatus("t", tc.req.SeedURLs, time.Now())
			tc.req.Status = status

			_, err := svc.CrawlWebsite(context.Background(), tc.req)
			require.Error(t, err)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
			}
			require.Equal(t, crawler.TaskFailed, status.State())
			require.NotEmpty(t, status.Snapshot().Failure)
			require.Empty(t, fetcher.requests)
		})
	}
}

func TestCrawlWebsiteCanceledContextFailsTask(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: sitePages()}
	svc := newTestService(t, fetcher, memory.NewLinkGraphStore())
	status := crawler.NewTaskStatus("t", nil, time.Now())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.CrawlWebsite(ctx, Request{SeedURLs: []string{"http://site.test/"}, Status: status})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, crawler.TaskFailed, status.State())
}

func TestSettingsForAppliesOverrides(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &fakeFetcher{}, memory.NewLinkGraphStore())
	depth, workers, external := 4, 9, true

	settings, err := svc.SettingsFor(Request{
		Depth:              &depth,
		ConcurrentRequests: &workers,
		FollowExternal:     &external,
		Strategy:           "DEPTH_FIRST",
	})
	require.NoError(t, err)
	require.Equal(t, 4, settings.MaxDepth)
	require.Equal(t, 9, settings.MaxConcurrentRequests)
	require.True(t, settings.FollowExternalLinks)
	require.Equal(t, crawler.StrategyDepthFirst, settings.Strategy)

	defaults, err := svc.SettingsFor(Request{})
	require.NoError(t, err)
	require.Equal(t, svc.Defaults().MaxDepth, defaults.MaxDepth)
	require.Equal(t, crawler.StrategyBreadthFirst, defaults.Strategy)
}

func TestPageAsMarkdown(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: map[string]crawler.FetchOutcome{
		"https://doc.test/": crawler.Success(`<h1>Guide</h1><p>text</p>`, 200, "text/html"),
	}}
	svc := newTestService(t, fetcher, nil)

	out, err := svc.PageAsMarkdown(context.Background(), "https://doc.test/", true)
	require.NoError(t, err)
	require.Contains(t, out, "# Guide")
	require.False(t, fetcher.settings.VerifySSL)

	_, err = svc.PageAsMarkdown(context.Background(), "doc.test", false)
	require.ErrorIs(t, err, ErrInvalidURL)

	_, err = svc.PageAsMarkdown(context.Background(), "https://doc.test/missing", false)
	require.ErrorIs(t, err, ErrFetchFailed)
	require.True(t, errors.Is(err, ErrFetchFailed))
}
