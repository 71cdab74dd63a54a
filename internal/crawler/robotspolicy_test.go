package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const robotsBody = `User-agent: linkcrawler
Disallow: /private
Crawl-delay: 2

User-agent: *
Disallow: /
`

func TestRobotsCacheAppliesAgentGroup(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		hits.Add(1)
		_, _ = w.Write([]byte(robotsBody))
	}))
	defer srv.Close()

	cache := NewRobotsCacheWithClient(srv.Client(), DefaultUserAgent, zap.NewNop())
	ctx := context.Background()

	require.True(t, cache.Allowed(ctx, srv.URL+"/public/page"))
	require.False(t, cache.Allowed(ctx, srv.URL+"/private/page"))
	require.True(t, cache.Allowed(ctx, srv.URL))
	require.Equal(t, 2*time.Second, cache.CrawlDelay(ctx, srv.URL+"/anything"))
	require.Equal(t, int32(1), hits.Load(), "rules are cached per origin")
}

func TestRobotsCacheWildcardGroup(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(robotsBody))
	}))
	defer srv.Close()

	cache := NewRobotsCacheWithClient(srv.Client(), "otherbot/2.0", nil)
	require.False(t, cache.Allowed(context.Background(), srv.URL+"/public/page"))
}

func TestRobotsCacheAllowsOnFailure(t *testing.T) {
	t.Parallel()

	missing := httptest.NewServer(http.NotFoundHandler())
	defer missing.Close()
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	cache := NewRobotsCacheWithClient(missing.Client(), "", nil)
	ctx := context.Background()
	require.True(t, cache.Allowed(ctx, missing.URL+"/x"))
	require.True(t, cache.Allowed(ctx, broken.URL+"/x"))
	require.True(t, cache.Allowed(ctx, "http://127.0.0.1:1/unreachable"))
	require.True(t, cache.Allowed(ctx, "not a url"))
	require.Zero(t, cache.CrawlDelay(ctx, "not a url"))
	require.True(t, cache.Rules(ctx, missing.URL).AllowAll)
}

func TestRobotsCacheDoesNotCacheCanceledFetch(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(robotsBody))
	}))
	defer srv.Close()

	cache := NewRobotsCacheWithClient(srv.Client(), DefaultUserAgent, zap.NewNop())
	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	require.True(t, cache.Allowed(canceled, srv.URL+"/private/page"))

	require.False(t, cache.Allowed(context.Background(), srv.URL+"/private/page"))
	require.Equal(t, int32(1), hits.Load())
}

func TestAgentToken(t *testing.T) {
	t.Parallel()

	require.Equal(t, "linkcrawler", NewRobotsCacheWithClient(nil, DefaultUserAgent, nil).agentToken())
	require.Equal(t, "mybot", NewRobotsCacheWithClient(nil, "mybot", nil).agentToken())
	require.Equal(t, "Mozilla", NewRobotsCacheWithClient(nil, "Mozilla 5.0", nil).agentToken())
}

func TestRobotsRulesIsAllowed(t *testing.T) {
	t.Parallel()

	require.True(t, allowAll().IsAllowed("https://example.com/anything"))
	require.True(t, RobotsRules{}.IsAllowed("https://example.com/anything"))
}
