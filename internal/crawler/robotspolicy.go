package crawler

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

const robotsFetchTimeout = 10 * time.Second

// RobotsRules is the policy derived from one origin's robots.txt.
type RobotsRules struct {
	AllowAll   bool
	CrawlDelay time.Duration
	group      *robotstxt.Group
}

// IsAllowed reports whether rawURL's path may be fetched under these rules.
func (r RobotsRules) IsAllowed(rawURL string) bool {
	if r.AllowAll || r.group == nil {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	return r.group.Test(p)
}

func allowAll() RobotsRules {
	return RobotsRules{AllowAll: true}
}

// RobotsCache fetches and caches robots.txt rules per origin. Entries never
// expire for the lifetime of the cache.
type RobotsCache struct {
	client    *http.Client
	userAgent string
	logger    *zap.Logger

	mu    sync.Mutex
	rules map[string]RobotsRules
}

// NewRobotsCache builds a cache that identifies itself with userAgent.
func NewRobotsCache(userAgent string, verifySSL bool, logger *zap.Logger) *RobotsCache {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !verifySSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via settings
	}
	return NewRobotsCacheWithClient(&http.Client{
		Timeout:   robotsFetchTimeout,
		Transport: transport,
	}, userAgent, logger)
}

// NewRobotsCacheWithClient builds a cache using the provided HTTP client.
func NewRobotsCacheWithClient(client *http.Client, userAgent string, logger *zap.Logger) *RobotsCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &RobotsCache{
		client:    client,
		userAgent: userAgent,
		logger:    logger,
		rules:     make(map[string]RobotsRules),
	}
}

// Allowed implements RobotsPolicy.
func (c *RobotsCache) Allowed(ctx context.Context, rawURL string) bool {
	origin, ok := originOf(rawURL)
	if !ok {
		return true
	}
	return c.Rules(ctx, origin).IsAllowed(rawURL)
}

// CrawlDelay implements RobotsPolicy.
func (c *RobotsCache) CrawlDelay(ctx context.Context, rawURL string) time.Duration {
	origin, ok := originOf(rawURL)
	if !ok {
		return 0
	}
	return c.Rules(ctx, origin).CrawlDelay
}

// Rules returns the cached rules for origin (scheme://host), fetching them on first use.
// Any failure to fetch or parse yields allow-all. A fetch cut short by ctx
// is not cached.
func (c *RobotsCache) Rules(ctx context.Context, origin string) RobotsRules {
	key := strings.ToLower(origin)
	c.mu.Lock()
	if rules, ok := c.rules[key]; ok {
		c.mu.Unlock()
		return rules
	}
	c.mu.Unlock()

	rules, err := c.fetch(ctx, origin)
	if err != nil && ctx.Err() != nil {
		c.logger.Debug("robots fetch canceled; not caching", zap.String("origin", origin), zap.Error(err))
		return allowAll()
	}
	if err != nil {
		c.logger.Warn("robots fetch failed; allowing access", zap.String("origin", origin), zap.Error(err))
		rules = allowAll()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.rules[key]; ok {
		return existing
	}
	c.rules[key] = rules
	return rules
}

func (c *RobotsCache) fetch(ctx context.Context, origin string) (RobotsRules, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(origin, "/")+"/robots.txt", nil)
	if err != nil {
		return RobotsRules{}, fmt.Errorf("new robots request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	resp, err := c.client.Do(req)
	if err != nil {
		return RobotsRules{}, fmt.Errorf("fetch robots: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("Failed to close robots response body", zap.Error(cerr))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("robots.txt unavailable; allowing all",
			zap.String("origin", origin),
			zap.Int("status", resp.StatusCode),
		)
		return allowAll(), nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return RobotsRules{}, fmt.Errorf("read robots body: %w", err)
	}
	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return RobotsRules{}, fmt.Errorf("parse robots: %w", err)
	}
	group := data.FindGroup(c.agentToken())
	if group == nil {
		return allowAll(), nil
	}
	return RobotsRules{group: group, CrawlDelay: group.CrawlDelay}, nil
}

// agentToken is the product token robots.txt groups are matched against.
func (c *RobotsCache) agentToken() string {
	token := c.userAgent
	if idx := strings.IndexAny(token, "/ "); idx > 0 {
		token = token[:idx]
	}
	return token
}

func originOf(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return u.Scheme + "://" + u.Host, true
}

type allowAllPolicy struct{}

func (allowAllPolicy) Allowed(context.Context, string) bool             { return true }
func (allowAllPolicy) CrawlDelay(context.Context, string) time.Duration { return 0 }
