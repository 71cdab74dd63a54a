package crawler

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownStrategy is returned when a traversal strategy name is not recognized.
var ErrUnknownStrategy = errors.New("unknown crawl strategy")

// Strategy selects the traversal order of a crawl run.
type Strategy string

// Supported traversal strategies.
const (
	StrategyBreadthFirst Strategy = "breadth_first"
	StrategyDepthFirst   Strategy = "depth_first"
)

// ParseStrategy maps a user-supplied name onto a Strategy. An empty name
// selects breadth-first.
func ParseStrategy(name string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(name))) {
	case "", StrategyBreadthFirst:
		return StrategyBreadthFirst, nil
	case StrategyDepthFirst:
		return StrategyDepthFirst, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// DefaultUserAgent identifies the crawler to remote hosts.
const DefaultUserAgent = "linkcrawler/1.0 (+https://github.com/JakeFAU/linkgraph-crawler)"

// DefaultSkipExtensions lists path suffixes that are never fetched.
var DefaultSkipExtensions = []string{
	".pdf", ".zip", ".gz", ".tar", ".rar", ".7z",
	".jpg", ".jpeg", ".png", ".gif", ".bmp", ".svg", ".webp", ".ico",
	".mp3", ".mp4", ".avi", ".mov", ".wmv", ".wav",
	".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx",
	".exe", ".dmg", ".iso", ".bin",
}

// Settings is the immutable configuration of one crawl run.
type Settings struct {
	MaxDepth              int
	MaxConcurrentRequests int
	FollowExternalLinks   bool
	RespectRobotsTxt      bool
	DelayBetweenRequests  time.Duration
	Timeout               time.Duration
	ConnectTimeout        time.Duration
	MaxRetries            int
	RetryBaseDelay        time.Duration
	VerifySSL             bool
	MaxContentLength      int64
	SkipExtensions        []string
	FollowRedirects       bool
	MaxRedirects          int
	Strategy              Strategy
	LogLevel              string
	UserAgent             string
	// MaxDuration caps the wall-clock length of a run; zero means no cap.
	MaxDuration time.Duration
	// RequestsPerSecond enables a per-domain token bucket when positive.
	RequestsPerSecond float64
	// BlockedDomains lists hosts never fetched or linked; "*.example.com"
	// and ".example.com" match the domain and every subdomain.
	BlockedDomains []string
}

// DefaultSettings returns the embedded defaults callers override.
func DefaultSettings() Settings {
	return Settings{
		MaxDepth:              2,
		MaxConcurrentRequests: 5,
		FollowExternalLinks:   false,
		RespectRobotsTxt:      false,
		DelayBetweenRequests:  500 * time.Millisecond,
		Timeout:               30 * time.Second,
		ConnectTimeout:        10 * time.Second,
		MaxRetries:            3,
		RetryBaseDelay:        time.Second,
		VerifySSL:             true,
		MaxContentLength:      10 << 20,
		SkipExtensions:        append([]string(nil), DefaultSkipExtensions...),
		FollowRedirects:       true,
		MaxRedirects:          5,
		Strategy:              StrategyBreadthFirst,
		LogLevel:              "info",
		UserAgent:             DefaultUserAgent,
	}
}

// Validate rejects settings the engine cannot run with.
func (s Settings) Validate() error {
	if s.MaxDepth < 0 {
		return fmt.Errorf("max_depth must be >= 0")
	}
	if s.MaxConcurrentRequests <= 0 {
		return fmt.Errorf("max_concurrent_requests must be > 0")
	}
	if s.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0")
	}
	if s.MaxContentLength <= 0 {
		return fmt.Errorf("max_content_length must be > 0")
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0")
	}
	if _, err := ParseStrategy(string(s.Strategy)); err != nil {
		return err
	}
	return nil
}
