package crawler

import (
	"context"
	"time"
)

// Fetcher retrieves a single URL, retrying transient failures internally.
type Fetcher interface {
	Fetch(ctx context.Context, url string) FetchOutcome
}

// LinkGraphStore persists pages and the links between them. Each call is
// an independent short transaction.
type LinkGraphStore interface {
	GetOrCreatePage(ctx context.Context, page NewPage) (Page, error)
	UpdatePageContent(ctx context.Context, pageID int64, update ContentUpdate) error
	UpdatePageError(ctx context.Context, pageID int64, update ErrorUpdate) error
	AddLink(ctx context.Context, link Link) error
	OutgoingLinks(ctx context.Context, pageID int64) ([]Page, error)
	PageByURL(ctx context.Context, url string) (Page, error)
}

// MarkdownConverter renders fetched HTML as cleaned markdown.
type MarkdownConverter interface {
	Convert(html string) (string, error)
}

// RobotsPolicy decides whether a URL may be fetched and how long to wait between hits.
type RobotsPolicy interface {
	Allowed(ctx context.Context, rawURL string) bool
	CrawlDelay(ctx context.Context, rawURL string) time.Duration
}

// Resolver verifies that a host name resolves.
type Resolver interface {
	Resolve(ctx context.Context, host string) error
}

// DomainLimiter blocks until the URL's domain may be hit again.
type DomainLimiter interface {
	Wait(ctx context.Context, url string) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces task IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
