package crawler

import (
	"errors"
	"time"
)

// ErrPageNotFound is returned by stores when no page exists for a lookup key.
var ErrPageNotFound = errors.New("page not found")

// Page is the persisted record for a discovered URL.
type Page struct {
	ID           int64      `json:"id"`
	URL          string     `json:"url"`
	Title        string     `json:"title,omitempty"`
	ContentHash  string     `json:"content_hash,omitempty"`
	Content      string     `json:"content,omitempty"`
	FirstSeen    time.Time  `json:"first_seen"`
	LastFetched  *time.Time `json:"last_fetched,omitempty"`
	CrawlDepth   int        `json:"crawl_depth"`
	StatusCode   int        `json:"status_code,omitempty"`
	Error        string     `json:"error,omitempty"`
	ContentType  string     `json:"content_type,omitempty"`
	CollectionID string     `json:"collection_id,omitempty"`
	IsSeed       bool       `json:"is_seed"`
	IsIndexed    bool       `json:"is_indexed"`
	IndexedAt    *time.Time `json:"indexed_at,omitempty"`
	CreatedBy    string     `json:"created_by,omitempty"`
	UpdatedBy    string     `json:"updated_by,omitempty"`
	APIKeyName   string     `json:"api_key_name,omitempty"`
}

// NewPage carries the fields stamped on a page at first discovery.
type NewPage struct {
	URL          string
	Depth        int
	IsSeed       bool
	FirstSeen    time.Time
	CollectionID string
	CreatedBy    string
	APIKeyName   string
}

// ContentUpdate carries the fields written after a successful fetch.
type ContentUpdate struct {
	Title       string
	ContentHash string
	Content     string
	StatusCode  int
	ContentType string
	FetchedAt   time.Time
	UpdatedBy   string
}

// ErrorUpdate carries the fields written after a failed fetch.
type ErrorUpdate struct {
	Message   string
	FetchedAt time.Time
	UpdatedBy string
}

// Link is a directed edge between two pages.
type Link struct {
	ID        int64     `json:"id"`
	SourceID  int64     `json:"source_id"`
	TargetID  int64     `json:"target_id"`
	Text      string    `json:"text,omitempty"`
	Rel       string    `json:"rel,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Identity groups the collection and audit fields applied to every write in a run.
type Identity struct {
	CollectionID string
	CreatedBy    string
	APIKeyName   string
}

// OutcomeKind tags a FetchOutcome.
type OutcomeKind int

// Fetch outcome variants.
const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeRetryable
	OutcomePermanent
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable"
	case OutcomePermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// FetchOutcome is the result of fetching a single URL.
// Body is populated only for OutcomeSuccess; StatusCode and ContentType are
// populated whenever a response was received.
type FetchOutcome struct {
	Kind        OutcomeKind
	Body        string
	StatusCode  int
	ContentType string
	Reason      string
	Timeout     bool
}

// OK reports whether the fetch succeeded.
func (o FetchOutcome) OK() bool {
	return o.Kind == OutcomeSuccess
}

// Success builds a successful outcome.
func Success(body string, status int, contentType string) FetchOutcome {
	return FetchOutcome{Kind: OutcomeSuccess, Body: body, StatusCode: status, ContentType: contentType}
}

// RetryableFailure builds an outcome the retry loop may attempt again.
func RetryableFailure(reason string) FetchOutcome {
	return FetchOutcome{Kind: OutcomeRetryable, Reason: reason}
}

// PermanentFailure builds an outcome that must not be retried.
func PermanentFailure(reason string) FetchOutcome {
	return FetchOutcome{Kind: OutcomePermanent, Reason: reason}
}

// Stats summarizes a finished crawl run.
type Stats struct {
	Strategy       Strategy      `json:"strategy"`
	URLsCrawled    int           `json:"urls_crawled"`
	URLsQueued     int           `json:"urls_queued"`
	Errors         int           `json:"errors"`
	ErrorDetails   []string      `json:"error_details,omitempty"`
	Duration       time.Duration `json:"-"`
	DurationSecs   float64       `json:"duration_seconds"`
	PagesPerSecond float64       `json:"pages_per_second"`
	StartTime      time.Time     `json:"start_time"`
	EndTime        time.Time     `json:"end_time"`
}

