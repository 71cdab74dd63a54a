// Package collyfetcher implements crawler.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkgraph-crawler/internal/crawler"
	"github.com/JakeFAU/linkgraph-crawler/internal/metrics"
)

const (
	acceptHeader         = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	acceptLanguageHeader = "en-US,en;q=0.9"
)

var errTooManyRedirects = errors.New("too many redirects")

// Config controls collector behavior.
type Config struct {
	UserAgent        string
	Timeout          time.Duration
	ConnectTimeout   time.Duration
	VerifySSL        bool
	FollowRedirects  bool
	MaxRedirects     int
	MaxContentLength int64
	MaxRetries       int
	RetryBaseDelay   time.Duration
}

// ConfigFromSettings maps crawl settings onto fetcher configuration.
func ConfigFromSettings(s crawler.Settings) Config {
	return Config{
		UserAgent:        s.UserAgent,
		Timeout:          s.Timeout,
		ConnectTimeout:   s.ConnectTimeout,
		VerifySSL:        s.VerifySSL,
		FollowRedirects:  s.FollowRedirects,
		MaxRedirects:     s.MaxRedirects,
		MaxContentLength: s.MaxContentLength,
		MaxRetries:       s.MaxRetries,
		RetryBaseDelay:   s.RetryBaseDelay,
	}
}

// Fetcher implements crawler.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	retry         crawler.RetryPolicy
	baseCollector *colly.Collector
	logger        *zap.Logger
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponseHeaders(colly.ResponseHeadersCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// attemptState collects what the collector callbacks observed for one attempt.
type attemptState struct {
	gotResponse bool
	status      int
	contentType string
	body        []byte
	declared    int64
	tooLarge    bool
	err         error
}

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.MaxContentLength <= 0 {
		cfg.MaxContentLength = 10 << 20
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = crawler.DefaultUserAgent
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.WithTransport(newHTTPTransport(cfg))
	c.SetRequestTimeout(cfg.Timeout)
	c.SetRedirectHandler(redirectPolicy(cfg))

	return &Fetcher{
		cfg:           cfg,
		retry:         crawler.NewExponentialRetryPolicy(cfg.MaxRetries, cfg.RetryBaseDelay),
		baseCollector: c,
		logger:        logger,
	}
}

// Fetch implements crawler.Fetcher. Retryable outcomes are attempted again
// with exponential backoff until the policy is exhausted.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) crawler.FetchOutcome {
	attempts := f.retry.Attempts()
	var outcome crawler.FetchOutcome
	for attempt := 0; attempt < attempts; attempt++ {
		start := time.Now()
		outcome = f.attempt(ctx, rawURL)
		metrics.ObserveFetchAttempt(rawURL, outcome.Kind.String(), time.Since(start))
		if !f.retry.ShouldRetry(outcome, attempt) {
			break
		}
		delay := f.retry.Backoff(attempt)
		f.logger.Debug("retrying fetch",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.String("reason", outcome.Reason),
		)
		if err := sleepWithContext(ctx, delay); err != nil {
			return crawler.PermanentFailure(fmt.Sprintf("fetch canceled: %v", err))
		}
	}
	if outcome.Kind == crawler.OutcomeRetryable && outcome.Timeout {
		outcome.Reason = fmt.Sprintf("timeout after %d attempts", attempts)
	}
	return outcome
}

func (f *Fetcher) attempt(ctx context.Context, rawURL string) crawler.FetchOutcome {
	var state attemptState
	collector := f.buildCollector(ctx)
	f.configureCollectorHooks(collector, &state)
	err := f.runCollector(ctx, collector, rawURL)
	return f.classify(ctx, &state, err)
}

func (f *Fetcher) buildCollector(ctx context.Context) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.UserAgent = f.cfg.UserAgent
	collector.AllowURLRevisit = true
	collector.IgnoreRobotsTxt = true
	collector.ParseHTTPErrorResponse = true
	collector.DetectCharset = false
	// One extra byte lets an oversized body be told apart from one at the limit.
	collector.MaxBodySize = int(f.cfg.MaxContentLength + 1)
	collector.Context = ctx
	return collector
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, state *attemptState) {
	hooks.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", acceptHeader)
		r.Headers.Set("Accept-Language", acceptLanguageHeader)
	})

	hooks.OnResponseHeaders(func(r *colly.Response) {
		state.status = r.StatusCode
		state.contentType = r.Headers.Get("Content-Type")
		if raw := r.Headers.Get("Content-Length"); raw != "" {
			if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n > f.cfg.MaxContentLength {
				state.tooLarge = true
				state.declared = n
				r.Request.Abort()
			}
		}
	})

	hooks.OnResponse(func(r *colly.Response) {
		state.gotResponse = true
		state.status = r.StatusCode
		if r.Headers != nil {
			state.contentType = r.Headers.Get("Content-Type")
		}
		state.body = append([]byte(nil), r.Body...)
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		state.err = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, rawURL string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

func (f *Fetcher) classify(ctx context.Context, state *attemptState, err error) crawler.FetchOutcome {
	if state.tooLarge {
		outcome := crawler.PermanentFailure(fmt.Sprintf(
			"content length %d exceeds maximum %d", state.declared, f.cfg.MaxContentLength))
		outcome.StatusCode = state.status
		outcome.ContentType = state.contentType
		return outcome
	}
	if err == nil {
		err = state.err
	}
	if err != nil && !state.gotResponse {
		return classifyError(ctx, err)
	}
	if !state.gotResponse {
		return crawler.PermanentFailure("no response received")
	}

	var outcome crawler.FetchOutcome
	switch {
	case state.status >= http.StatusInternalServerError:
		outcome = crawler.RetryableFailure(fmt.Sprintf("HTTP %d", state.status))
	case state.status < http.StatusOK || state.status >= http.StatusMultipleChoices:
		outcome = crawler.PermanentFailure(fmt.Sprintf("HTTP %d", state.status))
	case int64(len(state.body)) > f.cfg.MaxContentLength:
		outcome = crawler.PermanentFailure(fmt.Sprintf(
			"content size exceeds maximum %d", f.cfg.MaxContentLength))
	default:
		return crawler.Success(decodeBody(state.body, state.contentType), state.status, state.contentType)
	}
	outcome.StatusCode = state.status
	outcome.ContentType = state.contentType
	return outcome
}

func classifyError(ctx context.Context, err error) crawler.FetchOutcome {
	if ctx.Err() != nil {
		return crawler.PermanentFailure(fmt.Sprintf("fetch canceled: %v", ctx.Err()))
	}
	if errors.Is(err, errTooManyRedirects) {
		return crawler.PermanentFailure(err.Error())
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		outcome := crawler.RetryableFailure(fmt.Sprintf("timeout: %v", err))
		outcome.Timeout = true
		return outcome
	}
	var urlErr *url.Error
	var opErr *net.OpError
	if errors.As(err, &urlErr) || errors.As(err, &opErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return crawler.RetryableFailure(fmt.Sprintf("request failed: %v", err))
	}
	return crawler.PermanentFailure(err.Error())
}

func redirectPolicy(cfg Config) func(*http.Request, []*http.Request) error {
	return func(_ *http.Request, via []*http.Request) error {
		if !cfg.FollowRedirects {
			return http.ErrUseLastResponse
		}
		if len(via) > cfg.MaxRedirects {
			return fmt.Errorf("%w: stopped after %d", errTooManyRedirects, cfg.MaxRedirects)
		}
		return nil
	}
}

func newHTTPTransport(cfg Config) *http.Transport {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
	if !cfg.VerifySSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via settings
	}
	return transport
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("sleep canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
