package crawler

import (
	"math"
	"time"
)

// RetryPolicy decides how often and how long to back off when a fetch fails transiently.
type RetryPolicy interface {
	ShouldRetry(outcome FetchOutcome, attempt int) bool
	Backoff(attempt int) time.Duration
	Attempts() int
}

// ExponentialRetryPolicy sleeps baseDelay*2^attempt between attempts.
type ExponentialRetryPolicy struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// NewExponentialRetryPolicy builds a policy allowing maxRetries retries after the first attempt.
func NewExponentialRetryPolicy(maxRetries int, baseDelay time.Duration) *ExponentialRetryPolicy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &ExponentialRetryPolicy{
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   2 * time.Minute,
	}
}

// Attempts returns the total number of attempts the policy allows.
func (p *ExponentialRetryPolicy) Attempts() int {
	return p.maxRetries + 1
}

// ShouldRetry reports whether another attempt follows the zero-based attempt that produced outcome.
func (p *ExponentialRetryPolicy) ShouldRetry(outcome FetchOutcome, attempt int) bool {
	if outcome.Kind != OutcomeRetryable {
		return false
	}
	return attempt < p.maxRetries
}

// Backoff returns the wait before the attempt following the zero-based attempt.
func (p *ExponentialRetryPolicy) Backoff(attempt int) time.Duration {
	if p.baseDelay <= 0 {
		return 0
	}
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	return time.Duration(delay)
}
