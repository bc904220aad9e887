package medcontent

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/datprs2k1/medcontent/internal/backoff"
)

// RetryPolicy controls how the transport reissues failed attempts. It is pure
// data plus a predicate; policies can be shared between requests or overridden
// per request via Request.Retry.
type RetryPolicy struct {
	MaxAttempts int           // total tries including the first, default 3
	BaseDelay   time.Duration // wait before the first retry, default 1s
	MaxDelay    time.Duration // cap on any single wait, default 30s
	Factor      float64       // exponential growth factor, default 2.0
	Jitter      float64       // 0..1 fraction of uniform noise added to waits
	Condition   RetryCondition
	Strategy    backoff.Strategy
}

// DefaultRetryPolicy retries network failures and 5xx responses up to three
// attempts with 1s, 2s, 4s... backoff.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Factor:      2.0,
		Jitter:      0,
		Condition:   DefaultRetryCondition,
		Strategy:    backoff.ExponentialJitter{},
	}
}

// ShouldRetry reports whether another attempt should be made after the given
// outcome, and how long to wait first. attempt counts completed attempts,
// starting at 1. A Retry-After header on 503 responses overrides the
// computed backoff when present.
func (p *RetryPolicy) ShouldRetry(resp *Response, err error, attempt int) (time.Duration, bool) {
	if attempt >= p.MaxAttempts {
		return 0, false
	}

	condition := p.Condition
	if condition == nil {
		condition = DefaultRetryCondition
	}
	if !condition(resp, err) {
		return 0, false
	}

	var delay time.Duration
	if resp != nil {
		delay = parseRetryAfter(resp.Header.Get("Retry-After"))
	}
	if delay == 0 {
		delay = p.Delay(attempt - 1)
	}
	return delay, true
}

// Delay returns the backoff before the retry following the given zero-based attempt.
func (p *RetryPolicy) Delay(attempt int) time.Duration {
	strategy := p.Strategy
	if strategy == nil {
		strategy = backoff.ExponentialJitter{}
	}
	return strategy.Delay(attempt, p.BaseDelay, p.MaxDelay, p.Factor, p.Jitter)
}

// DefaultRetryCondition retries when no response was received (network or
// timeout failure) or the server answered with a 5xx. Client errors (4xx)
// never retry.
func DefaultRetryCondition(resp *Response, err error) bool {
	if resp == nil {
		return err != nil
	}
	return resp.StatusCode >= 500 && resp.StatusCode <= 599
}

// parseRetryAfter parses a Retry-After header in either delay-seconds or
// HTTP-date format. Results are capped at one hour.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		if seconds > 0 {
			delay := time.Duration(seconds) * time.Second
			if delay > time.Hour {
				delay = time.Hour
			}
			return delay
		}
		return 0
	}

	if t, err := http.ParseTime(value); err == nil {
		delay := time.Until(t)
		if delay > 0 && delay <= time.Hour {
			return delay
		}
	}

	return 0
}
