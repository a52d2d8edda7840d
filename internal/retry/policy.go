// Package retry provides jittered exponential backoff for transient upstream
// failures.
package retry

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"net"
	"net/http"
	"time"
)

// StatusError reports a non-2xx HTTP response from an upstream API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// Temporary reports whether the status is worth retrying.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}

// ExponentialPolicy retries transient failures with jittered backoff.
type ExponentialPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	// throttleOnly limits retries to 429 responses.
	throttleOnly bool
}

// NewExponentialPolicy builds a policy with sane defaults.
func NewExponentialPolicy() *ExponentialPolicy {
	return &ExponentialPolicy{
		maxAttempts: 3,
		baseDelay:   250 * time.Millisecond,
		maxDelay:    5 * time.Second,
	}
}

// WithMaxAttempts overrides the attempt ceiling.
func (p *ExponentialPolicy) WithMaxAttempts(n int) *ExponentialPolicy {
	if n > 0 {
		p.maxAttempts = n
	}
	return p
}

// WithDelays overrides the base and maximum backoff.
func (p *ExponentialPolicy) WithDelays(base, maxDelay time.Duration) *ExponentialPolicy {
	p.baseDelay = base
	p.maxDelay = maxDelay
	return p
}

// ForCreate returns a copy for calls that create billable upstream resources.
// It retries only 429 responses, which are refused before any work is done.
// A 5xx or a timeout may have created the resource anyway, and repeating the
// call would orphan it.
func (p *ExponentialPolicy) ForCreate() *ExponentialPolicy {
	if p == nil {
		p = NewExponentialPolicy()
	}
	cp := *p
	cp.throttleOnly = true
	return &cp
}

// ShouldRetry decides whether the error is retryable. attempt counts the
// attempts already made.
func (p *ExponentialPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.maxAttempts {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if p.throttleOnly {
		return errors.As(err, &statusErr) && statusErr.Code == http.StatusTooManyRequests
	}
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// Backoff returns the wait duration before the next attempt.
func (p *ExponentialPolicy) Backoff(attempt int) time.Duration {
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	jitter := randomJitter(time.Duration(delay) / 2)
	return time.Duration(delay/2) + jitter
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

// Do runs fn until it succeeds, the policy gives up, or ctx ends.
func Do[T any](ctx context.Context, p *ExponentialPolicy, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 1; ; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		if !p.ShouldRetry(err, attempt) {
			return zero, err
		}
		timer := time.NewTimer(p.Backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("retry aborted after %d attempts: %w", attempt, errors.Join(err, ctx.Err()))
		case <-timer.C:
		}
	}
}
