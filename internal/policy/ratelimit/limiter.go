// Package ratelimit paces calls to paid upstream scrapers. Each provider gets
// its own token bucket so a burst of browser sessions never delays the actor
// fallback.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/business-discovery/internal/metrics"
)

// Rate is a provider's budget. A non-positive PerSecond means unlimited.
type Rate struct {
	PerSecond float64
	Burst     int
}

func (r Rate) bucket() *rate.Limiter {
	if r.PerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := r.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(r.PerSecond), burst)
}

// Limiter holds one bucket per provider. Buckets are fixed at construction,
// so Wait needs no locking.
type Limiter struct {
	buckets map[string]*rate.Limiter
}

// New builds a Limiter from per-provider rates. Providers not listed are
// never delayed.
func New(rates map[string]Rate) *Limiter {
	l := &Limiter{buckets: make(map[string]*rate.Limiter, len(rates))}
	for provider, r := range rates {
		l.buckets[provider] = r.bucket()
	}
	return l
}

// Wait blocks until provider may start another call or ctx ends. A nil
// Limiter never blocks.
func (l *Limiter) Wait(ctx context.Context, provider string) error {
	if l == nil {
		return nil
	}
	bucket, ok := l.buckets[provider]
	if !ok {
		return nil
	}
	start := time.Now()
	if err := bucket.Wait(ctx); err != nil {
		return fmt.Errorf("%s rate limit: %w", provider, err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(provider, waited)
	}
	return nil
}
