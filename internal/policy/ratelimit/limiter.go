// Package ratelimit implements per-domain token-bucket pacing for outbound
// fetches. Documentation hosts differ widely in tolerance, so the default
// rate can be overridden per domain.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/docrover/docrover/internal/metrics"
)

// Config holds rate limiter configuration.
type Config struct {
	// DefaultRPS applies to domains without an override; <= 0 disables
	// pacing for them.
	DefaultRPS   float64
	DefaultBurst int
	// DomainRPS maps a lowercase hostname to its requests-per-second cap.
	DomainRPS map[string]float64
}

// Limiter manages one token bucket per domain.
type Limiter struct {
	mu           sync.Mutex
	limiters     map[string]*rate.Limiter
	defaultRate  rate.Limit
	defaultBurst int
	overrides    map[string]float64
}

// New creates a Limiter from cfg.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.DefaultRPS)
	if cfg.DefaultRPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.DefaultBurst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  r,
		defaultBurst: burst,
		overrides:    cfg.DomainRPS,
	}
}

// Wait blocks until a token is available for the domain of rawURL,
// respecting ctx. The wait duration is observed as a metric.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	domain := "unknown"
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		domain = u.Hostname()
	}

	limiter := l.limiterFor(domain)

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", domain, err)
	}
	if waited := time.Since(start); waited > 0 {
		metrics.ObserveRateLimitDelay(domain, waited)
	}
	return nil
}

func (l *Limiter) limiterFor(domain string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limiter, ok := l.limiters[domain]; ok {
		return limiter
	}
	limit := l.defaultRate
	if rps, ok := l.overrides[domain]; ok {
		if rps <= 0 {
			limit = rate.Inf
		} else {
			limit = rate.Limit(rps)
		}
	}
	limiter := rate.NewLimiter(limit, l.defaultBurst)
	l.limiters[domain] = limiter
	return limiter
}
