// Package ratelimit implements a per-host token bucket that keeps the job
// search API under its request quota.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DelayObserver is told how long a caller waited for a token.
type DelayObserver func(host string, waited time.Duration)

// Limiter manages per-host rate limits.
type Limiter struct {
	mu           sync.Mutex
	limiters     map[string]*rate.Limiter
	defaultRate  rate.Limit
	defaultBurst int
	observe      DelayObserver
}

// Config holds rate limiter configuration.
type Config struct {
	// RequestsPerSecond <= 0 disables limiting.
	RequestsPerSecond float64
	Burst             int
	OnDelay           DelayObserver
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.RequestsPerSecond)
	if cfg.RequestsPerSecond <= 0 {
		r = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  r,
		defaultBurst: burst,
		observe:      cfg.OnDelay,
	}
}

// Wait blocks until a token is available for the host of rawURL, respecting the context.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	host := hostOf(rawURL)
	limiter := l.limiterFor(host)

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	// An immediately available token is not a delay.
	if waited := time.Since(start); waited > time.Millisecond && l.observe != nil {
		l.observe(host, waited)
	}
	return nil
}

func (l *Limiter) limiterFor(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
		l.limiters[host] = limiter
	}
	return limiter
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return u.Hostname()
}
