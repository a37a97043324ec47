// Package ratelimit throttles outbound fetches per host with token buckets.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/stringfinder/internal/metrics"
	"github.com/JakeFAU/stringfinder/internal/scan"
)

// Config holds rate limiter configuration.
type Config struct {
	// PerHostRPS is the sustained request rate per host. Zero or less disables limiting.
	PerHostRPS float64
	Burst      int
}

// Limiter manages one token bucket per host.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.PerHostRPS)
	if cfg.PerHostRPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     r,
		burst:    burst,
	}
}

// Wait blocks until the host of rawURL has a token or ctx is done.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	host := "unknown"
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	l.mu.Lock()
	limiter, ok := l.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[host] = limiter
	}
	l.mu.Unlock()

	// Reserve rather than Wait: Wait gives up early when the delay runs past
	// the ctx deadline. A wait fails only once ctx is done.
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", host, err)
	}
	res := limiter.Reserve()
	delay := res.Delay()
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		metrics.ObserveRateLimitWait(delay)
		return nil
	case <-ctx.Done():
		res.Cancel()
		return fmt.Errorf("rate limit wait for %s: %w", host, ctx.Err())
	}
}

// Fetcher waits on the Limiter before delegating each fetch.
type Fetcher struct {
	next    scan.Fetcher
	limiter *Limiter
}

// Wrap returns next unchanged when limiting is disabled.
func Wrap(next scan.Fetcher, cfg Config) scan.Fetcher {
	if cfg.PerHostRPS <= 0 {
		return next
	}
	return &Fetcher{next: next, limiter: New(cfg)}
}

// Fetch implements scan.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, req scan.FetchRequest) (scan.FetchResponse, error) {
	if err := f.limiter.Wait(ctx, req.URL); err != nil {
		return scan.FetchResponse{}, err
	}
	resp, err := f.next.Fetch(ctx, req)
	if err != nil {
		return scan.FetchResponse{}, fmt.Errorf("fetch %s: %w", req.URL, err)
	}
	return resp, nil
}
