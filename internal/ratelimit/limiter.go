// Package ratelimit provides a per-adapter token-bucket limiter for the
// official_api and financial_api channels, which are the only channels
// that talk to a quota-metered partner API.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Registry hands out one rate.Limiter per named provider, creating it
// lazily with the given defaults on first use.
type Registry struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      float64
	burst    int
}

// NewRegistry returns a registry whose limiters allow rps requests/second
// with the given burst allowance.
func NewRegistry(rps float64, burst int) *Registry {
	return &Registry{
		limiters: make(map[string]*rate.Limiter),
		rps:      rps,
		burst:    burst,
	}
}

// Limiter returns the limiter for provider, creating it if necessary.
func (r *Registry) Limiter(provider string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.limiters[provider]
	if !ok {
		l = rate.NewLimiter(rate.Limit(r.rps), r.burst)
		r.limiters[provider] = l
	}
	return l
}

// Allow reports whether a request to provider may proceed right now,
// without blocking. OfficialAPIAdapter consults it from IsAvailable, so a
// false result makes the adapter report itself unavailable for that
// attempt instead of blocking the orchestrator's per-attempt deadline.
func (r *Registry) Allow(ctx context.Context, provider string) bool {
	return r.Limiter(provider).Allow()
}
