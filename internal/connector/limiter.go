package connector

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/ppiankov/onesource/internal/model"
)

// Limiter implements per-provider rate limiting for outbound adapter calls
type Limiter struct {
	limiters     map[model.Source]*rate.Limiter
	mu           sync.RWMutex
	defaultRate  rate.Limit
	defaultBurst int
}

// NewLimiter creates a new rate limiter
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 5
	}

	return &Limiter{
		limiters:     make(map[model.Source]*rate.Limiter),
		defaultRate:  rate.Limit(requestsPerSecond),
		defaultBurst: burst,
	}
}

// Wait waits for rate limit clearance for the given provider
func (l *Limiter) Wait(ctx context.Context, source model.Source) error {
	return l.getLimiter(source).Wait(ctx)
}

// Allow checks if a request is allowed without waiting
func (l *Limiter) Allow(source model.Source) bool {
	return l.getLimiter(source).Allow()
}

// getLimiter returns the rate limiter for a provider
func (l *Limiter) getLimiter(source model.Source) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[source]
	l.mu.RUnlock()

	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := l.limiters[source]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
	l.limiters[source] = limiter

	return limiter
}

// SetProviderRate sets a custom rate limit for a specific provider
func (l *Limiter) SetProviderRate(source model.Source, requestsPerSecond float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if burst <= 0 {
		burst = l.defaultBurst
	}

	l.limiters[source] = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}
