// Package ratelimit paces outgoing requests.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter spaces requests by a fixed delay. The first request passes
// immediately; each later one waits until delay has elapsed since the last.
type Limiter struct {
	mu      sync.RWMutex
	limiter *rate.Limiter
	delay   time.Duration
	waits   int64
}

// NewDelayLimiter creates a limiter that enforces delay between requests.
// A delay of zero or less disables pacing.
func NewDelayLimiter(delay time.Duration) *Limiter {
	l := &Limiter{}
	l.limiter = rate.NewLimiter(limitFor(delay), 1)
	if delay > 0 {
		l.delay = delay
	}
	return l
}

func limitFor(delay time.Duration) rate.Limit {
	if delay <= 0 {
		return rate.Inf
	}
	return rate.Every(delay)
}

// Wait blocks until a request is allowed or context is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	l.waits++
	l.mu.Unlock()
	return l.limiter.Wait(ctx)
}

// Stats returns the pacing settings and how many requests have waited.
func (l *Limiter) Stats() LimiterStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return LimiterStats{
		Rate:  float64(l.limiter.Limit()),
		Burst: l.limiter.Burst(),
		Delay: l.delay,
		Waits: l.waits,
	}
}

// LimiterStats contains rate limiter statistics.
type LimiterStats struct {
	Rate  float64       `json:"rate"`
	Burst int           `json:"burst"`
	Delay time.Duration `json:"delay"`
	Waits int64         `json:"waits"`
}
