package fetcher

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a single shared minimum-interval gate. Every request,
// regardless of host, reserves the next free slot; slots are at least
// interval apart.
type RateLimiter struct {
	interval time.Duration
	mu       sync.Mutex
	last     time.Time
	now      func() time.Time
}

// NewRateLimiter creates a gate with the given minimum interval.
// A zero interval never blocks.
func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{
		interval: interval,
		now:      time.Now,
	}
}

// Interval returns the configured minimum interval.
func (l *RateLimiter) Interval() time.Duration {
	return l.interval
}

// TryAcquire takes the gate if the interval has elapsed since the last
// request and reports whether it did. It never blocks.
func (l *RateLimiter) TryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if !l.last.IsZero() && now.Sub(l.last) < l.interval {
		return false
	}
	l.last = now
	return true
}

// Wait blocks until the caller's slot comes up or ctx is done.
func (l *RateLimiter) Wait(ctx context.Context) error {
	if l.TryAcquire() {
		return nil
	}

	l.mu.Lock()
	now := l.now()
	slot := now
	if !l.last.IsZero() {
		if next := l.last.Add(l.interval); next.After(now) {
			slot = next
		}
	}
	l.last = slot
	l.mu.Unlock()

	delay := slot.Sub(now)
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
