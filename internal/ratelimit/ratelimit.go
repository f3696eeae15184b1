// Package ratelimit implements a per-user sliding-window rate limiter.
// Thread-safe. No background goroutines — expired request timestamps are
// pruned lazily on each call.
package ratelimit

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when a user has exhausted their window.
var ErrRateLimited = errors.New("rate limit exceeded")

// Config configures the sliding-window rate limiter.
type Config struct {
	Requests int           // Requests allowed per window. 0 = unlimited (Allow always succeeds).
	Window   time.Duration // Window length. 0 = defaults to one minute.
}

// Limiter is a per-user sliding-window rate limiter. Each user gets an
// independent window; one user cannot exhaust another's quota.
type Limiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	now      func() time.Time
}

// NewLimiter creates a rate limiter with the given configuration.
// If Requests is 0, Allow always succeeds (unlimited).
func NewLimiter(cfg Config) *Limiter {
	window := cfg.Window
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{
		requests: make(map[string][]time.Time),
		limit:    cfg.Requests,
		window:   window,
		now:      time.Now,
	}
}

// SetNowFunc overrides the clock. Test hook.
func (l *Limiter) SetNowFunc(now func() time.Time) { l.now = now }

// Limit returns the configured per-window request count.
func (l *Limiter) Limit() int { return l.limit }

// Allow records a request if the user is under the limit, or returns
// ErrRateLimited without recording it.
func (l *Limiter) Allow(userID string) error {
	if l.limit <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	live := l.prune(userID, now)
	if len(live) >= l.limit {
		return ErrRateLimited
	}
	l.requests[userID] = append(live, now)
	return nil
}

// Remaining returns how many requests the user has left in the current
// window.
func (l *Limiter) Remaining(userID string) int {
	if l.limit <= 0 {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	live := l.prune(userID, l.now())
	if rem := l.limit - len(live); rem > 0 {
		return rem
	}
	return 0
}

// ResetAfter returns how long until the user's oldest recorded request
// leaves the window, i.e. when a blocked user may retry. Zero when the
// user has no recorded requests.
func (l *Limiter) ResetAfter(userID string) time.Duration {
	if l.limit <= 0 {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	live := l.prune(userID, now)
	if len(live) == 0 {
		return 0
	}
	reset := live[0].Add(l.window).Sub(now)
	if reset < 0 {
		return 0
	}
	return reset
}

// prune drops timestamps older than the window. Caller holds the lock.
func (l *Limiter) prune(userID string, now time.Time) []time.Time {
	cutoff := now.Add(-l.window)
	stamps := l.requests[userID]
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		stamps = stamps[i:]
		if len(stamps) == 0 {
			delete(l.requests, userID)
		} else {
			l.requests[userID] = stamps
		}
	}
	return stamps
}
