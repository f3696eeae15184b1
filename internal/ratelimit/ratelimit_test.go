package ratelimit

import (
	"errors"
	"testing"
	"time"
)

func newTestLimiter(requests int, window time.Duration) (*Limiter, *time.Time) {
	l := NewLimiter(Config{Requests: requests, Window: window})
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	l.SetNowFunc(func() time.Time { return now })
	return l, &now
}

func TestAllowUnderLimit(t *testing.T) {
	l, _ := newTestLimiter(5, time.Minute)
	for i := 0; i < 5; i++ {
		if err := l.Allow("u1"); err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
	}
	if err := l.Allow("u1"); !errors.Is(err, ErrRateLimited) {
		t.Errorf("6th request: err = %v, want ErrRateLimited", err)
	}
}

func TestWindowSlides(t *testing.T) {
	l, now := newTestLimiter(5, time.Minute)
	for i := 0; i < 5; i++ {
		if err := l.Allow("u1"); err != nil {
			t.Fatal(err)
		}
		*now = now.Add(time.Second)
	}
	if err := l.Allow("u1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected limit, got %v", err)
	}

	// 56s after the first request: still inside its window.
	*now = now.Add(51 * time.Second)
	if err := l.Allow("u1"); !errors.Is(err, ErrRateLimited) {
		t.Errorf("at 56s: err = %v, want ErrRateLimited", err)
	}

	// Past the first request's window: one slot frees up.
	*now = now.Add(5 * time.Second)
	if err := l.Allow("u1"); err != nil {
		t.Errorf("after window slide: %v", err)
	}
}

func TestRejectedRequestsAreNotRecorded(t *testing.T) {
	l, now := newTestLimiter(2, time.Minute)
	l.Allow("u1")
	l.Allow("u1")
	// Hammering while limited must not extend the block.
	for i := 0; i < 10; i++ {
		l.Allow("u1")
	}
	*now = now.Add(time.Minute + time.Second)
	if err := l.Allow("u1"); err != nil {
		t.Errorf("window should be clear: %v", err)
	}
}

func TestRemaining(t *testing.T) {
	l, _ := newTestLimiter(5, time.Minute)
	if got := l.Remaining("u1"); got != 5 {
		t.Errorf("fresh user remaining = %d", got)
	}
	l.Allow("u1")
	l.Allow("u1")
	if got := l.Remaining("u1"); got != 3 {
		t.Errorf("remaining = %d, want 3", got)
	}
	for i := 0; i < 5; i++ {
		l.Allow("u1")
	}
	if got := l.Remaining("u1"); got != 0 {
		t.Errorf("exhausted remaining = %d", got)
	}
}

func TestResetAfter(t *testing.T) {
	l, now := newTestLimiter(2, time.Minute)
	if got := l.ResetAfter("u1"); got != 0 {
		t.Errorf("fresh user reset = %v", got)
	}
	l.Allow("u1")
	*now = now.Add(20 * time.Second)
	if got := l.ResetAfter("u1"); got != 40*time.Second {
		t.Errorf("reset = %v, want 40s", got)
	}
}

func TestUsersAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(2, time.Minute)
	l.Allow("u1")
	l.Allow("u1")
	if err := l.Allow("u2"); err != nil {
		t.Errorf("u2 should not share u1's window: %v", err)
	}
}

func TestUnlimited(t *testing.T) {
	l := NewLimiter(Config{})
	for i := 0; i < 100; i++ {
		if err := l.Allow("u1"); err != nil {
			t.Fatalf("unlimited limiter rejected request %d", i)
		}
	}
}
