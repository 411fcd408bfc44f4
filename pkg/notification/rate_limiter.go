package notification

import (
	"sync"
	"time"
)

// WindowRateLimiter allows at most maxEvents sends per rolling window.
type WindowRateLimiter struct {
	mu        sync.Mutex
	window    time.Duration
	maxEvents int
	sent      []time.Time
	now       func() time.Time
}

// NewWindowRateLimiter creates a rate limiter that permits maxEvents
// sends within any span of the given window. A maxEvents of zero or
// less disables limiting.
func NewWindowRateLimiter(maxEvents int, window time.Duration) *WindowRateLimiter {
	return &WindowRateLimiter{
		window:    window,
		maxEvents: maxEvents,
		now:       time.Now,
	}
}

// Allow reports whether a send is permitted right now, consuming a
// slot when it is.
func (rl *WindowRateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.maxEvents <= 0 {
		return true
	}

	now := rl.now()
	cutoff := now.Add(-rl.window)

	kept := rl.sent[:0]
	for _, t := range rl.sent {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	rl.sent = kept

	if len(rl.sent) >= rl.maxEvents {
		return false
	}

	rl.sent = append(rl.sent, now)
	return true
}

// Reset forgets all recorded sends.
func (rl *WindowRateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.sent = rl.sent[:0]
}
