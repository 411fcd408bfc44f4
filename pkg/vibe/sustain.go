package vibe

import "time"

// SustainTracker converts a raw CPU-percentage sample stream into a
// debounced "actively working" signal. It is deliberately asymmetric:
// the high-CPU condition must hold continuously for the sustain window
// before Active reports true, but a single sample below the threshold
// drops the signal immediately. A brief spike should not count as the
// tool working; a stale "working" reading must not outlive the work.
//
// SustainTracker is not safe for concurrent use; the monitor serializes
// access under its own lock.
type SustainTracker struct {
	threshold float64
	window    time.Duration

	lastSample float64
	highSince  time.Time
	active     bool
}

// NewSustainTracker creates a tracker for the given CPU threshold (in
// percent) and sustain window.
func NewSustainTracker(threshold float64, window time.Duration) *SustainTracker {
	return &SustainTracker{threshold: threshold, window: window}
}

// Observe applies a point sample taken at now.
func (t *SustainTracker) Observe(cpuPercent float64, now time.Time) {
	t.lastSample = cpuPercent

	if cpuPercent < t.threshold {
		t.highSince = time.Time{}
		t.active = false
		return
	}

	if t.highSince.IsZero() {
		t.highSince = now
	}
	if now.Sub(t.highSince) >= t.window {
		t.active = true
	}
}

// Active reports whether the high-CPU condition has held for the full
// sustain window.
func (t *SustainTracker) Active() bool {
	return t.active
}

// LastSample returns the most recently observed CPU percentage.
func (t *SustainTracker) LastSample() float64 {
	return t.lastSample
}

// Reset clears all tracker state, as when monitoring restarts.
func (t *SustainTracker) Reset() {
	t.lastSample = 0
	t.highSince = time.Time{}
	t.active = false
}

// Reconfigure replaces the threshold and window. An open sustain window
// survives only if the current sample still clears the new threshold.
func (t *SustainTracker) Reconfigure(threshold float64, window time.Duration) {
	t.threshold = threshold
	t.window = window
	if t.lastSample < threshold {
		t.highSince = time.Time{}
		t.active = false
	}
}
