// Package interfaces defines the core interfaces used throughout the application.
package interfaces

import "context"

// ForegroundSource reports the name of the currently frontmost application.
// A query may legitimately fail (compositor restart, permission prompt,
// transient scripting error); callers are expected to treat a failure as
// "no information" rather than as an idle signal.
type ForegroundSource interface {
	ActiveAppName() (string, error)
}

// CPUSampler returns the CPU percentage consumed over a recent window by
// processes whose name matches the given pattern. Implementations must
// honor ctx cancellation; a failed sample is reported as an error, never
// as a stale value.
type CPUSampler interface {
	CPUPercent(ctx context.Context, namePattern string) (float64, error)
}

// InputSource delivers keyboard/pointer activity notifications. The
// onEvent callback may be invoked from any goroutine; subscribers must do
// their own serialization. Close releases the subscription and does not
// return until no further callbacks will fire.
type InputSource interface {
	Subscribe(onEvent func()) error
	Close() error
}

// RateLimiter limits notification frequency.
type RateLimiter interface {
	Allow() bool
	Reset()
}
