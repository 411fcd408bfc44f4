//go:build !darwin && !linux
// +build !darwin,!linux

package input

import (
	"fmt"
	"time"
)

// systemIdleTime has no implementation here; the watcher falls back to
// pointer movement alone.
func systemIdleTime() (time.Duration, error) {
	return 0, fmt.Errorf("idle counter not supported on this platform")
}
