package input

import "time"

// SystemIdleTime reports how long the system has gone without user
// input, using the platform idle counter.
func SystemIdleTime() (time.Duration, error) {
	return systemIdleTime()
}
