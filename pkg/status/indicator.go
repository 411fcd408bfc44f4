// Package status renders a one-line activity indicator in the terminal.
package status

import (
	"fmt"
	"io"
	"sync"
	"time"

	"vibebreak/pkg/vibe"
)

// Indicator writes the current activity state to a terminal as a
// single line, redrawn in place.
type Indicator struct {
	mu      sync.Mutex
	writer  io.Writer
	enabled bool
	drawn   bool
}

// NewIndicator creates an indicator writing to writer. When enabled is
// false every method is a no-op, so callers do not need to branch on
// quiet mode themselves.
func NewIndicator(writer io.Writer, enabled bool) *Indicator {
	return &Indicator{
		writer:  writer,
		enabled: enabled,
	}
}

// Update redraws the indicator for the given state.
func (i *Indicator) Update(state vibe.State) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.enabled || i.writer == nil {
		return
	}

	// \r + clear line, then the state text without a newline so the
	// next update overwrites it.
	_, _ = fmt.Fprintf(i.writer, "\r\033[2K%s", stateText(state))
	i.drawn = true
}

// Clear erases the indicator line.
func (i *Indicator) Clear() {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.enabled || i.writer == nil || !i.drawn {
		return
	}

	_, _ = fmt.Fprint(i.writer, "\r\033[2K")
	i.drawn = false
}

// stateText formats a state with per-kind color.
func stateText(state vibe.State) string {
	switch state.Kind {
	case vibe.StateInTrackedApp:
		return fmt.Sprintf("\033[32m▶\033[0m %s", state.App)
	case vibe.StateWaiting:
		return fmt.Sprintf("\033[33m⏳\033[0m %s quiet for %s", state.App, state.WaitingElapsed.Round(time.Second))
	case vibe.StateWorkoutTriggered:
		return fmt.Sprintf("\033[31m●\033[0m break time (%s)", state.App)
	default:
		return "\033[90m○\033[0m idle"
	}
}
