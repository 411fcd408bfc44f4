// Package vibe implements the activity state machine: it fuses the
// frontmost application, time since last input, and sustained companion
// process CPU usage into a single state that decides when the user is
// waiting on an AI coding tool and when to prompt a workout.
package vibe

import "time"

// StateKind identifies the current detection state.
type StateKind int

const (
	// StateIdle means no tracked application is frontmost.
	StateIdle StateKind = iota
	// StateInTrackedApp means a tracked application is frontmost but the
	// user is not yet considered waiting.
	StateInTrackedApp
	// StateWaiting means the user has been idle past the threshold while
	// a tracked app is frontmost and its tool is working.
	StateWaiting
	// StateWorkoutTriggered means the waiting duration crossed the
	// trigger; it persists until input activity or an explicit reset.
	StateWorkoutTriggered
)

// String returns a human-readable state name.
func (k StateKind) String() string {
	switch k {
	case StateIdle:
		return "idle"
	case StateInTrackedApp:
		return "in_tracked_app"
	case StateWaiting:
		return "waiting"
	case StateWorkoutTriggered:
		return "workout_triggered"
	default:
		return "unknown"
	}
}

// State is a snapshot of the machine. App is set for every state except
// StateIdle; WaitingElapsed is meaningful only in StateWaiting.
type State struct {
	Kind           StateKind
	App            string
	WaitingElapsed time.Duration
}

// Callbacks are the transition notifications delivered to the
// presentation layer. Each fires at most once per corresponding
// transition edge, outside the monitor's lock. Nil members are skipped.
type Callbacks struct {
	OnWaitingStarted   func(app string)
	OnWaitingStopped   func()
	OnWorkoutTriggered func()
	OnAppExited        func()
}
