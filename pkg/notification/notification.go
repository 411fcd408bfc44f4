// Package notification provides notification functionality.
package notification

import "time"

// Kind classifies what a notification is about.
type Kind string

const (
	// KindWaiting means a tracked app has gone quiet and waiting has begun.
	KindWaiting Kind = "waiting"
	// KindWorkout means the waiting period elapsed and a break is due.
	KindWorkout Kind = "workout"
	// KindAppExited means the tracked app left the foreground.
	KindAppExited Kind = "app_exited"
)

// Notification represents a notification to be sent.
type Notification struct {
	Title   string
	Message string
	Time    time.Time
	Kind    Kind
}

// Notifier sends notifications.
type Notifier interface {
	Send(notification Notification) error
}
