package notification

import (
	"fmt"
	"sync"
	"time"

	"vibebreak/pkg/interfaces"
)

// Manager turns activity transitions into notifications, applying rate
// limiting and rotating through an exercise catalog for workout prompts.
type Manager struct {
	mu          sync.Mutex
	notifier    Notifier
	rateLimiter interfaces.RateLimiter
	exercises   []string
	nextIdx     int
	now         func() time.Time
}

// NewManager creates a notification manager. notifier must not be nil;
// rateLimiter may be nil to disable limiting; exercises may be empty,
// in which case a generic break prompt is used.
func NewManager(notifier Notifier, rateLimiter interfaces.RateLimiter, exercises []string) *Manager {
	return &Manager{
		notifier:    notifier,
		rateLimiter: rateLimiter,
		exercises:   exercises,
		now:         time.Now,
	}
}

// WaitingStarted announces that the user has gone quiet in the given
// app and the workout timer is running.
func (m *Manager) WaitingStarted(app string) {
	m.send(Notification{
		Title:   "Waiting",
		Message: fmt.Sprintf("No input in %s. Break timer started.", app),
		Time:    m.now(),
		Kind:    KindWaiting,
	})
}

// WorkoutTriggered announces that a break is due in the given app,
// prompting the next exercise from the catalog.
func (m *Manager) WorkoutTriggered(app string) {
	m.mu.Lock()
	exercise := m.nextExerciseLocked()
	m.mu.Unlock()

	m.send(Notification{
		Title:   "Time for a break",
		Message: fmt.Sprintf("%s has been quiet for a while. %s", app, exercise),
		Time:    m.now(),
		Kind:    KindWorkout,
	})
}

// AppExited announces that the tracked app left the foreground.
func (m *Manager) AppExited(app string) {
	m.send(Notification{
		Title:   "Session ended",
		Message: fmt.Sprintf("%s is no longer in front.", app),
		Time:    m.now(),
		Kind:    KindAppExited,
	})
}

// send delivers a notification, dropping it when rate limited.
// Notifications are best effort; delivery errors are swallowed.
func (m *Manager) send(n Notification) {
	if m.rateLimiter != nil && !m.rateLimiter.Allow() {
		return
	}
	_ = m.notifier.Send(n)
}

func (m *Manager) nextExerciseLocked() string {
	if len(m.exercises) == 0 {
		return "Stand up and stretch."
	}
	exercise := m.exercises[m.nextIdx%len(m.exercises)]
	m.nextIdx++
	return exercise
}
