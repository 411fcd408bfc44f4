// Package testutil provides thread-safe mock implementations of the
// collaborator interfaces for use in tests.
package testutil

import (
	"context"
	"sync"

	"vibebreak/pkg/notification"
)

// MockForegroundSource is a settable foreground-app source.
type MockForegroundSource struct {
	mu    sync.Mutex
	name  string
	err   error
	calls int
}

// NewMockForegroundSource creates a source reporting the given app name.
func NewMockForegroundSource(name string) *MockForegroundSource {
	return &MockForegroundSource{name: name}
}

// ActiveAppName implements interfaces.ForegroundSource.
func (m *MockForegroundSource) ActiveAppName() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.name, m.err
}

// Set changes the reported app name and error.
func (m *MockForegroundSource) Set(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.name = name
	m.err = err
}

// Calls returns how many times the source was queried.
func (m *MockForegroundSource) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockCPUSampler returns a fixed CPU percentage and records the patterns
// it was asked about.
type MockCPUSampler struct {
	mu       sync.Mutex
	percent  float64
	err      error
	patterns []string
}

// NewMockCPUSampler creates a sampler reporting the given percentage.
func NewMockCPUSampler(percent float64) *MockCPUSampler {
	return &MockCPUSampler{percent: percent}
}

// CPUPercent implements interfaces.CPUSampler.
func (m *MockCPUSampler) CPUPercent(_ context.Context, namePattern string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patterns = append(m.patterns, namePattern)
	if m.err != nil {
		return 0, m.err
	}
	return m.percent, nil
}

// Set changes the reported percentage and error.
func (m *MockCPUSampler) Set(percent float64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.percent = percent
	m.err = err
}

// Requests returns a copy of the recorded patterns.
func (m *MockCPUSampler) Requests() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.patterns))
	copy(out, m.patterns)
	return out
}

// MockInputSource captures the subscribed callback so tests can inject
// input events on demand.
type MockInputSource struct {
	mu         sync.Mutex
	onEvent    func()
	subscribed bool
	closed     bool
}

// NewMockInputSource creates an input source with no subscriber.
func NewMockInputSource() *MockInputSource {
	return &MockInputSource{}
}

// Subscribe implements interfaces.InputSource.
func (m *MockInputSource) Subscribe(onEvent func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEvent = onEvent
	m.subscribed = true
	m.closed = false
	return nil
}

// Close implements interfaces.InputSource.
func (m *MockInputSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEvent = nil
	m.closed = true
	return nil
}

// Fire delivers one input event to the subscriber, if any.
func (m *MockInputSource) Fire() {
	m.mu.Lock()
	cb := m.onEvent
	m.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// Closed reports whether Close was called after the last Subscribe.
func (m *MockInputSource) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// MockNotifier is a thread-safe notifier that records everything it is
// asked to send.
type MockNotifier struct {
	mu            sync.Mutex
	notifications []notification.Notification
	sendErr       error
}

// NewMockNotifier creates an empty mock notifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

// Send implements notification.Notifier.
func (m *MockNotifier) Send(n notification.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.notifications = append(m.notifications, n)
	return nil
}

// SetError makes subsequent sends fail with err.
func (m *MockNotifier) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// Sent returns a copy of the recorded notifications.
func (m *MockNotifier) Sent() []notification.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]notification.Notification, len(m.notifications))
	copy(out, m.notifications)
	return out
}

// EventRecorder records transition callback invocations in order.
type EventRecorder struct {
	mu     sync.Mutex
	events []string
}

// NewEventRecorder creates an empty recorder.
func NewEventRecorder() *EventRecorder {
	return &EventRecorder{}
}

// Record appends an event label.
func (r *EventRecorder) Record(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of the recorded labels.
func (r *EventRecorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

// Count returns how many events with the given label were recorded.
func (r *EventRecorder) Count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}
