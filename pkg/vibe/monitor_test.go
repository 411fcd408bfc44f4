package vibe

import (
	"errors"
	"sync"
	"testing"
	"time"

	"vibebreak/pkg/testutil"
)

// fakeClock drives the monitor's time deterministically.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func testSettings() Settings {
	return Settings{
		IdleThreshold:     3 * time.Second,
		GracePeriod:       1500 * time.Millisecond,
		WorkoutTrigger:    30 * time.Second,
		CPUThreshold:      5.0,
		CPUSustain:        2 * time.Second,
		CPUSampleInterval: time.Second,
		CompanionPattern:  "claude",
	}
}

func testAppSets() AppSets {
	return NewAppSets(
		[]string{"Claude", "ChatGPT"},
		[]string{"WebStorm"},
		[]string{"iTerm2"},
	)
}

// newTestMonitor builds a monitor wired to mocks and a fake clock, with
// ticks driven manually by the test instead of real timers.
func newTestMonitor(t *testing.T, settings Settings, fg *testutil.MockForegroundSource) (*Monitor, *fakeClock, *testutil.EventRecorder) {
	t.Helper()
	clock := newFakeClock()
	rec := testutil.NewEventRecorder()
	callbacks := Callbacks{
		OnWaitingStarted:   func(app string) { rec.Record("waiting_started:" + app) },
		OnWaitingStopped:   func() { rec.Record("waiting_stopped") },
		OnWorkoutTriggered: func() { rec.Record("workout_triggered") },
		OnAppExited:        func() { rec.Record("app_exited") },
	}
	m, err := New(settings, testAppSets(), fg, nil, nil, callbacks)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	m.now = clock.Now
	m.running = true
	return m, clock, rec
}

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr bool
	}{
		{name: "valid", mutate: func(s *Settings) {}},
		{name: "zero idle threshold", mutate: func(s *Settings) { s.IdleThreshold = 0 }, wantErr: true},
		{name: "negative grace", mutate: func(s *Settings) { s.GracePeriod = -time.Second }, wantErr: true},
		{name: "zero workout trigger", mutate: func(s *Settings) { s.WorkoutTrigger = 0 }, wantErr: true},
		{name: "zero cpu threshold", mutate: func(s *Settings) { s.CPUThreshold = 0 }, wantErr: true},
		{name: "cpu threshold over 100", mutate: func(s *Settings) { s.CPUThreshold = 101 }, wantErr: true},
		{name: "negative sustain", mutate: func(s *Settings) { s.CPUSustain = -time.Second }, wantErr: true},
		{name: "zero sample interval", mutate: func(s *Settings) { s.CPUSampleInterval = 0 }, wantErr: true},
		{name: "empty companion pattern", mutate: func(s *Settings) { s.CompanionPattern = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSettings()
			tt.mutate(&s)
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// Direct-app end-to-end walk: InTrackedApp at t=0, Waiting once
// grace+idle threshold have passed, WorkoutTriggered 30s later.
func TestMonitor_DirectAppScenario(t *testing.T) {
	fg := testutil.NewMockForegroundSource("Claude")
	m, clock, rec := newTestMonitor(t, testSettings(), fg)

	m.pollOnce()
	if snap := m.Snapshot(); snap.Kind != StateInTrackedApp || snap.App != "Claude" {
		t.Fatalf("after first poll: state = %+v, want InTrackedApp(Claude)", snap)
	}

	// Inside the grace period nothing may happen, whatever idleTime is.
	clock.Advance(time.Second)
	m.checkIdle()
	if snap := m.Snapshot(); snap.Kind != StateInTrackedApp {
		t.Fatalf("during grace: state = %v", snap.Kind)
	}

	// Past grace but under the idle threshold.
	clock.Advance(time.Second) // t=2s
	m.checkIdle()
	if snap := m.Snapshot(); snap.Kind != StateInTrackedApp {
		t.Fatalf("under idle threshold: state = %v", snap.Kind)
	}

	// t=4.5s: idle >= 3s, grace long past.
	clock.Advance(2500 * time.Millisecond)
	m.checkIdle()
	snap := m.Snapshot()
	if snap.Kind != StateWaiting {
		t.Fatalf("state = %v, want StateWaiting", snap.Kind)
	}
	if snap.WaitingElapsed != 0 {
		t.Errorf("WaitingElapsed on entry = %v, want 0", snap.WaitingElapsed)
	}
	if got := rec.Count("waiting_started:Claude"); got != 1 {
		t.Errorf("waiting_started fired %d times, want 1", got)
	}

	// One tick short of the trigger: still waiting.
	clock.Advance(30*time.Second - time.Millisecond)
	m.checkIdle()
	if snap := m.Snapshot(); snap.Kind != StateWaiting {
		t.Fatalf("just before trigger: state = %v", snap.Kind)
	}

	clock.Advance(time.Millisecond)
	m.checkIdle()
	if snap := m.Snapshot(); snap.Kind != StateWorkoutTriggered {
		t.Fatalf("state = %v, want StateWorkoutTriggered", snap.Kind)
	}
	if got := rec.Count("workout_triggered"); got != 1 {
		t.Errorf("workout_triggered fired %d times, want 1", got)
	}

	// The trigger is a one-shot edge; further ticks change nothing.
	clock.Advance(time.Minute)
	m.checkIdle()
	if got := rec.Count("workout_triggered"); got != 1 {
		t.Errorf("workout_triggered fired %d times after extra ticks, want 1", got)
	}
}

func TestMonitor_GracePeriodSuppressesWaiting(t *testing.T) {
	settings := testSettings()
	settings.IdleThreshold = time.Second
	settings.GracePeriod = 10 * time.Second

	fg := testutil.NewMockForegroundSource("Claude")
	m, clock, rec := newTestMonitor(t, settings, fg)
	m.pollOnce()

	// Idle time far exceeds the threshold, but typing ended recently.
	clock.Advance(5 * time.Second)
	m.checkIdle()
	if snap := m.Snapshot(); snap.Kind != StateInTrackedApp {
		t.Errorf("state = %v, want StateInTrackedApp while inside grace period", snap.Kind)
	}
	if got := rec.Count("waiting_started:Claude"); got != 0 {
		t.Errorf("waiting_started fired %d times, want 0", got)
	}

	// Once grace has elapsed the same idle time qualifies.
	clock.Advance(6 * time.Second)
	m.checkIdle()
	if snap := m.Snapshot(); snap.Kind != StateWaiting {
		t.Errorf("state = %v, want StateWaiting after grace elapsed", snap.Kind)
	}
}

func TestMonitor_WaitingElapsedMonotonic(t *testing.T) {
	fg := testutil.NewMockForegroundSource("Claude")
	m, clock, rec := newTestMonitor(t, testSettings(), fg)
	m.pollOnce()

	clock.Advance(5 * time.Second)
	m.checkIdle()
	if snap := m.Snapshot(); snap.Kind != StateWaiting {
		t.Fatalf("state = %v, want StateWaiting", snap.Kind)
	}

	var last time.Duration
	for i := 0; i < 5; i++ {
		clock.Advance(700 * time.Millisecond)
		m.checkIdle()
		snap := m.Snapshot()
		if snap.WaitingElapsed < last {
			t.Fatalf("elapsed went backwards: %v -> %v", last, snap.WaitingElapsed)
		}
		last = snap.WaitingElapsed
	}

	// Re-entry resets elapsed to zero.
	m.RecordInputActivity()
	if got := rec.Count("waiting_stopped"); got != 1 {
		t.Fatalf("waiting_stopped fired %d times, want 1", got)
	}
	clock.Advance(5 * time.Second)
	m.checkIdle()
	snap := m.Snapshot()
	if snap.Kind != StateWaiting {
		t.Fatalf("state = %v, want StateWaiting on re-entry", snap.Kind)
	}
	if snap.WaitingElapsed != 0 {
		t.Errorf("WaitingElapsed on re-entry = %v, want 0", snap.WaitingElapsed)
	}
}

func TestMonitor_InputCancelsWaiting(t *testing.T) {
	fg := testutil.NewMockForegroundSource("Claude")
	m, clock, rec := newTestMonitor(t, testSettings(), fg)
	m.pollOnce()

	clock.Advance(5 * time.Second)
	m.checkIdle()
	if snap := m.Snapshot(); snap.Kind != StateWaiting {
		t.Fatalf("state = %v, want StateWaiting", snap.Kind)
	}

	m.RecordInputActivity()
	if snap := m.Snapshot(); snap.Kind != StateInTrackedApp {
		t.Errorf("state = %v, want StateInTrackedApp after input", snap.Kind)
	}
	if got := rec.Count("waiting_stopped"); got != 1 {
		t.Errorf("waiting_stopped fired %d times, want 1", got)
	}
}

func TestMonitor_InputCancelsPendingWorkout(t *testing.T) {
	fg := testutil.NewMockForegroundSource("Claude")
	m, clock, rec := newTestMonitor(t, testSettings(), fg)
	m.pollOnce()

	clock.Advance(5 * time.Second)
	m.checkIdle()
	clock.Advance(31 * time.Second)
	m.checkIdle()
	if snap := m.Snapshot(); snap.Kind != StateWorkoutTriggered {
		t.Fatalf("state = %v, want StateWorkoutTriggered", snap.Kind)
	}

	// Input while the prompt is pending cancels it.
	m.RecordInputActivity()
	if snap := m.Snapshot(); snap.Kind != StateInTrackedApp {
		t.Errorf("state = %v, want StateInTrackedApp after cancel", snap.Kind)
	}
	if got := rec.Count("waiting_stopped"); got != 1 {
		t.Errorf("waiting_stopped fired %d times, want 1", got)
	}

	// A full second episode fires the workout again.
	clock.Advance(5 * time.Second)
	m.checkIdle()
	clock.Advance(31 * time.Second)
	m.checkIdle()
	if got := rec.Count("workout_triggered"); got != 2 {
		t.Errorf("workout_triggered fired %d times across two episodes, want 2", got)
	}
}

func TestMonitor_SwitchBetweenTrackedAppsResetsWaiting(t *testing.T) {
	fg := testutil.NewMockForegroundSource("Claude")
	m, clock, rec := newTestMonitor(t, testSettings(), fg)
	m.pollOnce()

	clock.Advance(20 * time.Second)
	m.checkIdle()
	if snap := m.Snapshot(); snap.Kind != StateWaiting {
		t.Fatalf("state = %v, want StateWaiting", snap.Kind)
	}

	// Direct switch to another tracked app: no partial credit carries.
	fg.Set("ChatGPT", nil)
	m.pollOnce()
	snap := m.Snapshot()
	if snap.Kind != StateInTrackedApp || snap.App != "ChatGPT" {
		t.Fatalf("state = %+v, want InTrackedApp(ChatGPT)", snap)
	}
	if got := rec.Count("waiting_stopped"); got != 1 {
		t.Errorf("waiting_stopped fired %d times, want 1", got)
	}
	if got := rec.Count("app_exited"); got != 0 {
		t.Errorf("app_exited fired %d times on tracked-to-tracked switch, want 0", got)
	}

	// The switch counted as fresh activity: even though the previous app
	// was waiting well past the threshold, B starts from zero.
	m.checkIdle()
	if snap := m.Snapshot(); snap.Kind != StateInTrackedApp {
		t.Errorf("state = %v immediately after switch, want StateInTrackedApp", snap.Kind)
	}
}

func TestMonitor_AppExit(t *testing.T) {
	fg := testutil.NewMockForegroundSource("Claude")
	m, clock, rec := newTestMonitor(t, testSettings(), fg)
	m.pollOnce()

	clock.Advance(5 * time.Second)
	m.checkIdle()

	fg.Set("Safari", nil)
	m.pollOnce()
	if snap := m.Snapshot(); snap.Kind != StateIdle {
		t.Errorf("state = %v, want StateIdle after leaving tracked app", snap.Kind)
	}
	if got := rec.Count("waiting_stopped"); got != 1 {
		t.Errorf("waiting_stopped fired %d times, want 1", got)
	}
	if got := rec.Count("app_exited"); got != 1 {
		t.Errorf("app_exited fired %d times, want 1", got)
	}
}

func TestMonitor_ForegroundFailureHoldsState(t *testing.T) {
	fg := testutil.NewMockForegroundSource("Claude")
	m, _, rec := newTestMonitor(t, testSettings(), fg)
	m.pollOnce()

	// A transient query failure must not flicker to Idle.
	fg.Set("", errors.New("scripting bridge unavailable"))
	m.pollOnce()
	if snap := m.Snapshot(); snap.Kind != StateInTrackedApp || snap.App != "Claude" {
		t.Errorf("state = %+v, want held InTrackedApp(Claude)", snap)
	}
	if got := rec.Count("app_exited"); got != 0 {
		t.Errorf("app_exited fired %d times on query failure, want 0", got)
	}

	// Same for an absent name with no error.
	fg.Set("", nil)
	m.pollOnce()
	if snap := m.Snapshot(); snap.Kind != StateInTrackedApp {
		t.Errorf("state = %v, want held state on absent name", snap.Kind)
	}
}

// IDE apps count as tracked only once the companion process has
// sustained high CPU for the full window.
func TestMonitor_IDERequiresSustainedCompanion(t *testing.T) {
	fg := testutil.NewMockForegroundSource("WebStorm")
	m, clock, rec := newTestMonitor(t, testSettings(), fg)

	m.pollOnce()
	if snap := m.Snapshot(); snap.Kind != StateIdle {
		t.Fatalf("state = %v, want StateIdle before companion activity", snap.Kind)
	}

	// 6% at t=0 opens the window but is not yet sustained.
	m.applySample(6.0, m.sampleGen)
	m.pollOnce()
	if snap := m.Snapshot(); snap.Kind != StateIdle {
		t.Fatalf("state = %v, want StateIdle while window open", snap.Kind)
	}

	// At t=2s the window is complete; the app becomes tracked.
	clock.Advance(2 * time.Second)
	m.applySample(6.0, m.sampleGen)
	m.pollOnce()
	snap := m.Snapshot()
	if snap.Kind != StateInTrackedApp || snap.App != "WebStorm" {
		t.Fatalf("state = %+v, want InTrackedApp(WebStorm) at sustain", snap)
	}

	// A single low sample unsinks it on the next poll.
	clock.Advance(time.Second)
	m.applySample(1.0, m.sampleGen)
	m.pollOnce()
	if snap := m.Snapshot(); snap.Kind != StateIdle {
		t.Errorf("state = %v, want StateIdle after companion went quiet", snap.Kind)
	}
	if got := rec.Count("app_exited"); got != 1 {
		t.Errorf("app_exited fired %d times, want 1", got)
	}
}

func TestMonitor_SampleRequestPacing(t *testing.T) {
	sampler := testutil.NewMockCPUSampler(0)
	fg := testutil.NewMockForegroundSource("WebStorm")
	m, clock, _ := newTestMonitor(t, testSettings(), fg)
	m.sampler = sampler

	kick := func() {
		m.mu.Lock()
		m.maybeSampleLocked()
		m.mu.Unlock()
	}

	waitRequests := func(want int) {
		t.Helper()
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if len(sampler.Requests()) == want {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
		t.Fatalf("sampler requests = %d, want %d", len(sampler.Requests()), want)
	}

	kick()
	waitRequests(1)

	// Within the sample interval no second request goes out.
	kick()
	time.Sleep(20 * time.Millisecond)
	if got := len(sampler.Requests()); got != 1 {
		t.Fatalf("requests within interval = %d, want 1", got)
	}

	clock.Advance(time.Second)
	kick()
	waitRequests(2)

	if reqs := sampler.Requests(); reqs[0] != "claude" {
		t.Errorf("request pattern = %q, want %q", reqs[0], "claude")
	}
}

func TestMonitor_ResetWaiting(t *testing.T) {
	fg := testutil.NewMockForegroundSource("Claude")
	m, clock, rec := newTestMonitor(t, testSettings(), fg)
	m.pollOnce()

	// Not waiting: reset is a quiet no-op.
	m.ResetWaiting()
	if got := rec.Count("waiting_stopped"); got != 0 {
		t.Errorf("waiting_stopped fired %d times on idle reset, want 0", got)
	}

	clock.Advance(5 * time.Second)
	m.checkIdle()
	m.ResetWaiting()
	if snap := m.Snapshot(); snap.Kind != StateInTrackedApp {
		t.Errorf("state = %v, want StateInTrackedApp after reset", snap.Kind)
	}
	if got := rec.Count("waiting_stopped"); got != 1 {
		t.Errorf("waiting_stopped fired %d times, want 1", got)
	}
}

func TestMonitor_UpdateSettingsAndAppSets(t *testing.T) {
	fg := testutil.NewMockForegroundSource("Claude")
	m, clock, _ := newTestMonitor(t, testSettings(), fg)
	m.pollOnce()

	bad := testSettings()
	bad.IdleThreshold = -1
	if err := m.UpdateSettings(bad); err == nil {
		t.Error("UpdateSettings accepted invalid settings")
	}

	relaxed := testSettings()
	relaxed.IdleThreshold = time.Hour
	if err := m.UpdateSettings(relaxed); err != nil {
		t.Fatalf("UpdateSettings() error = %v", err)
	}
	clock.Advance(time.Minute)
	m.checkIdle()
	if snap := m.Snapshot(); snap.Kind != StateInTrackedApp {
		t.Errorf("state = %v, want InTrackedApp under relaxed threshold", snap.Kind)
	}

	// Dropping Claude from the sets makes the app untracked next poll.
	m.SetAppSets(NewAppSets(nil, nil, nil))
	m.pollOnce()
	if snap := m.Snapshot(); snap.Kind != StateIdle {
		t.Errorf("state = %v, want StateIdle after set removal", snap.Kind)
	}
}

// Start/Stop against real timers: the loops run, Stop silences them and
// releases the input subscription.
func TestMonitor_StartStop(t *testing.T) {
	settings := testSettings()
	settings.IdleThreshold = 20 * time.Millisecond
	settings.GracePeriod = 0

	fg := testutil.NewMockForegroundSource("Claude")
	input := testutil.NewMockInputSource()
	rec := testutil.NewEventRecorder()
	m, err := New(settings, testAppSets(), fg, nil, input, Callbacks{
		OnWaitingStarted: func(app string) { rec.Record("waiting_started") },
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := m.Start(0, time.Millisecond); err == nil {
		t.Fatal("Start accepted zero poll interval")
	}
	if err := m.Start(5*time.Millisecond, 5*time.Millisecond); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for rec.Count("waiting_started") == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if rec.Count("waiting_started") == 0 {
		t.Fatal("waiting_started never fired under real timers")
	}

	m.Stop()
	if !input.Closed() {
		t.Error("Stop did not close the input subscription")
	}
	before := len(rec.Events())
	time.Sleep(50 * time.Millisecond)
	if after := len(rec.Events()); after != before {
		t.Errorf("events fired after Stop: %d -> %d", before, after)
	}

	// Stop again is safe; Start again restarts cleanly.
	m.Stop()
	if err := m.Start(5*time.Millisecond, 5*time.Millisecond); err != nil {
		t.Fatalf("restart error = %v", err)
	}
	m.Stop()
}

// On a regular check schedule the waiting transition lands exactly at
// the idle threshold: the grace period gates the check, it does not
// extend the threshold. The workout prompt fires exactly WorkoutTrigger
// after waiting began.
func TestMonitor_RegularScheduleTransitionTimes(t *testing.T) {
	fg := testutil.NewMockForegroundSource("Claude")
	m, clock, rec := newTestMonitor(t, testSettings(), fg)

	start := clock.Now()
	m.pollOnce()

	var waitingAt, workoutAt time.Duration
	for i := 0; i < 80; i++ {
		clock.Advance(500 * time.Millisecond)
		m.checkIdle()
		switch m.Snapshot().Kind {
		case StateWaiting:
			if waitingAt == 0 {
				waitingAt = clock.Now().Sub(start)
			}
		case StateWorkoutTriggered:
			if workoutAt == 0 {
				workoutAt = clock.Now().Sub(start)
			}
		}
	}

	if waitingAt != 3*time.Second {
		t.Errorf("entered Waiting at t=%v, want exactly 3s", waitingAt)
	}
	if workoutAt != 33*time.Second {
		t.Errorf("workout triggered at t=%v, want exactly 33s", workoutAt)
	}
	if got := rec.Count("waiting_started:Claude"); got != 1 {
		t.Errorf("waiting_started fired %d times, want 1", got)
	}
	if got := rec.Count("workout_triggered"); got != 1 {
		t.Errorf("workout_triggered fired %d times, want 1", got)
	}
}

// A sample requested before a restart must not feed the restarted run's
// freshly reset sustain tracker, and must not clear its in-flight flag.
func TestMonitor_StaleSampleIgnoredAfterRestart(t *testing.T) {
	settings := testSettings()
	settings.CPUSustain = 0 // a single high sample activates immediately
	fg := testutil.NewMockForegroundSource("WebStorm")
	m, _, _ := newTestMonitor(t, settings, fg)

	// Mimic a restart with a reply still outstanding from the old run.
	stale := m.sampleGen
	m.sampleGen++
	m.sustain.Reset()
	m.sampleInFlight = true

	m.applySample(50, stale)
	if m.sustain.Active() {
		t.Fatal("sample from the previous run activated the sustain tracker")
	}
	m.mu.Lock()
	inFlight := m.sampleInFlight
	m.mu.Unlock()
	if !inFlight {
		t.Error("sample from the previous run cleared the in-flight flag")
	}

	m.applySample(50, m.sampleGen)
	if !m.sustain.Active() {
		t.Error("current-run sample was not applied")
	}
}
