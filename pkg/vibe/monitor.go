package vibe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vibebreak/pkg/interfaces"
)

// sampleTimeout bounds a single companion CPU sample request.
const sampleTimeout = 5 * time.Second

// Settings are the operator-tunable detection parameters. They are
// immutable during a polling cycle; UpdateSettings swaps them between
// cycles.
type Settings struct {
	// IdleThreshold is how long input must be absent before the user
	// counts as waiting.
	IdleThreshold time.Duration
	// GracePeriod suppresses idle detection right after typing stops,
	// so a tool that has not started working yet does not produce a
	// false "waiting".
	GracePeriod time.Duration
	// WorkoutTrigger is how long waiting must persist before the
	// workout prompt fires.
	WorkoutTrigger time.Duration
	// CPUThreshold and CPUSustain parameterize the companion-process
	// sustained-CPU check.
	CPUThreshold float64
	CPUSustain   time.Duration
	// CPUSampleInterval is the minimum spacing between sampler requests.
	CPUSampleInterval time.Duration
	// CompanionPattern is the process-name pattern handed to the sampler.
	CompanionPattern string
}

// Validate rejects settings the monitor cannot run with.
func (s Settings) Validate() error {
	if s.IdleThreshold <= 0 {
		return fmt.Errorf("idle threshold must be positive, got %v", s.IdleThreshold)
	}
	if s.GracePeriod < 0 {
		return fmt.Errorf("grace period must not be negative, got %v", s.GracePeriod)
	}
	if s.WorkoutTrigger <= 0 {
		return fmt.Errorf("workout trigger must be positive, got %v", s.WorkoutTrigger)
	}
	if s.CPUThreshold <= 0 || s.CPUThreshold > 100 {
		return fmt.Errorf("cpu threshold must be in (0, 100], got %v", s.CPUThreshold)
	}
	if s.CPUSustain < 0 {
		return fmt.Errorf("cpu sustain window must not be negative, got %v", s.CPUSustain)
	}
	if s.CPUSampleInterval <= 0 {
		return fmt.Errorf("cpu sample interval must be positive, got %v", s.CPUSampleInterval)
	}
	if s.CompanionPattern == "" {
		return fmt.Errorf("companion process pattern must not be empty")
	}
	return nil
}

// Monitor owns the detection state machine. All state is guarded by a
// single mutex: the poll loop, the idle-check loop, the async sample
// replies, and the input-event callback all serialize through it.
// Transition callbacks fire after the lock is released, in transition
// order.
type Monitor struct {
	mu sync.Mutex

	settings Settings
	sets     AppSets

	foreground interfaces.ForegroundSource
	sampler    interfaces.CPUSampler
	input      interfaces.InputSource
	callbacks  Callbacks

	// now is replaceable in tests.
	now func() time.Time

	state         State
	tracked       bool
	trackedApp    string
	lastActivity  time.Time
	lastTypingEnd time.Time
	waitingStart  time.Time

	sustain        *SustainTracker
	lastSampleReq  time.Time
	sampleInFlight bool
	sampleGen      uint64

	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New creates a stopped Monitor. Any of sampler and input may be nil;
// the corresponding signal is then simply never observed.
func New(settings Settings, sets AppSets, foreground interfaces.ForegroundSource, sampler interfaces.CPUSampler, input interfaces.InputSource, callbacks Callbacks) (*Monitor, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	if foreground == nil {
		return nil, fmt.Errorf("foreground source is required")
	}
	return &Monitor{
		settings:   settings,
		sets:       sets,
		foreground: foreground,
		sampler:    sampler,
		input:      input,
		callbacks:  callbacks,
		now:        time.Now,
		state:      State{Kind: StateIdle},
		sustain:    NewSustainTracker(settings.CPUThreshold, settings.CPUSustain),
	}, nil
}

// Start begins the two periodic evaluation loops: a poll loop for the
// frontmost app and companion CPU, and an idle-check loop for elapsed
// input idleness. Calling Start while running stops and restarts
// cleanly. One foreground check runs before the first tick.
func (m *Monitor) Start(pollInterval, idleCheckInterval time.Duration) error {
	if pollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", pollInterval)
	}
	if idleCheckInterval <= 0 {
		return fmt.Errorf("idle check interval must be positive, got %v", idleCheckInterval)
	}

	m.Stop()

	m.mu.Lock()
	m.running = true
	m.stopCh = make(chan struct{})
	m.state = State{Kind: StateIdle}
	m.tracked = false
	m.trackedApp = ""
	m.lastActivity = time.Time{}
	m.lastTypingEnd = time.Time{}
	m.waitingStart = time.Time{}
	m.lastSampleReq = time.Time{}
	m.sampleInFlight = false
	m.sampleGen++
	m.sustain.Reset()
	m.mu.Unlock()

	if m.input != nil {
		if err := m.input.Subscribe(m.RecordInputActivity); err != nil {
			m.mu.Lock()
			m.running = false
			m.mu.Unlock()
			return fmt.Errorf("subscribe to input events: %w", err)
		}
	}

	m.pollOnce()

	m.wg.Add(2)
	go m.runLoop(pollInterval, m.pollOnce)
	go m.runLoop(idleCheckInterval, m.checkIdle)
	return nil
}

// Stop cancels both loops and releases the input subscription. After
// Stop returns no further transitions or callbacks occur. Safe to call
// repeatedly.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopCh)
	m.mu.Unlock()

	if m.input != nil {
		_ = m.input.Close()
	}
	m.wg.Wait()
}

// runLoop invokes tick every interval until Stop. Ticks never overlap:
// each loop is a single goroutine and time.Ticker drops missed ticks.
func (m *Monitor) runLoop(interval time.Duration, tick func()) {
	defer m.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			tick()
		}
	}
}

// Snapshot returns a copy of the current state. In StateWaiting the
// elapsed field reflects the time of the call, not the last tick.
func (m *Monitor) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.state
	if snap.Kind == StateWaiting && !m.waitingStart.IsZero() {
		snap.WaitingElapsed = m.now().Sub(m.waitingStart)
	}
	return snap
}

// UpdateSettings swaps the detection parameters between cycles.
func (m *Monitor) UpdateSettings(settings Settings) error {
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = settings
	m.sustain.Reconfigure(settings.CPUThreshold, settings.CPUSustain)
	return nil
}

// SetAppSets replaces the tracked application sets between cycles.
func (m *Monitor) SetAppSets(sets AppSets) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets = sets
}

// RecordInputActivity is invoked by the input source on any keystroke or
// pointer action. It refreshes the activity timestamps and cancels an
// in-progress wait or pending workout prompt.
func (m *Monitor) RecordInputActivity() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	now := m.now()
	m.lastActivity = now
	m.lastTypingEnd = now

	var fire []func()
	if m.state.Kind == StateWaiting || m.state.Kind == StateWorkoutTriggered {
		fire = m.clearWaitingLocked()
	}
	m.mu.Unlock()
	for _, f := range fire {
		f()
	}
}

// ResetWaiting unconditionally clears accumulated waiting progress and
// returns to InTrackedApp or Idle. Used for explicit skip actions from
// the prompt surface.
func (m *Monitor) ResetWaiting() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	wasWaiting := m.state.Kind == StateWaiting || m.state.Kind == StateWorkoutTriggered
	var fire []func()
	if wasWaiting {
		fire = m.clearWaitingLocked()
	} else {
		m.waitingStart = time.Time{}
	}
	m.mu.Unlock()
	for _, f := range fire {
		f()
	}
}

// clearWaitingLocked leaves Waiting/WorkoutTriggered for the appropriate
// resting state and returns the callbacks to fire after unlock.
func (m *Monitor) clearWaitingLocked() []func() {
	m.waitingStart = time.Time{}
	if m.tracked {
		m.state = State{Kind: StateInTrackedApp, App: m.trackedApp}
	} else {
		m.state = State{Kind: StateIdle}
	}
	if cb := m.callbacks.OnWaitingStopped; cb != nil {
		return []func(){cb}
	}
	return nil
}

// pollOnce evaluates the frontmost application and the companion CPU
// signal, and applies any resulting transition. A failed or empty
// foreground query holds the previous state for this tick.
func (m *Monitor) pollOnce() {
	name, err := m.foreground.ActiveAppName()

	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	if err != nil || name == "" {
		m.mu.Unlock()
		return
	}

	isDirect := m.sets.IsDirect(name)
	isIDETerm := m.sets.IsIDEOrTerminal(name)
	if isIDETerm {
		m.maybeSampleLocked()
	}
	trackedNow := isDirect || (isIDETerm && m.sustain.Active())

	now := m.now()
	var fire []func()

	switch {
	case trackedNow && !m.tracked:
		m.tracked = true
		m.trackedApp = name
		// An app switch counts as fresh activity so a stale idle timer
		// cannot produce an immediate false "waiting".
		m.lastActivity = now
		m.lastTypingEnd = now
		m.waitingStart = time.Time{}
		m.state = State{Kind: StateInTrackedApp, App: name}

	case !trackedNow && m.tracked:
		wasWaiting := m.state.Kind == StateWaiting
		m.tracked = false
		m.trackedApp = ""
		m.waitingStart = time.Time{}
		m.state = State{Kind: StateIdle}
		if wasWaiting {
			if cb := m.callbacks.OnWaitingStopped; cb != nil {
				fire = append(fire, cb)
			}
		}
		if cb := m.callbacks.OnAppExited; cb != nil {
			fire = append(fire, cb)
		}

	case trackedNow && normalizeAppName(name) != normalizeAppName(m.trackedApp):
		// Switching between two tracked apps never carries waiting
		// progress across.
		wasWaiting := m.state.Kind == StateWaiting || m.state.Kind == StateWorkoutTriggered
		m.trackedApp = name
		m.lastActivity = now
		m.lastTypingEnd = now
		m.waitingStart = time.Time{}
		m.state = State{Kind: StateInTrackedApp, App: name}
		if wasWaiting {
			if cb := m.callbacks.OnWaitingStopped; cb != nil {
				fire = append(fire, cb)
			}
		}
	}
	m.mu.Unlock()
	for _, f := range fire {
		f()
	}
}

// checkIdle evaluates elapsed input idleness. Only meaningful while a
// tracked app is frontmost.
func (m *Monitor) checkIdle() {
	m.mu.Lock()
	if !m.running || (m.state.Kind != StateInTrackedApp && m.state.Kind != StateWaiting) {
		m.mu.Unlock()
		return
	}
	now := m.now()
	if now.Sub(m.lastTypingEnd) < m.settings.GracePeriod {
		m.mu.Unlock()
		return
	}

	var fire []func()
	if now.Sub(m.lastActivity) >= m.settings.IdleThreshold {
		if m.state.Kind != StateWaiting {
			m.waitingStart = now
			m.state = State{Kind: StateWaiting, App: m.trackedApp}
			if cb := m.callbacks.OnWaitingStarted; cb != nil {
				app := m.trackedApp
				fire = append(fire, func() { cb(app) })
			}
		} else {
			elapsed := now.Sub(m.waitingStart)
			m.state.WaitingElapsed = elapsed
			if elapsed >= m.settings.WorkoutTrigger {
				m.state = State{Kind: StateWorkoutTriggered, App: m.trackedApp}
				m.waitingStart = time.Time{}
				if cb := m.callbacks.OnWorkoutTriggered; cb != nil {
					fire = append(fire, cb)
				}
			}
		}
	}
	m.mu.Unlock()
	for _, f := range fire {
		f()
	}
}

// maybeSampleLocked kicks off one async companion CPU sample if none is
// in flight and the sample interval has elapsed. The poll loop never
// blocks on the reply; it lands whenever the sampler answers and is
// applied as a point sample at arrival time.
func (m *Monitor) maybeSampleLocked() {
	if m.sampler == nil || m.sampleInFlight {
		return
	}
	now := m.now()
	if !m.lastSampleReq.IsZero() && now.Sub(m.lastSampleReq) < m.settings.CPUSampleInterval {
		return
	}
	m.sampleInFlight = true
	m.lastSampleReq = now
	pattern := m.settings.CompanionPattern
	gen := m.sampleGen

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sampleTimeout)
		defer cancel()
		pct, err := m.sampler.CPUPercent(ctx, pattern)
		if err != nil {
			// A failed sample counts as 0%, which closes any open
			// sustain window rather than leaving a stale active flag.
			pct = 0
		}
		m.applySample(pct, gen)
	}()
}

// applySample records a sampler reply. gen identifies which run of the
// monitor issued the request: a reply from before a restart must not
// leak into the freshly reset sustain tracker (or clear the new run's
// in-flight flag), so stale generations are dropped.
func (m *Monitor) applySample(pct float64, gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.sampleGen {
		return
	}
	m.sampleInFlight = false
	if !m.running {
		return
	}
	m.sustain.Observe(pct, m.now())
}
