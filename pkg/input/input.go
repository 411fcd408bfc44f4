// Package input observes user keyboard and pointer activity and
// notifies a subscriber whenever any is seen.
package input

import (
	"fmt"
	"sync"
	"time"
)

const defaultPollInterval = 250 * time.Millisecond

// Watcher polls the OS idle counter and the pointer position and fires
// a callback when either shows fresh activity. The keyboard signal is a
// drop in the system idle counter; pointer movement is reported even
// when the idle counter is unavailable.
type Watcher struct {
	interval     time.Duration
	idleProbe    func() (time.Duration, error)
	pointerProbe func() (x, y int, ok bool)

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewWatcher creates a watcher polling at the given interval. An
// interval of zero or less uses a 250ms default.
func NewWatcher(interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Watcher{
		interval:     interval,
		idleProbe:    systemIdleTime,
		pointerProbe: pointerLocation,
	}
}

// Subscribe starts watching and invokes onEvent for every observed
// burst of activity. Only one subscriber is supported at a time.
func (w *Watcher) Subscribe(onEvent func()) error {
	if onEvent == nil {
		return fmt.Errorf("onEvent must not be nil")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("already subscribed")
	}

	w.running = true
	w.stopCh = make(chan struct{})
	w.wg.Add(1)
	go w.run(onEvent, w.stopCh)

	return nil
}

// Close stops the watcher and waits for its goroutine to exit. No
// callbacks are delivered after Close returns.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	close(w.stopCh)
	w.mu.Unlock()

	w.wg.Wait()
	return nil
}

func (w *Watcher) run(onEvent func(), stopCh chan struct{}) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var (
		haveIdle  bool
		prevIdle  time.Duration
		havePoint bool
		prevX     int
		prevY     int
	)

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
		}

		fired := false

		// A shrinking idle counter means a key was pressed or the
		// pointer was used since the last poll.
		if idle, err := w.idleProbe(); err == nil {
			if haveIdle && idle < prevIdle {
				onEvent()
				fired = true
			}
			prevIdle = idle
			haveIdle = true
		}

		if x, y, ok := w.pointerProbe(); ok {
			if havePoint && !fired && (x != prevX || y != prevY) {
				onEvent()
			}
			prevX, prevY = x, y
			havePoint = true
		}
	}
}
