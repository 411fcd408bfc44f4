package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/term"

	"vibebreak/pkg/config"
	"vibebreak/pkg/cpusample"
	"vibebreak/pkg/frontmost"
	"vibebreak/pkg/input"
	"vibebreak/pkg/notification"
	"vibebreak/pkg/status"
	"vibebreak/pkg/vibe"
	"vibebreak/pkg/wrap"
)

// statusRefreshInterval is how often the terminal indicator is redrawn
// from a fresh monitor snapshot.
const statusRefreshInterval = 500 * time.Millisecond

// debugf writes diagnostics to stderr when VIBEBREAK_DEBUG is set.
func debugf(format string, args ...interface{}) {
	if os.Getenv("VIBEBREAK_DEBUG") == "" {
		return
	}
	fmt.Fprintf(os.Stderr, "vibebreak: "+format+"\n", args...)
}

// Dependencies holds all the dependencies for the application
type Dependencies struct {
	Config              *config.Config
	Monitor             *vibe.Monitor
	InputWatcher        *input.Watcher
	NotificationManager *notification.Manager
	StatusIndicator     *status.Indicator
	ConfigWatcher       *config.Watcher
}

// NewDependencies creates all dependencies with the given configuration
func NewDependencies(cfg *config.Config) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
	}

	// Indicator only draws when stderr is a terminal and we are not
	// asked to be quiet.
	statusEnabled := term.IsTerminal(int(os.Stderr.Fd())) && !cfg.Quiet
	deps.StatusIndicator = status.NewIndicator(os.Stderr, statusEnabled)

	if !cfg.Quiet {
		var notifier notification.Notifier
		if cfg.NtfyTopic != "" {
			notifier = notification.NewNtfyClient(cfg.NtfyServer, cfg.NtfyTopic)
		} else {
			notifier = notification.NewStdoutNotifier()
		}
		limiter := notification.NewWindowRateLimiter(cfg.RateLimit.MaxMessages, cfg.RateLimit.Window.Duration)
		deps.NotificationManager = notification.NewManager(notifier, limiter, cfg.Exercises)
	}

	deps.InputWatcher = input.NewWatcher(0)

	return deps, nil
}

// Close cleans up all dependencies
func (d *Dependencies) Close() {
	if d.Monitor != nil {
		d.Monitor.Stop()
	}
	if d.ConfigWatcher != nil {
		_ = d.ConfigWatcher.Close()
	}
	if d.StatusIndicator != nil {
		d.StatusIndicator.Clear()
	}
}

// Application ties the activity monitor, notifications, and the
// optional wrapped child command together.
type Application struct {
	deps *Dependencies

	mu       sync.Mutex
	lastApp  string
	runner   *wrap.Runner
	exitCode int
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewApplication creates a new application with the given dependencies
func NewApplication(deps *Dependencies) *Application {
	return &Application{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// Run starts monitoring. When childCmd is non-empty the command is run
// under a pty and its stdin keystrokes count as input activity; Run
// then returns when the child exits. Otherwise Run blocks until Stop.
func (a *Application) Run(childCmd []string) error {
	cfg := a.deps.Config

	monitor, err := vibe.New(
		settingsFromConfig(cfg),
		vibe.NewAppSets(cfg.DirectApps, cfg.IDEApps, cfg.TerminalApps),
		frontmost.NewSource(),
		cpusample.NewSampler(),
		a.deps.InputWatcher,
		a.callbacks(),
	)
	if err != nil {
		return fmt.Errorf("creating monitor: %w", err)
	}
	a.deps.Monitor = monitor

	if err := monitor.Start(cfg.PollInterval.Duration, cfg.IdleCheckInterval.Duration); err != nil {
		return fmt.Errorf("starting monitor: %w", err)
	}
	debugf("monitoring started: poll=%s idle-check=%s companion=%q",
		cfg.PollInterval.Duration, cfg.IdleCheckInterval.Duration, cfg.CompanionProcess)

	// Config hot reload is best effort; a missing or unwatchable file
	// just means settings stay fixed for this run.
	if path := config.Path(); path != "" {
		if watcher, err := config.Watch(path, a.onConfigChange); err == nil {
			a.deps.ConfigWatcher = watcher
		}
	}

	refreshDone := make(chan struct{})
	go a.refreshStatus(refreshDone)

	if len(childCmd) > 0 {
		runner := wrap.NewRunner(childCmd[0], childCmd[1:], monitor.RecordInputActivity)
		a.mu.Lock()
		a.runner = runner
		a.mu.Unlock()

		code, runErr := runner.Run()
		a.mu.Lock()
		a.exitCode = code
		a.mu.Unlock()

		a.shutdown(refreshDone)
		return runErr
	}

	<-a.stopChan
	a.shutdown(refreshDone)
	return nil
}

func (a *Application) shutdown(refreshDone chan struct{}) {
	a.stopOnce.Do(func() { close(a.stopChan) })
	<-refreshDone
	a.deps.Close()
}

// Stop ends monitoring and, in wrapper mode, asks the child to exit.
func (a *Application) Stop() {
	a.stopOnce.Do(func() { close(a.stopChan) })

	a.mu.Lock()
	runner := a.runner
	a.mu.Unlock()
	if runner != nil {
		runner.Stop()
	}
}

// ExitCode returns the wrapped child's exit code, or zero when running
// without a child.
func (a *Application) ExitCode() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.exitCode
}

// callbacks maps monitor transitions onto notifications.
func (a *Application) callbacks() vibe.Callbacks {
	return vibe.Callbacks{
		OnWaitingStarted: func(app string) {
			a.mu.Lock()
			a.lastApp = app
			a.mu.Unlock()
			if a.deps.NotificationManager != nil {
				a.deps.NotificationManager.WaitingStarted(app)
			}
		},
		OnWorkoutTriggered: func() {
			app := a.deps.Monitor.Snapshot().App
			if a.deps.NotificationManager != nil {
				a.deps.NotificationManager.WorkoutTriggered(app)
			}
		},
		OnAppExited: func() {
			a.mu.Lock()
			app := a.lastApp
			a.lastApp = ""
			a.mu.Unlock()
			if app != "" && a.deps.NotificationManager != nil {
				a.deps.NotificationManager.AppExited(app)
			}
		},
	}
}

// refreshStatus keeps the terminal indicator in sync with the monitor.
func (a *Application) refreshStatus(done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(statusRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			snap := a.deps.Monitor.Snapshot()
			if snap.App != "" {
				a.mu.Lock()
				a.lastApp = snap.App
				a.mu.Unlock()
			}
			a.deps.StatusIndicator.Update(snap)
		case <-a.stopChan:
			return
		}
	}
}

// onConfigChange applies a reloaded config to the running monitor.
func (a *Application) onConfigChange(cfg *config.Config) {
	if a.deps.Monitor == nil {
		return
	}
	if err := a.deps.Monitor.UpdateSettings(settingsFromConfig(cfg)); err != nil {
		fmt.Fprintf(os.Stderr, "vibebreak: rejected reloaded settings: %v\n", err)
		return
	}
	a.deps.Monitor.SetAppSets(vibe.NewAppSets(cfg.DirectApps, cfg.IDEApps, cfg.TerminalApps))
	debugf("configuration reloaded")
}

// runCheck performs one evaluation of every signal source and prints
// the results, for diagnosing a setup without starting the loops.
func runCheck(cfg *config.Config) int {
	fmt.Printf("config:     %s (valid)\n", config.Path())

	code := 0
	sets := vibe.NewAppSets(cfg.DirectApps, cfg.IDEApps, cfg.TerminalApps)

	if name, err := frontmost.NewSource().ActiveAppName(); err != nil {
		fmt.Printf("frontmost:  error: %v\n", err)
		code = 1
	} else {
		membership := "untracked"
		switch {
		case sets.IsDirect(name):
			membership = "direct AI app"
		case sets.IsIDEOrTerminal(name):
			membership = "IDE/terminal (needs companion CPU)"
		}
		fmt.Printf("frontmost:  %s (%s)\n", name, membership)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if pct, err := cpusample.NewSampler().CPUPercent(ctx, cfg.CompanionProcess); err != nil {
		fmt.Printf("companion:  error sampling %q: %v\n", cfg.CompanionProcess, err)
		code = 1
	} else {
		fmt.Printf("companion:  %q at %.1f%% CPU (threshold %.1f%%)\n", cfg.CompanionProcess, pct, cfg.CPUThreshold)
	}

	if idle, err := input.SystemIdleTime(); err != nil {
		fmt.Printf("idle:       error: %v\n", err)
		code = 1
	} else {
		fmt.Printf("idle:       %s since last input (threshold %s)\n", idle.Round(time.Millisecond), cfg.IdleThreshold.Duration)
	}

	return code
}

// settingsFromConfig converts file-level configuration into the
// monitor's settings.
func settingsFromConfig(cfg *config.Config) vibe.Settings {
	return vibe.Settings{
		IdleThreshold:     cfg.IdleThreshold.Duration,
		GracePeriod:       cfg.GracePeriod.Duration,
		WorkoutTrigger:    cfg.WorkoutTrigger.Duration,
		CPUThreshold:      cfg.CPUThreshold,
		CPUSustain:        cfg.CPUSustain.Duration,
		CPUSampleInterval: cfg.CPUSampleInterval.Duration,
		CompanionPattern:  cfg.CompanionProcess,
	}
}
