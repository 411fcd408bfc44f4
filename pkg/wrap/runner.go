// Package wrap runs a command under a pseudo-terminal while reporting
// the user's keystrokes as input activity.
package wrap

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/term"
)

// Runner executes a child command on a pty, forwarding the controlling
// terminal to it. Every chunk read from stdin fires the onInput
// callback, which gives exact keystroke timing for terminal tools.
type Runner struct {
	command string
	args    []string
	onInput func()

	// stdin/stdout default to the process streams; tests replace them.
	stdin  io.Reader
	stdout io.Writer

	mu      sync.Mutex
	cmd     *exec.Cmd
	ptyFile *os.File
	restore func()
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewRunner creates a runner for the given command. onInput may be nil.
func NewRunner(command string, args []string, onInput func()) *Runner {
	return &Runner{
		command: command,
		args:    args,
		onInput: onInput,
		stdin:   os.Stdin,
		stdout:  os.Stdout,
		stopCh:  make(chan struct{}),
	}
}

// Run starts the child, wires the terminal through the pty, and blocks
// until the child exits. It returns the child's exit code.
func (r *Runner) Run() (int, error) {
	r.mu.Lock()
	if r.cmd != nil {
		r.mu.Unlock()
		return -1, fmt.Errorf("already started")
	}

	r.cmd = exec.Command(r.command, r.args...)
	r.cmd.Env = os.Environ()

	ptyFile, err := pty.Start(r.cmd)
	if err != nil {
		r.mu.Unlock()
		return -1, fmt.Errorf("failed to start pty: %w", err)
	}
	r.ptyFile = ptyFile

	// Mirror the controlling terminal's size, when there is one.
	if err := r.resize(); err == nil {
		r.wg.Add(1)
		go r.watchResize()
	}

	// Raw mode so keystrokes reach the child unprocessed. Skipped when
	// stdin is not a terminal (pipes in tests, cron, etc).
	if file, ok := r.stdin.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		if oldState, err := term.MakeRaw(int(file.Fd())); err == nil {
			fd := int(file.Fd())
			r.restore = func() { _ = term.Restore(fd, oldState) }
		}
	}
	r.mu.Unlock()

	r.wg.Add(1)
	go r.forwardSignals()

	// Keystrokes flow stdin -> pty; the reader reports each chunk.
	go func() {
		_, _ = io.Copy(ptyFile, &activityReader{reader: r.stdin, onRead: r.onInput})
	}()

	// Child output flows pty -> stdout until the pty closes.
	outputDone := make(chan struct{})
	go func() {
		defer close(outputDone)
		_, _ = io.Copy(r.stdout, ptyFile)
	}()

	waitErr := r.cmd.Wait()

	close(r.stopCh)
	_ = ptyFile.Close()
	<-outputDone
	r.wg.Wait()

	r.mu.Lock()
	if r.restore != nil {
		r.restore()
		r.restore = nil
	}
	r.mu.Unlock()

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, fmt.Errorf("waiting for child: %w", waitErr)
	}

	return r.cmd.ProcessState.ExitCode(), nil
}

// Stop restores the terminal and asks the child to terminate. Run still
// returns the child's final exit code.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.restore != nil {
		r.restore()
		r.restore = nil
	}
	if r.cmd != nil && r.cmd.Process != nil {
		_ = r.cmd.Process.Signal(syscall.SIGTERM)
	}
}

func (r *Runner) resize() error {
	file, ok := r.stdin.(*os.File)
	if !ok {
		return fmt.Errorf("stdin is not a file")
	}

	size, err := pty.GetsizeFull(file)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return pty.Setsize(r.ptyFile, size)
}

func (r *Runner) watchResize() {
	defer r.wg.Done()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGWINCH)
	defer signal.Stop(sigChan)

	for {
		select {
		case <-sigChan:
			_ = r.resize()
		case <-r.stopCh:
			return
		}
	}
}

// forwardSignals relays interrupt and terminate to the child so ctrl-c
// in the wrapping terminal behaves as if the child ran directly.
func (r *Runner) forwardSignals() {
	defer r.wg.Done()

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	for {
		select {
		case sig := <-sigChan:
			r.mu.Lock()
			if r.cmd != nil && r.cmd.Process != nil {
				_ = r.cmd.Process.Signal(sig)
			}
			r.mu.Unlock()
		case <-r.stopCh:
			return
		}
	}
}

// activityReader reports every successful read to onRead.
type activityReader struct {
	reader io.Reader
	onRead func()
}

func (a *activityReader) Read(p []byte) (int, error) {
	n, err := a.reader.Read(p)
	if n > 0 && a.onRead != nil {
		a.onRead()
	}
	return n, err
}
