//go:build linux
// +build linux

package frontmost

import (
	"fmt"
	"os/exec"
	"strings"

	"vibebreak/pkg/interfaces"
)

// LinuxSource queries the active window's application class via xprop.
type LinuxSource struct {
	cmdExecutor func(name string, args ...string) ([]byte, error)
}

// NewLinuxSource creates a new X11 foreground source.
func NewLinuxSource() *LinuxSource {
	return &LinuxSource{
		cmdExecutor: defaultLinuxCmdExecutor,
	}
}

func defaultLinuxCmdExecutor(name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	return cmd.Output()
}

// ActiveAppName returns the application class of the active X11 window.
func (s *LinuxSource) ActiveAppName() (string, error) {
	rootOut, err := s.cmdExecutor("xprop", "-root", "_NET_ACTIVE_WINDOW")
	if err != nil {
		return "", fmt.Errorf("failed to query active window: %w", err)
	}

	windowID, err := parseActiveWindowID(string(rootOut))
	if err != nil {
		return "", err
	}

	classOut, err := s.cmdExecutor("xprop", "-id", windowID, "WM_CLASS")
	if err != nil {
		return "", fmt.Errorf("failed to query window class: %w", err)
	}

	return parseWMClass(string(classOut))
}

// parseActiveWindowID extracts the window id from xprop -root output.
// Format: _NET_ACTIVE_WINDOW(WINDOW): window id # 0x3a00007
func parseActiveWindowID(output string) (string, error) {
	idx := strings.LastIndex(output, "#")
	if idx < 0 {
		return "", fmt.Errorf("unexpected _NET_ACTIVE_WINDOW output: %q", output)
	}

	id := strings.TrimSpace(output[idx+1:])
	if id == "" || id == "0x0" {
		return "", fmt.Errorf("no active window")
	}

	return id, nil
}

// parseWMClass extracts the application class from xprop WM_CLASS output.
// Format: WM_CLASS(STRING) = "instance", "Class"
// The second quoted value is the application class.
func parseWMClass(output string) (string, error) {
	idx := strings.Index(output, "=")
	if idx < 0 {
		return "", fmt.Errorf("unexpected WM_CLASS output: %q", output)
	}

	var values []string
	rest := output[idx+1:]
	for {
		start := strings.Index(rest, `"`)
		if start < 0 {
			break
		}
		rest = rest[start+1:]
		end := strings.Index(rest, `"`)
		if end < 0 {
			break
		}
		values = append(values, rest[:end])
		rest = rest[end+1:]
	}

	if len(values) == 0 {
		return "", fmt.Errorf("no class in WM_CLASS output: %q", output)
	}

	// Prefer the class over the instance name.
	return values[len(values)-1], nil
}

func newPlatformSource() interfaces.ForegroundSource {
	return NewLinuxSource()
}
