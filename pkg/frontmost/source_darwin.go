//go:build darwin
// +build darwin

package frontmost

import (
	"fmt"
	"os/exec"
	"strings"

	"vibebreak/pkg/interfaces"
)

// frontmostScript asks System Events for the frontmost process name.
const frontmostScript = `tell application "System Events" to get name of first application process whose frontmost is true`

// DarwinSource queries the frontmost application on macOS.
type DarwinSource struct {
	cmdExecutor func(name string, args ...string) ([]byte, error)
}

// NewDarwinSource creates a new Darwin (macOS) foreground source.
func NewDarwinSource() *DarwinSource {
	return &DarwinSource{
		cmdExecutor: defaultDarwinCmdExecutor,
	}
}

func defaultDarwinCmdExecutor(name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	return cmd.Output()
}

// ActiveAppName returns the name of the frontmost application process.
func (s *DarwinSource) ActiveAppName() (string, error) {
	output, err := s.cmdExecutor("osascript", "-e", frontmostScript)
	if err != nil {
		return "", fmt.Errorf("failed to execute osascript: %w", err)
	}

	name := strings.TrimSpace(string(output))
	if name == "" {
		return "", fmt.Errorf("osascript returned no frontmost process")
	}

	return name, nil
}

func newPlatformSource() interfaces.ForegroundSource {
	return NewDarwinSource()
}
