//go:build linux
// +build linux

package input

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// systemIdleTime reads the X11 idle counter via xprintidle, which
// prints milliseconds since the last input event.
func systemIdleTime() (time.Duration, error) {
	output, err := exec.Command("xprintidle").Output()
	if err != nil {
		return 0, fmt.Errorf("xprintidle: %w", err)
	}

	millis, err := strconv.ParseInt(strings.TrimSpace(string(output)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse xprintidle output: %w", err)
	}

	return time.Duration(millis) * time.Millisecond, nil
}
