// Package frontmost reports which application currently owns the
// foreground (frontmost window) on the desktop.
package frontmost

import (
	"errors"

	"vibebreak/pkg/interfaces"
)

// ErrUnsupported is returned on platforms with no foreground query.
var ErrUnsupported = errors.New("foreground app detection not supported on this platform")

// NewSource creates a platform-appropriate foreground source.
// It returns:
// - DarwinSource on macOS (using System Events via osascript)
// - LinuxSource on X11 systems (using xprop)
// - an always-failing source on other platforms.
func NewSource() interfaces.ForegroundSource {
	return newPlatformSource()
}
