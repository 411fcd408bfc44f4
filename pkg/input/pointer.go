package input

import "github.com/go-vgo/robotgo"

// pointerLocation returns the current pointer coordinates. The ok
// result is always true; robotgo reports (0, 0) when the position
// cannot be read, which the watcher treats as a stationary pointer.
func pointerLocation() (int, int, bool) {
	x, y := robotgo.Location()
	return x, y, true
}
