//go:build !darwin && !linux
// +build !darwin,!linux

package frontmost

import "vibebreak/pkg/interfaces"

type unsupportedSource struct{}

// ActiveAppName always fails on unsupported platforms.
func (unsupportedSource) ActiveAppName() (string, error) {
	return "", ErrUnsupported
}

func newPlatformSource() interfaces.ForegroundSource {
	return unsupportedSource{}
}
