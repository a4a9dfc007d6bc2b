//go:build !linux

package device

import "fmt"

type unsupportedBackend struct{}

// SystemBackend returns the capture backend for this platform. Only Linux
// V4L2 is supported; elsewhere no devices are ever reported.
func SystemBackend() Backend {
	return unsupportedBackend{}
}

func (unsupportedBackend) Devices() ([]Info, error) {
	return []Info{}, nil
}

func (unsupportedBackend) Open(index int) (Handle, error) {
	return nil, fmt.Errorf("%w: no capture backend on this platform (index %d)", ErrDeviceUnavailable, index)
}
