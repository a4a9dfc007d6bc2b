// Package permissions checks that the current user may open a camera node
// before the pipeline tries to, so the failure comes with a fix.
package permissions

import (
	"errors"
	"fmt"
)

// ErrCameraAccess is returned when the device node exists but cannot be
// opened for reading and writing.
var ErrCameraAccess = errors.New("permissions: camera access denied")

// AccessError names the node and what to do about it.
type AccessError struct {
	Path string
	Err  error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("permissions: cannot open %s for capture: %v\n"+
		"  add your user to the video group (sudo usermod -aG video $USER) and log in again,\n"+
		"  or check the node's mode with ls -l %s", e.Path, e.Err, e.Path)
}

func (e *AccessError) Unwrap() []error {
	return []error{ErrCameraAccess, e.Err}
}
