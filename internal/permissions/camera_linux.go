//go:build linux

package permissions

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// HasCameraAccess reports whether path can be opened read-write. A missing
// node is not an access problem and returns nil; the device layer reports it.
func HasCameraAccess(path string) error {
	err := unix.Access(path, unix.R_OK|unix.W_OK)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.ENOENT):
		return nil
	case errors.Is(err, unix.EACCES), errors.Is(err, unix.EPERM):
		return &AccessError{Path: path, Err: os.ErrPermission}
	default:
		return &AccessError{Path: path, Err: err}
	}
}
