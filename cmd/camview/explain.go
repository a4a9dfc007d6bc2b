package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/junsooki/camview/internal/device"
	"github.com/junsooki/camview/internal/permissions"
)

const noCameraHelp = `no camera found. Check that:
  - the camera is plugged in and shows up in lsusb or dmesg
  - a /dev/video* node exists (the uvcvideo module is loaded)
  - your user can open it (member of the video group)`

var errNoCamera = errors.New(noCameraHelp)

type missingCameraError struct {
	Index     int
	Available []device.Info
}

func (e *missingCameraError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "camera %d not found; available:", e.Index)
	for _, info := range e.Available {
		fmt.Fprintf(&b, "\n  [%d] %s", info.Index, info.Name)
	}
	return b.String()
}

// explain turns a pipeline error into a message that says what to do next.
func explain(err error) string {
	var fe *device.FormatError
	switch {
	case errors.As(err, &fe):
		var b strings.Builder
		fmt.Fprintf(&b, "camera does not support %s", fe.Requested)
		if fe.Negotiated != nil {
			fmt.Fprintf(&b, " (driver offered %s)", *fe.Negotiated)
		}
		if len(fe.Available) == 0 {
			b.WriteString("\nthe camera reported no modes")
		} else {
			b.WriteString("\navailable modes:")
			for _, m := range fe.Available {
				fmt.Fprintf(&b, "\n  %s", m)
			}
		}
		b.WriteString("\npick one with -width, -height, -format and -fps, or use -format auto")
		return b.String()
	case errors.Is(err, permissions.ErrCameraAccess):
		return err.Error()
	case errors.Is(err, device.ErrDeviceUnavailable):
		return fmt.Sprintf("%v\nthe camera may be in use by another program; close it and try again", err)
	case errors.Is(err, device.ErrEnumeration):
		return fmt.Sprintf("%v\ncould not scan /dev for cameras", err)
	default:
		return err.Error()
	}
}
