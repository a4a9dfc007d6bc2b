package device

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDeviceUnavailable is returned when the index does not exist or the
	// device is claimed by another process.
	ErrDeviceUnavailable = errors.New("device: unavailable")

	// ErrFormatUnsupported is returned when the driver rejects a format.
	ErrFormatUnsupported = errors.New("device: format unsupported")

	// ErrEnumeration is returned when device or mode discovery itself fails.
	ErrEnumeration = errors.New("device: enumeration failed")

	// ErrStreamOpen is returned when streaming cannot be started.
	ErrStreamOpen = errors.New("device: cannot open stream")

	// ErrCaptureFailure is returned by GrabFrame on driver errors or when
	// the stream is no longer live.
	ErrCaptureFailure = errors.New("device: capture failed")
)

// FormatError carries the requested format and what the device offers.
type FormatError struct {
	Requested  CaptureFormat
	Negotiated *CaptureFormat
	Available  []CaptureFormat
	Err        error
}

func (e *FormatError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "device: format %s unsupported", e.Requested)
	if e.Negotiated != nil {
		fmt.Fprintf(&b, " (driver offered %s)", *e.Negotiated)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if len(e.Available) > 0 {
		b.WriteString("; available:")
		for _, f := range e.Available {
			b.WriteString(" ")
			b.WriteString(f.String())
		}
	}
	return b.String()
}

func (e *FormatError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrFormatUnsupported, e.Err}
	}
	return []error{ErrFormatUnsupported}
}
