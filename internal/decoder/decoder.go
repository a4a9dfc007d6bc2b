// Package decoder converts driver payloads into packed RGB24 pixels.
package decoder

import (
	"errors"
	"fmt"
)

// ErrUnsupported is returned by New for encodings with no decoder.
var ErrUnsupported = errors.New("decoder: unsupported pixel encoding")

// Decoder decodes one frame payload into Width*Height*3 bytes of RGB24.
type Decoder interface {
	Decode(data []byte) ([]byte, error)
}

// New returns a decoder for the given V4L2 fourcc and frame size.
func New(fourcc string, width, height int) (Decoder, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("decoder: invalid frame size %dx%d", width, height)
	}
	switch fourcc {
	case "MJPG", "JPEG":
		return NewJPEGDecoder(width, height), nil
	case "YUYV":
		return NewYUYVDecoder(width, height), nil
	case "RGB3":
		return NewRGBDecoder(width, height), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupported, fourcc)
}

// DimensionError reports a decoded frame that does not match the size the
// stream was opened with.
type DimensionError struct {
	WantWidth, WantHeight int
	GotWidth, GotHeight   int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("decoder: frame is %dx%d, stream is %dx%d", e.GotWidth, e.GotHeight, e.WantWidth, e.WantHeight)
}
