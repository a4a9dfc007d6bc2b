// Package frame defines the decoded frame buffer handed from the capture
// goroutine to the presentation loop.
package frame

import (
	"fmt"
	"time"
)

// BytesPerPixel is the size of one packed RGB24 pixel.
const BytesPerPixel = 3

// Buffer is one decoded camera frame.
//
// Pix holds packed, row-major RGB24 pixels with no row padding. Once a Buffer
// has been sent through a transport the sender must not touch Pix again; the
// receiver owns it.
type Buffer struct {
	Pix    []byte
	Width  int
	Height int

	// Payload is the compressed frame exactly as the driver delivered it.
	// Only set for MJPEG sources.
	Payload []byte

	Seq       uint64
	Timestamp time.Time
}

// SizeError reports a buffer whose length disagrees with its dimensions.
type SizeError struct {
	Width, Height int
	Want, Got     int
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("frame: %dx%d RGB24 needs %d bytes, got %d", e.Width, e.Height, e.Want, e.Got)
}

// Validate checks that Pix matches Width*Height*BytesPerPixel.
func (b *Buffer) Validate() error {
	want := b.Width * b.Height * BytesPerPixel
	if b.Width <= 0 || b.Height <= 0 || len(b.Pix) != want {
		return &SizeError{Width: b.Width, Height: b.Height, Want: want, Got: len(b.Pix)}
	}
	return nil
}

// Bounds returns the frame size in pixels.
func (b *Buffer) Bounds() (width, height int) {
	return b.Width, b.Height
}
