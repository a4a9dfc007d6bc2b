package device

import (
	"fmt"
	"strings"
)

// Encoding is a V4L2 four-character pixel format code such as "MJPG".
type Encoding string

const (
	EncodingMJPEG Encoding = "MJPG"
	EncodingYUYV  Encoding = "YUYV"
	EncodingRGB24 Encoding = "RGB3"
)

// ParseEncoding accepts a fourcc or a common alias ("mjpeg", "yuyv", "rgb").
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mjpg", "mjpeg", "jpeg":
		return EncodingMJPEG, nil
	case "yuyv", "yuy2", "yuv422":
		return EncodingYUYV, nil
	case "rgb3", "rgb", "rgb24":
		return EncodingRGB24, nil
	}
	if len(s) == 4 {
		return Encoding(s), nil
	}
	return "", fmt.Errorf("device: unknown pixel encoding %q", s)
}

// Compressed reports whether frames of this encoding arrive compressed.
func (e Encoding) Compressed() bool {
	return e == EncodingMJPEG
}

// Resolution is a frame size in pixels.
type Resolution struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// Area returns Width*Height.
func (r Resolution) Area() int {
	return r.Width * r.Height
}

// CaptureFormat describes how a device streams frames. A stream's format is
// fixed once it is open; changing it means reopening the device.
type CaptureFormat struct {
	Resolution Resolution
	Encoding   Encoding
	FrameRate  int
}

// NewFormat is shorthand for a CaptureFormat literal.
func NewFormat(width, height int, enc Encoding, fps int) CaptureFormat {
	return CaptureFormat{
		Resolution: Resolution{Width: width, Height: height},
		Encoding:   enc,
		FrameRate:  fps,
	}
}

func (f CaptureFormat) String() string {
	return fmt.Sprintf("%s %s@%d", f.Encoding, f.Resolution, f.FrameRate)
}

// ResolutionRates is one resolution a device offers for an encoding, with
// the frame rates it supports at that size.
type ResolutionRates struct {
	Resolution Resolution
	FrameRates []int
}
