package decoder

import (
	"bytes"
	"image/jpeg"
)

// JPEGDecoder decodes MJPEG frames.
type JPEGDecoder struct {
	width, height int
}

func NewJPEGDecoder(width, height int) *JPEGDecoder {
	return &JPEGDecoder{width: width, height: height}
}

func (d *JPEGDecoder) Decode(data []byte) ([]byte, error) {
	pix, w, h, err := DecodeJPEG(data)
	if err != nil {
		return nil, err
	}
	if w != d.width || h != d.height {
		return nil, &DimensionError{WantWidth: d.width, WantHeight: d.height, GotWidth: w, GotHeight: h}
	}
	return pix, nil
}

// DecodeJPEG decodes a JPEG of any size into RGB24.
func DecodeJPEG(data []byte) (pix []byte, width, height int, err error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, err
	}
	b := img.Bounds()
	return toRGB24(img), b.Dx(), b.Dy(), nil
}
