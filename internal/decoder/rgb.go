package decoder

import "fmt"

// RGBDecoder accepts frames that are already RGB24.
type RGBDecoder struct {
	width, height int
}

func NewRGBDecoder(width, height int) *RGBDecoder {
	return &RGBDecoder{width: width, height: height}
}

func (d *RGBDecoder) Decode(data []byte) ([]byte, error) {
	want := d.width * d.height * 3
	if len(data) < want {
		return nil, fmt.Errorf("decoder: RGB24 frame has %d bytes, want %d", len(data), want)
	}
	pix := make([]byte, want)
	copy(pix, data)
	return pix, nil
}
