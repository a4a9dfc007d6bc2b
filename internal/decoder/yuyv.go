package decoder

import (
	"fmt"
	"image"
)

// YUYVDecoder decodes packed 4:2:2 Y0 U Y1 V frames.
type YUYVDecoder struct {
	width, height int
}

func NewYUYVDecoder(width, height int) *YUYVDecoder {
	return &YUYVDecoder{width: width, height: height}
}

func (d *YUYVDecoder) Decode(data []byte) ([]byte, error) {
	if d.width%2 != 0 {
		return nil, fmt.Errorf("decoder: YUYV width %d is odd", d.width)
	}
	if want := d.width * d.height * 2; len(data) < want {
		return nil, fmt.Errorf("decoder: YUYV frame has %d bytes, want %d", len(data), want)
	}

	img := image.NewYCbCr(image.Rect(0, 0, d.width, d.height), image.YCbCrSubsampleRatio422)
	for y := 0; y < d.height; y++ {
		row := data[y*d.width*2 : (y+1)*d.width*2]
		yOff := y * img.YStride
		cOff := y * img.CStride
		for x := 0; x < d.width/2; x++ {
			p := row[x*4 : x*4+4]
			img.Y[yOff+2*x] = p[0]
			img.Cb[cOff+x] = p[1]
			img.Y[yOff+2*x+1] = p[2]
			img.Cr[cOff+x] = p[3]
		}
	}
	return toRGB24(img), nil
}
