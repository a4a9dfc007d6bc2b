package decoder

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

func solidJPEG(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func near(a, b byte) bool {
	d := int(a) - int(b)
	return d > -8 && d < 8
}

func TestNew(t *testing.T) {
	for _, fourcc := range []string{"MJPG", "YUYV", "RGB3"} {
		if _, err := New(fourcc, 4, 4); err != nil {
			t.Errorf("New(%q): %v", fourcc, err)
		}
	}
	if _, err := New("H264", 4, 4); !errors.Is(err, ErrUnsupported) {
		t.Errorf("New(H264) error = %v, want ErrUnsupported", err)
	}
	if _, err := New("MJPG", 0, 4); err == nil {
		t.Error("New with zero width should fail")
	}
}

func TestJPEGDecoder(t *testing.T) {
	data := solidJPEG(t, 16, 8, color.RGBA{R: 200, G: 40, B: 90, A: 255})

	pix, err := NewJPEGDecoder(16, 8).Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(pix) != 16*8*3 {
		t.Fatalf("len(pix) = %d, want %d", len(pix), 16*8*3)
	}
	if !near(pix[0], 200) || !near(pix[1], 40) || !near(pix[2], 90) {
		t.Errorf("first pixel = %v, want about (200,40,90)", pix[:3])
	}
}

func TestJPEGDecoderDimensionMismatch(t *testing.T) {
	data := solidJPEG(t, 16, 8, color.RGBA{A: 255})

	_, err := NewJPEGDecoder(32, 8).Decode(data)
	var de *DimensionError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DimensionError, got %v", err)
	}
	if de.GotWidth != 16 || de.WantWidth != 32 {
		t.Errorf("unexpected dimensions in %v", de)
	}
}

func TestJPEGDecoderGarbage(t *testing.T) {
	if _, err := NewJPEGDecoder(4, 4).Decode([]byte("not a jpeg")); err == nil {
		t.Fatal("expected error for garbage input")
	}
}

func TestYUYVDecoderNeutralGray(t *testing.T) {
	const w, h = 4, 2
	data := bytes.Repeat([]byte{128, 128, 128, 128}, w*h/2)

	pix, err := NewYUYVDecoder(w, h).Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(pix) != w*h*3 {
		t.Fatalf("len(pix) = %d, want %d", len(pix), w*h*3)
	}
	for i, v := range pix {
		if v != 128 {
			t.Fatalf("pix[%d] = %d, want 128", i, v)
		}
	}
}

func TestYUYVDecoderShortFrame(t *testing.T) {
	if _, err := NewYUYVDecoder(4, 2).Decode(make([]byte, 10)); err == nil {
		t.Fatal("expected error for short frame")
	}
}

func TestRGBDecoderCopies(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5, 6}
	pix, err := NewRGBDecoder(2, 1).Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	data[0] = 99
	if pix[0] != 1 {
		t.Error("decoded pixels alias the driver buffer")
	}
}
