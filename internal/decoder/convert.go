package decoder

import (
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
)

// toRGB24 packs img into tightly strided RGB24.
func toRGB24(img image.Image) []byte {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]byte, w*h*3)

	switch src := img.(type) {
	case *image.YCbCr:
		i := 0
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				yi := src.YOffset(x, y)
				ci := src.COffset(x, y)
				r, g, bl := color.YCbCrToRGB(src.Y[yi], src.Cb[ci], src.Cr[ci])
				out[i], out[i+1], out[i+2] = r, g, bl
				i += 3
			}
		}
		return out
	case *image.RGBA:
		packRGBA(out, src)
		return out
	}

	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.Draw(rgba, rgba.Bounds(), img, b.Min, xdraw.Src)
	packRGBA(out, rgba)
	return out
}

func packRGBA(dst []byte, src *image.RGBA) {
	b := src.Bounds()
	i := 0
	for y := 0; y < b.Dy(); y++ {
		off := src.PixOffset(b.Min.X, b.Min.Y+y)
		row := src.Pix[off : off+b.Dx()*4]
		for x := 0; x < len(row); x += 4 {
			dst[i], dst[i+1], dst[i+2] = row[x], row[x+1], row[x+2]
			i += 3
		}
	}
}
