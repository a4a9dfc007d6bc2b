package display

import "math"

// QuadVertex is a corner of the full-screen quad: a position in normalized
// device coordinates and a texture coordinate with v growing upwards.
type QuadVertex struct {
	X, Y float32
	U, V float32
}

// Quad covers the whole target. Corners run bottom-left, top-left,
// top-right, bottom-right.
var Quad = [4]QuadVertex{
	{X: -1, Y: -1, U: 0, V: 0},
	{X: -1, Y: 1, U: 0, V: 1},
	{X: 1, Y: 1, U: 1, V: 1},
	{X: 1, Y: -1, U: 1, V: 0},
}

// QuadStrip is the triangle-strip order the quad is drawn in.
var QuadStrip = []uint16{1, 2, 0, 3}

// StripToList expands a triangle strip into an indexed triangle list,
// swapping every odd triangle so all triangles keep the same winding.
func StripToList(strip []uint16) []uint16 {
	if len(strip) < 3 {
		return nil
	}
	out := make([]uint16, 0, (len(strip)-2)*3)
	for i := 0; i+2 < len(strip); i++ {
		if i%2 == 0 {
			out = append(out, strip[i], strip[i+1], strip[i+2])
		} else {
			out = append(out, strip[i+1], strip[i], strip[i+2])
		}
	}
	return out
}

// Mat4 is a column-major 4x4 matrix.
type Mat4 [16]float32

// Identity returns the identity matrix.
func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Scale returns a matrix scaling x and y.
func Scale(sx, sy float32) Mat4 {
	m := Identity()
	m[0] = sx
	m[5] = sy
	return m
}

// Apply transforms the point (x, y, 0, 1) and divides by w.
func (m Mat4) Apply(x, y float32) (float32, float32) {
	tx := m[0]*x + m[4]*y + m[12]
	ty := m[1]*x + m[5]*y + m[13]
	tw := m[3]*x + m[7]*y + m[15]
	if tw != 0 && tw != 1 {
		tx /= tw
		ty /= tw
	}
	return tx, ty
}

// Letterbox returns the transform that fits a frame into the view while
// keeping its aspect ratio, centred with bars on the short sides.
func Letterbox(viewW, viewH, frameW, frameH int) Mat4 {
	if viewW <= 0 || viewH <= 0 || frameW <= 0 || frameH <= 0 {
		return Identity()
	}
	vw, vh := float64(viewW), float64(viewH)
	fw, fh := float64(frameW), float64(frameH)
	scale := math.Min(vw/fw, vh/fh)
	return Scale(float32(fw*scale/vw), float32(fh*scale/vh))
}

// ScreenVertex is a quad corner resolved to target pixels and source
// texture pixels.
type ScreenVertex struct {
	DstX, DstY float32
	SrcX, SrcY float32
}

// resolve maps the quad through m onto a target of targetW x targetH pixels
// sampling a texture of texW x texH pixels. Pixel rows grow downwards, so
// NDC y=+1 and texture v=1 both land on row 0.
func resolve(m Mat4, targetW, targetH, texW, texH int) []ScreenVertex {
	out := make([]ScreenVertex, len(Quad))
	for i, q := range Quad {
		x, y := m.Apply(q.X, q.Y)
		out[i] = ScreenVertex{
			DstX: (x + 1) / 2 * float32(targetW),
			DstY: (1 - y) / 2 * float32(targetH),
			SrcX: q.U * float32(texW),
			SrcY: (1 - q.V) * float32(texH),
		}
	}
	return out
}
