// Package display presents decoded frames: each tick it pulls the freshest
// frame, uploads it as a texture and draws a textured full-screen quad.
//
// Loop holds the per-tick logic and talks to the GPU only through Uploader
// and Target, so it runs without a window. Game binds it to ebiten.
package display

import (
	"errors"

	"github.com/junsooki/camview/internal/frame"
	"github.com/junsooki/camview/internal/transport"
)

// FrameSizeError reports a frame whose pixel buffer does not match its
// dimensions. It stops the presentation loop.
type FrameSizeError = frame.SizeError

// FrameSource hands out frames without blocking. *transport.Slot is one.
type FrameSource interface {
	TryReceive() (*frame.Buffer, error)
	Err() error
}

// Uploader owns the texture frames are uploaded into.
type Uploader interface {
	// Upload replaces the texture with width x height RGBA pixels,
	// reallocating it when the size changes.
	Upload(rgba []byte, width, height int)
}

// Target is the surface the quad is drawn onto, sampling the last upload.
type Target interface {
	Size() (width, height int)
	DrawQuad(vertices []ScreenVertex, indices []uint16)
}

// LoopStats counts what the loop did.
type LoopStats struct {
	Uploaded uint64 // ticks that uploaded a new frame
	Repeated uint64 // ticks that found nothing new and kept the last texture
	LastSeq  uint64
}

// Loop is the presentation state carried from tick to tick.
type Loop struct {
	src       FrameSource
	up        Uploader
	transform Mat4
	letterbox bool
	indices   []uint16

	rgba       []byte
	texW, texH int
	stats      LoopStats
}

// NewLoop returns a loop drawing with the identity transform.
func NewLoop(src FrameSource, up Uploader) *Loop {
	return &Loop{
		src:       src,
		up:        up,
		transform: Identity(),
		indices:   StripToList(QuadStrip),
	}
}

// SetLetterbox keeps the frame's aspect ratio instead of stretching it over
// the whole target.
func (l *Loop) SetLetterbox(on bool) {
	l.letterbox = on
}

// Tick pulls at most one frame and uploads it. With nothing new the previous
// texture stays in place. It returns a *FrameSizeError for a malformed frame
// and an error wrapping transport.ErrClosed once the source is closed.
func (l *Loop) Tick() error {
	buf, err := l.src.TryReceive()
	if err != nil {
		return err
	}
	if buf == nil {
		l.stats.Repeated++
		return nil
	}
	if err := buf.Validate(); err != nil {
		return err
	}

	l.rgba = expandRGBA(l.rgba, buf.Pix)
	l.up.Upload(l.rgba, buf.Width, buf.Height)
	l.texW, l.texH = buf.Width, buf.Height
	l.stats.Uploaded++
	l.stats.LastSeq = buf.Seq
	return nil
}

// Render draws the current texture onto t. It reports false before the
// first frame has been uploaded.
func (l *Loop) Render(t Target) bool {
	if l.texW == 0 || l.texH == 0 {
		return false
	}
	w, h := t.Size()
	m := l.transform
	if l.letterbox {
		m = Letterbox(w, h, l.texW, l.texH)
	}
	t.DrawQuad(resolve(m, w, h, l.texW, l.texH), l.indices)
	return true
}

// Stats returns the counters so far.
func (l *Loop) Stats() LoopStats {
	return l.stats
}

// Closed reports whether err from Tick means the source finished.
func Closed(err error) bool {
	return errors.Is(err, transport.ErrClosed)
}

// expandRGBA widens packed RGB24 to opaque RGBA, reusing dst when it is
// large enough.
func expandRGBA(dst, rgb []byte) []byte {
	n := len(rgb) / frame.BytesPerPixel
	if cap(dst) < n*4 {
		dst = make([]byte, n*4)
	}
	dst = dst[:n*4]
	for i, j := 0, 0; i < n*frame.BytesPerPixel; i, j = i+3, j+4 {
		dst[j] = rgb[i]
		dst[j+1] = rgb[i+1]
		dst[j+2] = rgb[i+2]
		dst[j+3] = 0xff
	}
	return dst
}
