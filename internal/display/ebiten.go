package display

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/junsooki/camview/internal/log"
)

// samplerSource samples the uploaded frame at the interpolated texel.
const samplerSource = `//kage:unit pixels

package main

func Fragment(dstPos vec4, srcPos vec2, color vec4) vec4 {
	return imageSrc0At(srcPos)
}
`

// Options configure the window. The size is fixed once the window opens.
type Options struct {
	Width     int
	Height    int
	Title     string
	TPS       int
	Letterbox bool
}

// DefaultOptions is a 1280x720 window ticking at 165 Hz.
func DefaultOptions() Options {
	return Options{Width: 1280, Height: 720, Title: "camview", TPS: 165}
}

// Game runs a Loop inside an ebiten window.
type Game struct {
	opts   Options
	src    FrameSource
	loop   *Loop
	tex    *texture
	logger *slog.Logger
}

// NewGame builds the window-side of the pipeline. Nothing touches the GPU
// until Run.
func NewGame(src FrameSource, opts Options) *Game {
	d := DefaultOptions()
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = d.Width, d.Height
	}
	if opts.TPS <= 0 {
		opts.TPS = d.TPS
	}
	if opts.Title == "" {
		opts.Title = d.Title
	}
	tex := &texture{}
	loop := NewLoop(src, tex)
	loop.SetLetterbox(opts.Letterbox)
	return &Game{
		opts:   opts,
		src:    src,
		loop:   loop,
		tex:    tex,
		logger: log.Component("display"),
	}
}

// Run opens the window and blocks until it is closed, the source closes or
// a frame cannot be presented. Must be called from the main goroutine.
//
// It returns nil when the user closed the window or the source closed
// without a cause, and the failure otherwise.
func (g *Game) Run() error {
	shader, err := ebiten.NewShader([]byte(samplerSource))
	if err != nil {
		return fmt.Errorf("compile sampler shader: %w", err)
	}
	g.tex.shader = shader

	ebiten.SetWindowSize(g.opts.Width, g.opts.Height)
	ebiten.SetWindowTitle(g.opts.Title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeDisabled)
	ebiten.SetWindowClosingHandled(true)
	ebiten.SetTPS(g.opts.TPS)
	ebiten.SetVsyncEnabled(false)

	err = ebiten.RunGame(g)

	st := g.loop.Stats()
	g.logger.Info("presentation stopped", "uploaded", st.Uploaded, "repeated", st.Repeated, "last_seq", st.LastSeq)
	if errors.Is(err, ebiten.Termination) {
		return nil
	}
	return err
}

// --- ebiten.Game interface ---

func (g *Game) Update() error {
	if ebiten.IsWindowBeingClosed() {
		g.logger.Info("window closed")
		return ebiten.Termination
	}

	return tickResult(g.loop.Tick(), g.src)
}

// tickResult maps a Tick error to what Update hands ebiten: a clean close
// ends the game quietly, a close with a cause or a bad frame is a failure.
func tickResult(err error, src FrameSource) error {
	switch {
	case err == nil:
		return nil
	case Closed(err):
		if cause := src.Err(); cause != nil {
			return fmt.Errorf("capture stopped: %w", cause)
		}
		return ebiten.Termination
	default:
		return err
	}
}

func (g *Game) Draw(screen *ebiten.Image) {
	g.loop.Render(&screenTarget{screen: screen, tex: g.tex})
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.opts.Width, g.opts.Height
}

// texture is the GPU-side copy of the latest frame.
type texture struct {
	img    *ebiten.Image
	shader *ebiten.Shader
}

func (t *texture) Upload(rgba []byte, width, height int) {
	if t.img == nil || t.img.Bounds().Dx() != width || t.img.Bounds().Dy() != height {
		if t.img != nil {
			t.img.Deallocate()
		}
		t.img = ebiten.NewImage(width, height)
	}
	t.img.WritePixels(rgba)
}

type screenTarget struct {
	screen *ebiten.Image
	tex    *texture
}

func (s *screenTarget) Size() (int, int) {
	b := s.screen.Bounds()
	return b.Dx(), b.Dy()
}

func (s *screenTarget) DrawQuad(vertices []ScreenVertex, indices []uint16) {
	if s.tex.img == nil || s.tex.shader == nil {
		return
	}
	vs := make([]ebiten.Vertex, len(vertices))
	for i, v := range vertices {
		vs[i] = ebiten.Vertex{
			DstX:   v.DstX,
			DstY:   v.DstY,
			SrcX:   v.SrcX,
			SrcY:   v.SrcY,
			ColorR: 1,
			ColorG: 1,
			ColorB: 1,
			ColorA: 1,
		}
	}
	op := &ebiten.DrawTrianglesShaderOptions{}
	op.Images[0] = s.tex.img
	s.screen.DrawTrianglesShader(vs, indices, s.tex.shader, op)
}
