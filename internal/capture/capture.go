// Package capture runs the camera side of the pipeline: it opens the device,
// grabs frames in a loop on a dedicated OS thread and hands each one to the
// presentation loop through a transport.Slot.
package capture

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"time"

	"github.com/junsooki/camview/internal/device"
	"github.com/junsooki/camview/internal/frame"
	"github.com/junsooki/camview/internal/log"
	"github.com/junsooki/camview/internal/transport"
)

// statsInterval is how often the loop logs throughput at debug level.
const statsInterval = 5 * time.Second

// Config selects the camera and how hard to try opening it.
type Config struct {
	Index  int
	Format *device.CaptureFormat // nil picks the device default
	Retry  RetryConfig
}

// Capturer owns one Device for the lifetime of Run.
type Capturer struct {
	backend device.Backend
	cfg     Config
	out     *transport.Slot
	mirror  *transport.Slot
	logger  *slog.Logger

	opened chan device.CaptureFormat
}

// New prepares a capturer that delivers decoded frames to out.
func New(b device.Backend, cfg Config, out *transport.Slot) *Capturer {
	return &Capturer{
		backend: b,
		cfg:     cfg,
		out:     out,
		logger:  log.Component("capture"),
		opened:  make(chan device.CaptureFormat, 1),
	}
}

// SetMirror adds a second slot that receives the compressed payload of every
// frame. Frames sent there carry no pixels. Must be called before Run.
func (c *Capturer) SetMirror(s *transport.Slot) {
	c.mirror = s
}

// Opened delivers the negotiated format once the stream is running. It is
// never written to if opening fails.
func (c *Capturer) Opened() <-chan device.CaptureFormat {
	return c.opened
}

// Run opens the camera and streams until ctx is done or capture fails. It
// locks the calling goroutine to its OS thread for the whole session.
//
// On return every slot is closed: with no cause when ctx ended the session,
// with the error otherwise. The returned error is nil after cancellation.
func (c *Capturer) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	err := c.run(ctx)
	if ctx.Err() != nil && (err == nil || errors.Is(err, ctx.Err()) || errors.Is(err, device.ErrCaptureFailure)) {
		err = nil
	}
	c.closeSlots(err)
	if err != nil {
		c.logger.Error("capture stopped", "error", err)
	} else {
		c.logger.Info("capture stopped")
	}
	return err
}

func (c *Capturer) closeSlots(err error) {
	c.out.CloseWithError(err)
	if c.mirror != nil {
		c.mirror.CloseWithError(err)
	}
}

func (c *Capturer) run(ctx context.Context) error {
	dev := device.New(c.backend, c.cfg.Index)
	defer dev.Close()

	var stream *device.Stream
	err := withRetry(ctx, c.cfg.Retry, c.logger, func() error {
		if err := dev.Open(c.cfg.Format); err != nil {
			return err
		}
		s, err := dev.OpenStream()
		if err != nil {
			dev.Close()
			return err
		}
		stream = s
		return nil
	})
	if err != nil {
		return err
	}

	// Closing the device is the only way to interrupt a blocked grab.
	stop := context.AfterFunc(ctx, func() { dev.Close() })
	defer stop()

	format := stream.Format()
	c.opened <- format
	mirrored := c.mirror != nil && format.Encoding.Compressed()
	if c.mirror != nil && !mirrored {
		c.logger.Warn("mirror unavailable for uncompressed capture", "encoding", format.Encoding)
		c.mirror.Close()
	}

	var grabbed uint64
	lastStats := time.Now()
	for {
		buf, err := stream.GrabFrame()
		if err != nil {
			return err
		}
		grabbed++

		if mirrored && buf.Payload != nil {
			c.mirror.Send(frame.Buffer{
				Width:     buf.Width,
				Height:    buf.Height,
				Payload:   buf.Payload,
				Seq:       buf.Seq,
				Timestamp: buf.Timestamp,
			})
		}
		c.out.Send(buf)

		if now := time.Now(); now.Sub(lastStats) >= statsInterval {
			st := c.out.Stats()
			c.logger.Debug("capture stats",
				"fps", float64(grabbed)/now.Sub(lastStats).Seconds(),
				"sent", st.Sent,
				"delivered", st.Delivered,
				"dropped", st.Dropped,
			)
			grabbed = 0
			lastStats = now
		}
	}
}
