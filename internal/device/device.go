// Package device owns one capture device and walks it through the
// Closed → Opened → Streaming lifecycle.
//
// A Device only hands out frames through a *Stream, which OpenStream returns
// once the device is streaming. Closing the device or switching it to another
// index with ChangeDevice invalidates every Stream handed out before, so a
// capture loop can never read from a half-reconfigured device.
package device

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/junsooki/camview/internal/decoder"
	"github.com/junsooki/camview/internal/frame"
	"github.com/junsooki/camview/internal/log"
)

// maxDecodeFailures bounds how many undecodable payloads in a row GrabFrame
// skips before giving up.
const maxDecodeFailures = 30

// State is the lifecycle position of a Device.
type State int

const (
	StateClosed State = iota
	StateOpened
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpened:
		return "opened"
	case StateStreaming:
		return "streaming"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Device is one capture device bound to a backend index.
type Device struct {
	backend Backend
	logger  *slog.Logger

	mu        sync.Mutex
	index     int
	name      string
	handle    Handle
	format    CaptureFormat
	preferred *CaptureFormat
	state     State
	gen       uint64
}

// New binds a closed Device to index. Nothing is opened yet.
func New(b Backend, index int) *Device {
	return &Device{
		backend: b,
		index:   index,
		logger:  log.Component("device"),
	}
}

// Open claims the device and negotiates preferred, or the device's default
// format when preferred is nil. A preferred FrameRate of 0 accepts whatever
// rate the driver picks. On failure the device stays Closed.
func (d *Device) Open(preferred *CaptureFormat) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateClosed {
		return fmt.Errorf("%w: device %d is already %s", ErrDeviceUnavailable, d.index, d.state)
	}
	return d.openLocked(d.index, preferred)
}

func (d *Device) openLocked(index int, preferred *CaptureFormat) error {
	d.index = index
	if preferred != nil {
		p := *preferred
		d.preferred = &p
	} else {
		d.preferred = nil
	}

	h, err := d.backend.Open(index)
	if err != nil {
		if errors.Is(err, ErrDeviceUnavailable) {
			return err
		}
		return fmt.Errorf("%w: index %d: %v", ErrDeviceUnavailable, index, err)
	}

	f, err := negotiate(h, preferred)
	if err != nil {
		if cerr := h.Close(); cerr != nil {
			d.logger.Warn("close after failed negotiation", "index", index, "error", cerr)
		}
		return err
	}

	d.handle = h
	d.name = h.Name()
	d.format = f
	d.state = StateOpened
	d.logger.Info("device opened", "index", index, "name", d.name, "format", f.String())
	return nil
}

func negotiate(h Handle, preferred *CaptureFormat) (CaptureFormat, error) {
	var want CaptureFormat
	if preferred != nil {
		want = *preferred
	} else {
		modes, err := ListSupportedModes(h)
		if err != nil {
			return CaptureFormat{}, err
		}
		f, ok := defaultFormat(modes)
		if !ok {
			return CaptureFormat{}, fmt.Errorf("%w: device reports no capture modes", ErrFormatUnsupported)
		}
		want = f
	}

	got, err := h.SetFormat(want)
	if err != nil {
		if errors.Is(err, ErrDeviceUnavailable) {
			return CaptureFormat{}, err
		}
		return CaptureFormat{}, formatError(h, want, nil, err)
	}
	if got.Encoding != want.Encoding || got.Resolution != want.Resolution ||
		(want.FrameRate > 0 && got.FrameRate != want.FrameRate) {
		return CaptureFormat{}, formatError(h, want, &got, nil)
	}
	return got, nil
}

func formatError(p Prober, want CaptureFormat, got *CaptureFormat, cause error) error {
	available, _ := ListSupportedModes(p)
	return &FormatError{
		Requested:  want,
		Negotiated: got,
		Available:  available,
		Err:        cause,
	}
}

// ChangeDevice rebinds the Device to another index.
//
// A Closed device only records the new index. An Opened or Streaming device
// releases its current handle, invalidating any outstanding Stream, and opens
// the new index with the originally preferred format. It ends Opened, so
// OpenStream must be called again before frames flow. If the new index
// cannot be opened the device ends Closed, still bound to the new index.
func (d *Device) ChangeDevice(index int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateClosed {
		d.index = index
		return nil
	}

	prev := d.index
	if err := d.releaseLocked(); err != nil {
		d.logger.Warn("release before rebind", "index", prev, "error", err)
	}
	if err := d.openLocked(index, d.preferred); err != nil {
		return err
	}
	d.logger.Info("device rebound", "from", prev, "to", index)
	return nil
}

// OpenStream starts capture on an Opened device.
func (d *Device) OpenStream() (*Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.state {
	case StateClosed:
		return nil, fmt.Errorf("%w: device %d is closed", ErrStreamOpen, d.index)
	case StateStreaming:
		return nil, fmt.Errorf("%w: device %d is already streaming", ErrStreamOpen, d.index)
	}

	res := d.format.Resolution
	dec, err := decoder.New(string(d.format.Encoding), res.Width, res.Height)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStreamOpen, err)
	}
	if err := d.handle.StartStreaming(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStreamOpen, err)
	}

	d.state = StateStreaming
	d.logger.Info("stream started", "index", d.index, "format", d.format.String())
	return &Stream{
		dev:    d,
		gen:    d.gen,
		handle: d.handle,
		dec:    dec,
		format: d.format,
	}, nil
}

// Close releases the device from any state. It unblocks a GrabFrame in
// progress on another goroutine.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateClosed {
		return nil
	}
	return d.releaseLocked()
}

func (d *Device) releaseLocked() error {
	d.gen++
	var err error
	if d.handle != nil {
		err = d.handle.Close()
		d.handle = nil
	}
	d.state = StateClosed
	d.logger.Info("device closed", "index", d.index)
	return err
}

// SupportedModes lists every mode the bound device offers. A Closed device
// is opened just long enough to probe it.
func (d *Device) SupportedModes() ([]CaptureFormat, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.handle != nil {
		return ListSupportedModes(d.handle)
	}

	h, err := d.backend.Open(d.index)
	if err != nil {
		if errors.Is(err, ErrDeviceUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: index %d: %v", ErrDeviceUnavailable, d.index, err)
	}
	defer h.Close()
	return ListSupportedModes(h)
}

// State returns the current lifecycle state.
func (d *Device) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Index returns the bound device index.
func (d *Device) Index() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.index
}

// Name returns the driver-reported name, empty until opened.
func (d *Device) Name() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.name
}

// Format returns the negotiated format. ok is false while Closed.
func (d *Device) Format() (f CaptureFormat, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.format, d.state != StateClosed
}

func (d *Device) live(gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state == StateStreaming && d.gen == gen
}

// Stream is a live capture session. It is the only way to grab frames.
type Stream struct {
	dev    *Device
	gen    uint64
	handle Handle
	dec    decoder.Decoder
	format CaptureFormat

	grabMu sync.Mutex
	seq    uint64
}

// Format returns the format frames are delivered in.
func (s *Stream) Format() CaptureFormat {
	return s.format
}

// GrabFrame blocks until the driver delivers a frame and returns it decoded
// to RGB24. Calls are serialized. Errors wrap ErrCaptureFailure and are not
// recoverable for this Stream.
func (s *Stream) GrabFrame() (frame.Buffer, error) {
	s.grabMu.Lock()
	defer s.grabMu.Unlock()

	res := s.format.Resolution
	for failures := 0; ; {
		if !s.dev.live(s.gen) {
			return frame.Buffer{}, fmt.Errorf("%w: stream closed", ErrCaptureFailure)
		}

		payload, err := s.handle.ReadFrame()
		if err != nil {
			return frame.Buffer{}, fmt.Errorf("%w: %v", ErrCaptureFailure, err)
		}
		if !s.dev.live(s.gen) {
			return frame.Buffer{}, fmt.Errorf("%w: stream closed", ErrCaptureFailure)
		}

		pix, err := s.dec.Decode(payload)
		if err != nil {
			failures++
			if failures >= maxDecodeFailures {
				return frame.Buffer{}, fmt.Errorf("%w: %d undecodable %s frames in a row: %v",
					ErrCaptureFailure, failures, s.format.Encoding, err)
			}
			s.dev.logger.Debug("skipping undecodable frame", "encoding", s.format.Encoding, "error", err)
			continue
		}

		s.seq++
		buf := frame.Buffer{
			Pix:       pix,
			Width:     res.Width,
			Height:    res.Height,
			Seq:       s.seq,
			Timestamp: time.Now(),
		}
		if s.format.Encoding.Compressed() {
			buf.Payload = payload
		}
		return buf, nil
	}
}
