package mirror

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/junsooki/camview/internal/frame"
	"github.com/junsooki/camview/internal/log"
	"github.com/junsooki/camview/internal/transport"
)

// Source is where the forwarder takes frames from. *transport.Slot is one.
type Source interface {
	Receive(ctx context.Context) (*frame.Buffer, error)
}

// Sender delivers one compressed frame to a viewer.
type Sender interface {
	SendFrame(data []byte) error
	Ready() bool
}

// ForwardStats counts what happened to mirrored frames.
type ForwardStats struct {
	Forwarded uint64
	Skipped   uint64 // no viewer, channel not open, or congested
	Failed    uint64
}

// Forwarder moves compressed payloads from a Source to whichever viewer is
// attached. Frames that arrive while nobody can take them are dropped.
type Forwarder struct {
	src    Source
	logger *slog.Logger

	mu     sync.Mutex
	sender Sender
	stats  ForwardStats
}

// NewForwarder reads from src.
func NewForwarder(src Source) *Forwarder {
	return &Forwarder{src: src, logger: log.Component("forwarder")}
}

// Attach routes frames to s. A nil s detaches the current viewer.
func (f *Forwarder) Attach(s Sender) {
	f.mu.Lock()
	f.sender = s
	f.mu.Unlock()
}

// Stats returns the counters so far.
func (f *Forwarder) Stats() ForwardStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

// Run forwards until ctx is done or the source closes. Capture failures
// are reported by the capture side, so a closed source ends Run with nil.
func (f *Forwarder) Run(ctx context.Context) error {
	for {
		buf, err := f.src.Receive(ctx)
		if err != nil {
			if errors.Is(err, transport.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if len(buf.Payload) == 0 {
			continue
		}
		f.forward(buf)
	}
}

func (f *Forwarder) forward(buf *frame.Buffer) {
	f.mu.Lock()
	s := f.sender
	f.mu.Unlock()

	if s == nil || !s.Ready() {
		f.count(func(st *ForwardStats) { st.Skipped++ })
		return
	}
	err := s.SendFrame(buf.Payload)
	switch {
	case err == nil:
		f.count(func(st *ForwardStats) { st.Forwarded++ })
	case errors.Is(err, ErrCongested) || errors.Is(err, ErrNotOpen):
		f.count(func(st *ForwardStats) { st.Skipped++ })
	default:
		f.count(func(st *ForwardStats) { st.Failed++ })
		f.logger.Warn("mirror send failed", "seq", buf.Seq, "error", err)
	}
}

func (f *Forwarder) count(fn func(*ForwardStats)) {
	f.mu.Lock()
	fn(&f.stats)
	f.mu.Unlock()
}
