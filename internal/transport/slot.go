// Package transport carries decoded frames from the capture goroutine to the
// presentation loop through a single-slot mailbox.
//
// The slot holds at most one pending frame. Send never waits for the
// consumer: with DropOldest a new frame replaces an unconsumed one, with
// DropNewest the new frame is discarded instead. TryReceive never waits for
// the producer and hands out each frame at most once. Memory use is bounded
// by one frame no matter how fast the producer runs.
package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/junsooki/camview/internal/frame"
)

// ErrClosed is returned to the consumer once the producer has closed the slot.
var ErrClosed = errors.New("transport: closed")

// Policy decides which frame survives when Send finds the slot occupied.
type Policy int

const (
	// DropOldest replaces the pending frame with the new one.
	DropOldest Policy = iota
	// DropNewest keeps the pending frame and discards the new one.
	DropNewest
)

func (p Policy) String() string {
	switch p {
	case DropOldest:
		return "drop-oldest"
	case DropNewest:
		return "drop-newest"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy accepts "drop-oldest" (or "overwrite") and "drop-newest" (or "drop").
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "drop-oldest", "overwrite":
		return DropOldest, nil
	case "drop-newest", "drop":
		return DropNewest, nil
	}
	return DropOldest, fmt.Errorf("transport: unknown policy %q", s)
}

// Stats is a snapshot of slot counters.
type Stats struct {
	Sent      uint64 // frames handed to Send before Close
	Delivered uint64 // frames returned by TryReceive or Receive
	Dropped   uint64 // frames overwritten, rejected, or discarded on Close
}

// Slot is a single-producer, single-consumer frame mailbox.
type Slot struct {
	policy Policy

	mu      sync.Mutex
	pending *frame.Buffer
	closed  bool
	cause   error

	ready chan struct{}
	done  chan struct{}

	sent      atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// NewSlot returns an empty, open slot.
func NewSlot(p Policy) *Slot {
	return &Slot{
		policy: p,
		ready:  make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Policy returns the backpressure policy.
func (s *Slot) Policy() Policy {
	return s.policy
}

// Send offers buf to the consumer and returns whether it now occupies the
// slot. It never blocks. The caller gives up buf.Pix and buf.Payload.
func (s *Slot) Send(buf frame.Buffer) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.sent.Add(1)
	if s.pending != nil {
		s.dropped.Add(1)
		if s.policy == DropNewest {
			s.mu.Unlock()
			return false
		}
	}
	s.pending = &buf
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
	return true
}

// TryReceive takes the pending frame, if any, and empties the slot. It
// returns nil, nil when nothing new has arrived and an error wrapping
// ErrClosed once the producer has closed the slot.
func (s *Slot) TryReceive() (*frame.Buffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, s.closedErrLocked()
	}
	buf := s.pending
	if buf == nil {
		return nil, nil
	}
	s.pending = nil
	s.delivered.Add(1)
	return buf, nil
}

// Receive waits until a frame arrives, the slot closes or ctx is done.
func (s *Slot) Receive(ctx context.Context) (*frame.Buffer, error) {
	for {
		buf, err := s.TryReceive()
		if buf != nil || err != nil {
			return buf, err
		}
		select {
		case <-s.ready:
		case <-s.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close marks the producer as finished.
func (s *Slot) Close() {
	s.CloseWithError(nil)
}

// CloseWithError marks the producer as finished because of cause. A pending
// frame is discarded so the consumer never sees data from a dead producer.
// Only the first call has any effect.
func (s *Slot) CloseWithError(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.cause = cause
	if s.pending != nil {
		s.pending = nil
		s.dropped.Add(1)
	}
	close(s.done)
}

// Done is closed when the slot is closed.
func (s *Slot) Done() <-chan struct{} {
	return s.done
}

// Err returns the error the slot was closed with, or nil.
func (s *Slot) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cause
}

// Stats returns the current counters.
func (s *Slot) Stats() Stats {
	return Stats{
		Sent:      s.sent.Load(),
		Delivered: s.delivered.Load(),
		Dropped:   s.dropped.Load(),
	}
}

func (s *Slot) closedErrLocked() error {
	if s.cause != nil {
		return fmt.Errorf("%w: %w", ErrClosed, s.cause)
	}
	return ErrClosed
}
