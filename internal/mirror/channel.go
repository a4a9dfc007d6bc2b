// Package mirror forwards compressed camera frames to a remote viewer over a
// WebRTC datachannel, and reassembles them on the other side.
package mirror

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/junsooki/camview/internal/log"
)

// maxBuffered is how much unsent data may queue in the channel before
// frames are skipped instead of piling up behind a slow link.
const maxBuffered = 1 << 20

var (
	// ErrNotOpen is returned when sending on a channel that is not open.
	ErrNotOpen = errors.New("mirror: channel not open")
	// ErrCongested is returned when the channel still holds too much unsent data.
	ErrCongested = errors.New("mirror: channel congested")
)

// DataChannel is the part of *webrtc.DataChannel a Channel uses.
type DataChannel interface {
	Send(data []byte) error
	ReadyState() webrtc.DataChannelState
	BufferedAmount() uint64
	OnMessage(f func(msg webrtc.DataChannelMessage))
}

// Channel carries whole frames over a datachannel, splitting them into
// chunks on send and reassembling them on receipt.
type Channel struct {
	dc     DataChannel
	logger *slog.Logger

	sendMu sync.Mutex
	seq    uint32

	recvMu  sync.Mutex
	reasm   Reassembler
	onFrame func(data []byte)
}

// NewChannel wraps dc.
func NewChannel(dc DataChannel) *Channel {
	c := &Channel{
		dc:     dc,
		logger: log.Component("mirror"),
	}
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		c.receive(msg.Data)
	})
	return c
}

// Ready reports whether frames can be sent.
func (c *Channel) Ready() bool {
	return c.dc.ReadyState() == webrtc.DataChannelStateOpen
}

// SendFrame sends one frame. It fails fast rather than queue behind a
// congested link.
func (c *Channel) SendFrame(data []byte) error {
	if !c.Ready() {
		return ErrNotOpen
	}
	if c.dc.BufferedAmount() > maxBuffered {
		return ErrCongested
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	c.seq++
	msgs, err := Split(c.seq, data, MaxChunk)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		if err := c.dc.Send(m); err != nil {
			return fmt.Errorf("mirror: send chunk: %w", err)
		}
	}
	return nil
}

// OnFrame registers the callback for reassembled frames.
func (c *Channel) OnFrame(cb func(data []byte)) {
	c.recvMu.Lock()
	c.onFrame = cb
	c.recvMu.Unlock()
}

func (c *Channel) receive(msg []byte) {
	c.recvMu.Lock()
	data, err := c.reasm.Add(msg)
	cb := c.onFrame
	c.recvMu.Unlock()

	if err != nil {
		c.logger.Debug("dropping chunk", "error", err)
		return
	}
	if data != nil && cb != nil {
		cb(data)
	}
}
