package mirror

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	headerSize = 8
	// MaxChunk keeps every datachannel message well under the SCTP
	// message size all WebRTC stacks accept.
	MaxChunk = 16 * 1024
)

// ErrBadChunk is returned for messages too short or with an impossible header.
var ErrBadChunk = errors.New("mirror: malformed chunk")

// Split cuts one frame into datachannel messages. Each message starts with
// the frame sequence number (uint32), the chunk index and the chunk count
// (uint16 each), big-endian.
func Split(seq uint32, payload []byte, maxChunk int) ([][]byte, error) {
	if maxChunk <= 0 {
		maxChunk = MaxChunk
	}
	count := (len(payload) + maxChunk - 1) / maxChunk
	if count == 0 {
		count = 1
	}
	if count > 0xffff {
		return nil, fmt.Errorf("mirror: frame of %d bytes needs %d chunks", len(payload), count)
	}

	out := make([][]byte, 0, count)
	for i := 0; i < count; i++ {
		lo := i * maxChunk
		hi := min(lo+maxChunk, len(payload))
		msg := make([]byte, headerSize+hi-lo)
		binary.BigEndian.PutUint32(msg[0:4], seq)
		binary.BigEndian.PutUint16(msg[4:6], uint16(i))
		binary.BigEndian.PutUint16(msg[6:8], uint16(count))
		copy(msg[headerSize:], payload[lo:hi])
		out = append(out, msg)
	}
	return out, nil
}

// Reassembler rebuilds frames from chunks that may arrive out of order or
// not at all. Only the newest frame is assembled; a chunk of a newer frame
// abandons the one in progress, and chunks of older frames are ignored.
type Reassembler struct {
	seq      uint32
	started  bool
	complete bool
	parts    [][]byte
	have     int

	abandoned uint64
}

// Add feeds one message and returns the frame it completes, if any.
func (r *Reassembler) Add(msg []byte) ([]byte, error) {
	if len(msg) < headerSize {
		return nil, ErrBadChunk
	}
	seq := binary.BigEndian.Uint32(msg[0:4])
	idx := int(binary.BigEndian.Uint16(msg[4:6]))
	count := int(binary.BigEndian.Uint16(msg[6:8]))
	if count == 0 || idx >= count {
		return nil, ErrBadChunk
	}

	switch {
	case !r.started || int32(seq-r.seq) > 0:
		if r.started && !r.complete {
			r.abandoned++
		}
		r.seq = seq
		r.started = true
		r.complete = false
		r.parts = make([][]byte, count)
		r.have = 0
	case seq != r.seq || r.complete:
		return nil, nil
	}
	if count != len(r.parts) {
		return nil, ErrBadChunk
	}
	if r.parts[idx] != nil {
		return nil, nil
	}

	r.parts[idx] = msg[headerSize:]
	r.have++
	if r.have < count {
		return nil, nil
	}

	size := 0
	for _, p := range r.parts {
		size += len(p)
	}
	frame := make([]byte, 0, size)
	for _, p := range r.parts {
		frame = append(frame, p...)
	}
	r.complete = true
	r.parts = nil
	return frame, nil
}

// Abandoned counts frames dropped before all their chunks arrived.
func (r *Reassembler) Abandoned() uint64 {
	return r.abandoned
}
