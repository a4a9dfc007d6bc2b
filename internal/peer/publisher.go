package peer

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/junsooki/camview/internal/log"
	"github.com/junsooki/camview/internal/mirror"
)

// Signaler is the part of the signaling client a peer talks through.
type Signaler interface {
	SendOffer(target string, payload json.RawMessage) error
	SendAnswer(target string, payload json.RawMessage) error
	SendICECandidate(target string, payload json.RawMessage) error
}

// Publisher is the camera side of one viewer connection. It answers the
// viewer's offer and owns the outgoing frames channel.
type Publisher struct {
	pc      *webrtc.PeerConnection
	sig     Signaler
	channel *mirror.Channel
	logger  *slog.Logger

	mu     sync.Mutex
	peerID string
}

// NewPublisher creates a Publisher for viewer peerID.
func NewPublisher(sig Signaler, peerID string, iceServers []string) (*Publisher, error) {
	logger := log.Component("publisher").With("viewer", peerID)
	pc, err := NewPeerConnection(iceServers, logger)
	if err != nil {
		return nil, err
	}

	dc, err := pc.CreateDataChannel(FramesLabel, framesChannelInit())
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("create frames channel: %w", err)
	}

	p := &Publisher{
		pc:      pc,
		sig:     sig,
		channel: mirror.NewChannel(dc),
		logger:  logger,
		peerID:  peerID,
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		data, err := json.Marshal(c.ToJSON())
		if err != nil {
			logger.Warn("marshal ICE candidate", "error", err)
			return
		}
		_ = sig.SendICECandidate(p.PeerID(), data)
	})
	return p, nil
}

// PeerID returns the viewer this publisher serves.
func (p *Publisher) PeerID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.peerID
}

// Channel returns the outgoing frames channel.
func (p *Publisher) Channel() *mirror.Channel {
	return p.channel
}

// HandleOffer answers the viewer's offer.
func (p *Publisher) HandleOffer(payload json.RawMessage) error {
	var offer webrtc.SessionDescription
	if err := json.Unmarshal(payload, &offer); err != nil {
		return fmt.Errorf("decode offer: %w", err)
	}
	if err := p.pc.SetRemoteDescription(offer); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}

	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}

	answerJSON, err := json.Marshal(answer)
	if err != nil {
		return err
	}
	return p.sig.SendAnswer(p.PeerID(), answerJSON)
}

// HandleICECandidate adds a remote ICE candidate.
func (p *Publisher) HandleICECandidate(payload json.RawMessage) error {
	return addCandidate(p.pc, payload)
}

// Close shuts down the peer connection.
func (p *Publisher) Close() {
	if p.pc != nil {
		p.pc.Close()
	}
}

func addCandidate(pc *webrtc.PeerConnection, payload json.RawMessage) error {
	var candidate webrtc.ICECandidateInit
	if err := json.Unmarshal(payload, &candidate); err != nil {
		return fmt.Errorf("decode ICE candidate: %w", err)
	}
	return pc.AddICECandidate(candidate)
}
