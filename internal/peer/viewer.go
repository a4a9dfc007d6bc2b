package peer

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pion/webrtc/v4"

	"github.com/junsooki/camview/internal/log"
	"github.com/junsooki/camview/internal/mirror"
)

// Viewer is the receiving side: it offers to a camera session and accepts
// the frames channel the camera opens.
type Viewer struct {
	pc        *webrtc.PeerConnection
	sig       Signaler
	sessionID string
	logger    *slog.Logger

	onFrame func(jpeg []byte)
}

// NewViewer creates a Viewer for the camera registered as sessionID.
// onFrame receives every reassembled JPEG on a pion goroutine.
func NewViewer(sig Signaler, sessionID string, iceServers []string, onFrame func(jpeg []byte)) (*Viewer, error) {
	logger := log.Component("viewer").With("session", sessionID)
	pc, err := NewPeerConnection(iceServers, logger)
	if err != nil {
		return nil, err
	}

	v := &Viewer{
		pc:        pc,
		sig:       sig,
		sessionID: sessionID,
		logger:    logger,
		onFrame:   onFrame,
	}

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != FramesLabel {
			logger.Debug("ignoring data channel", "label", dc.Label())
			return
		}
		dc.OnOpen(func() {
			logger.Info("frames channel open")
		})
		ch := mirror.NewChannel(dc)
		ch.OnFrame(v.onFrame)
	})

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		data, err := json.Marshal(c.ToJSON())
		if err != nil {
			logger.Warn("marshal ICE candidate", "error", err)
			return
		}
		_ = sig.SendICECandidate(sessionID, data)
	})
	return v, nil
}

// Connect creates an offer and sends it to the camera. The offer needs a
// datachannel section for the camera's channel to be negotiated, so a
// placeholder channel is opened and never used.
func (v *Viewer) Connect() error {
	if _, err := v.pc.CreateDataChannel("negotiate", nil); err != nil {
		return fmt.Errorf("create negotiation channel: %w", err)
	}

	offer, err := v.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	if err := v.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}

	offerJSON, err := json.Marshal(offer)
	if err != nil {
		return err
	}
	return v.sig.SendOffer(v.sessionID, offerJSON)
}

// HandleAnswer processes an incoming SDP answer.
func (v *Viewer) HandleAnswer(payload json.RawMessage) error {
	var answer webrtc.SessionDescription
	if err := json.Unmarshal(payload, &answer); err != nil {
		return fmt.Errorf("decode answer: %w", err)
	}
	return v.pc.SetRemoteDescription(answer)
}

// HandleICECandidate adds a remote ICE candidate.
func (v *Viewer) HandleICECandidate(payload json.RawMessage) error {
	return addCandidate(v.pc, payload)
}

// Close shuts down the peer connection.
func (v *Viewer) Close() {
	if v.pc != nil {
		v.pc.Close()
	}
}
