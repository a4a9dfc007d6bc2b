// Package peer sets up the WebRTC side of the remote mirror: the camera
// publishes a "frames" datachannel and a viewer connects to it.
package peer

import (
	"log/slog"

	"github.com/pion/webrtc/v4"
)

// FramesLabel names the datachannel frames travel on.
const FramesLabel = "frames"

// DefaultICEServers is used when none are configured.
var DefaultICEServers = []string{"stun:stun.l.google.com:19302", "stun:stun1.l.google.com:19302"}

// NewPeerConnection creates a configured PeerConnection.
func NewPeerConnection(iceServers []string, logger *slog.Logger) (*webrtc.PeerConnection, error) {
	if len(iceServers) == 0 {
		iceServers = DefaultICEServers
	}
	cfg := webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: iceServers}},
	}
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		logger.Info("peer connection state", "state", state.String())
	})
	return pc, nil
}

// framesChannelInit trades reliability for latency: a lost frame is never
// resent and frames may arrive out of order.
func framesChannelInit() *webrtc.DataChannelInit {
	ordered := false
	maxRetransmits := uint16(0)
	return &webrtc.DataChannelInit{
		Ordered:        &ordered,
		MaxRetransmits: &maxRetransmits,
	}
}
