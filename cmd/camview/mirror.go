package main

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/junsooki/camview/internal/config"
	"github.com/junsooki/camview/internal/log"
	"github.com/junsooki/camview/internal/mirror"
	"github.com/junsooki/camview/internal/peer"
	"github.com/junsooki/camview/internal/signaling"
	"github.com/junsooki/camview/internal/transport"
)

type mirrorTap interface {
	SetMirror(*transport.Slot)
}

type mirrorStarter func(ctx context.Context, cfg *config.Config, src *transport.Slot) (stop func(), err error)

// attachMirror starts the mirror and only then taps the capturer, so a
// capture never feeds a slot nobody drains.
func attachMirror(ctx context.Context, cfg *config.Config, tap mirrorTap, start mirrorStarter) (stop func(), err error) {
	frames := transport.NewSlot(transport.DropOldest)
	stop, err = start(ctx, cfg, frames)
	if err != nil {
		frames.CloseWithError(err)
		return nil, err
	}
	tap.SetMirror(frames)
	return stop, nil
}

// startMirror registers this camera with the signaling server and forwards
// frames from src to whichever viewer connects last.
func startMirror(ctx context.Context, cfg *config.Config, src *transport.Slot) (stop func(), err error) {
	logger := log.Component("mirror").With("session", cfg.Mirror.SessionID)
	fw := mirror.NewForwarder(src)

	var (
		mu  sync.Mutex
		pub *peer.Publisher
		sig *signaling.Client
	)
	detach := func() {
		fw.Attach(nil)
		if pub != nil {
			pub.Close()
			pub = nil
		}
	}

	sig = signaling.NewClient(cfg.Mirror.SignalingURL, cfg.Mirror.SessionID, signaling.ClientTypeCamera, signaling.Handler{
		OnRegistered: func() {
			logger.Info("registered with signaling server")
		},
		OnOffer: func(from string, payload json.RawMessage) {
			mu.Lock()
			defer mu.Unlock()
			detach()

			p, err := peer.NewPublisher(sig, from, cfg.Mirror.ICEServers)
			if err != nil {
				logger.Error("create publisher", "viewer", from, "error", err)
				return
			}
			if err := p.HandleOffer(payload); err != nil {
				logger.Error("handle offer", "viewer", from, "error", err)
				p.Close()
				return
			}
			pub = p
			fw.Attach(p.Channel())
			logger.Info("viewer connected", "viewer", from)
		},
		OnICECandidate: func(from string, payload json.RawMessage) {
			mu.Lock()
			defer mu.Unlock()
			if pub == nil || pub.PeerID() != from {
				return
			}
			if err := pub.HandleICECandidate(payload); err != nil {
				logger.Warn("handle ICE candidate", "error", err)
			}
		},
		OnPeerDisconnected: func(id string) {
			mu.Lock()
			defer mu.Unlock()
			if pub != nil && pub.PeerID() == id {
				detach()
				logger.Info("viewer left", "viewer", id)
			}
		},
		OnError: func(msg string) {
			logger.Warn("signaling error", "message", msg)
		},
	})

	if err := sig.Connect(); err != nil {
		return nil, err
	}

	go func() {
		if err := fw.Run(ctx); err != nil {
			logger.Warn("forwarder stopped", "error", err)
		}
		st := fw.Stats()
		logger.Info("mirror stopped", "forwarded", st.Forwarded, "skipped", st.Skipped, "failed", st.Failed)
	}()

	return func() {
		sig.Close()
		mu.Lock()
		detach()
		mu.Unlock()
	}, nil
}
