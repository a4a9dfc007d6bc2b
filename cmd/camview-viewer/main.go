package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/junsooki/camview/internal/config"
	"github.com/junsooki/camview/internal/decoder"
	"github.com/junsooki/camview/internal/display"
	"github.com/junsooki/camview/internal/frame"
	"github.com/junsooki/camview/internal/log"
	"github.com/junsooki/camview/internal/peer"
	"github.com/junsooki/camview/internal/signaling"
	"github.com/junsooki/camview/internal/transport"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// run returns the process exit code: 0 on a clean close, 1 when the session
// could not be joined or failed, 2 for bad arguments.
func run(args []string, stderr io.Writer) int {
	cfg, err := config.ParseViewer(args)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		fmt.Fprintln(stderr, "usage: camview-viewer -signaling <url> -session <id>")
		return 2
	}
	log.Init(cfg.LogLevel)
	logger := log.Component("main")

	viewerID := "viewer-" + uuid.NewString()
	session := cfg.Mirror.SessionID
	logger.Info("camview viewer starting", "id", viewerID, "signaling", cfg.Mirror.SignalingURL, "session", session)

	frames := transport.NewSlot(cfg.Policy())
	onFrame := jpegFeeder(frames)

	var (
		mu     sync.Mutex
		viewer *peer.Viewer
		sig    *signaling.Client
	)
	sig = signaling.NewClient(cfg.Mirror.SignalingURL, viewerID, signaling.ClientTypeViewer, signaling.Handler{
		OnRegistered: func() {
			logger.Info("registered with signaling server")
			v, err := peer.NewViewer(sig, session, cfg.Mirror.ICEServers, onFrame)
			if err != nil {
				frames.CloseWithError(fmt.Errorf("create viewer peer: %w", err))
				return
			}
			mu.Lock()
			viewer = v
			mu.Unlock()
			if err := v.Connect(); err != nil {
				frames.CloseWithError(fmt.Errorf("viewer connect: %w", err))
			}
		},
		OnAnswer: func(from string, payload json.RawMessage) {
			mu.Lock()
			defer mu.Unlock()
			if viewer == nil {
				return
			}
			if err := viewer.HandleAnswer(payload); err != nil {
				logger.Warn("handle answer", "error", err)
			}
		},
		OnICECandidate: func(from string, payload json.RawMessage) {
			mu.Lock()
			defer mu.Unlock()
			if viewer == nil {
				return
			}
			if err := viewer.HandleICECandidate(payload); err != nil {
				logger.Warn("handle ICE candidate", "error", err)
			}
		},
		OnPeerDisconnected: func(id string) {
			if id == session {
				logger.Info("camera left the session")
				frames.Close()
			}
		},
		OnError: func(msg string) {
			logger.Warn("signaling error", "message", msg)
		},
	})

	if err := sig.Connect(); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer sig.Close()

	// Ebitengine RunGame must be on the main goroutine.
	opts := display.Options{
		Width:     cfg.Window.Width,
		Height:    cfg.Window.Height,
		Title:     cfg.Window.Title,
		TPS:       cfg.Window.TPS,
		Letterbox: cfg.Window.Letterbox,
	}
	runErr := display.NewGame(frames, opts).Run()

	mu.Lock()
	if viewer != nil {
		viewer.Close()
	}
	mu.Unlock()

	if runErr != nil {
		fmt.Fprintln(stderr, runErr)
		return 1
	}
	return 0
}

// jpegFeeder decodes received JPEGs and offers them to the presentation
// loop. Frames that fail to decode are dropped.
func jpegFeeder(out *transport.Slot) func([]byte) {
	logger := log.Component("viewer")
	var seq atomic.Uint64
	return func(data []byte) {
		pix, w, h, err := decoder.DecodeJPEG(data)
		if err != nil {
			logger.Debug("dropping undecodable frame", "error", err)
			return
		}
		out.Send(frame.Buffer{
			Pix:       pix,
			Width:     w,
			Height:    h,
			Payload:   data,
			Seq:       seq.Add(1),
			Timestamp: time.Now(),
		})
	}
}
