package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/junsooki/camview/internal/capture"
	"github.com/junsooki/camview/internal/config"
	"github.com/junsooki/camview/internal/device"
	"github.com/junsooki/camview/internal/display"
	"github.com/junsooki/camview/internal/log"
	"github.com/junsooki/camview/internal/permissions"
	"github.com/junsooki/camview/internal/transport"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, fl, err := config.ParseCamview(args)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		return 2
	}
	log.Init(cfg.LogLevel)

	if errs := cfg.Validate(); len(errs) > 0 {
		fmt.Fprintln(stderr, "invalid configuration:")
		for _, e := range errs {
			fmt.Fprintf(stderr, "  %s\n", e)
		}
		return 2
	}

	backend := device.SystemBackend()
	switch {
	case fl.List:
		return listDevices(backend, stdout, stderr)
	case fl.Modes:
		return listModes(backend, cfg.Device.Index, stdout, stderr)
	}

	if err := pipeline(backend, &cfg, stdout); err != nil {
		fmt.Fprintln(stderr, explain(err))
		return 1
	}
	return 0
}

func listDevices(b device.Backend, stdout, stderr io.Writer) int {
	infos, err := device.ListDevices(b)
	if err != nil {
		fmt.Fprintln(stderr, explain(err))
		return 1
	}
	if len(infos) == 0 {
		fmt.Fprintln(stderr, noCameraHelp)
		return 1
	}
	for _, info := range infos {
		fmt.Fprintf(stdout, "  [%d] %-14s %s\n", info.Index, info.Path, info.Name)
	}
	return 0
}

func listModes(b device.Backend, index int, stdout, stderr io.Writer) int {
	dev := device.New(b, index)
	modes, err := dev.SupportedModes()
	if err != nil {
		fmt.Fprintln(stderr, explain(err))
		return 1
	}
	if len(modes) == 0 {
		fmt.Fprintf(stderr, "camera %d reports no capture modes\n", index)
		return 1
	}
	for _, m := range modes {
		fmt.Fprintf(stdout, "  %s\n", m)
	}
	return 0
}

// pipeline runs capture on its own thread and presentation on this one
// until the window closes, the capture stops or the process is signalled.
func pipeline(b device.Backend, cfg *config.Config, stdout io.Writer) error {
	logger := log.Component("main")

	info, err := preflight(b, cfg.Device.Index)
	if err != nil {
		return err
	}

	capCfg, err := cfg.Capture()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	frames := transport.NewSlot(cfg.Policy())
	capturer := capture.New(b, capCfg, frames)

	if cfg.Mirror.SignalingURL != "" {
		stop, err := attachMirror(ctx, cfg, capturer, startMirror)
		if err != nil {
			logger.Warn("mirror disabled", "error", err)
		} else {
			defer stop()
			fmt.Fprintf(stdout, "mirroring as session %s\n", cfg.Mirror.SessionID)
		}
	}

	capErr := make(chan error, 1)
	go func() { capErr <- capturer.Run(ctx) }()

	select {
	case f := <-capturer.Opened():
		logger.Info("capturing", "device", info.Path, "name", info.Name, "format", f.String())
	case err := <-capErr:
		return err
	}

	runErr := display.NewGame(frames, displayOptions(cfg)).Run()
	cancel()
	if err := <-capErr; err != nil && runErr == nil {
		runErr = err
	}

	st := frames.Stats()
	logger.Info("pipeline stopped", "sent", st.Sent, "delivered", st.Delivered, "dropped", st.Dropped)
	return runErr
}

// preflight finds the selected camera and checks it can be opened, so the
// common failures are reported before any window appears.
func preflight(b device.Backend, index int) (device.Info, error) {
	infos, err := device.ListDevices(b)
	if err != nil {
		return device.Info{}, err
	}
	if len(infos) == 0 {
		return device.Info{}, errNoCamera
	}
	info, ok := findDevice(infos, index)
	if !ok {
		return device.Info{}, &missingCameraError{Index: index, Available: infos}
	}
	if info.Path != "" {
		if err := permissions.HasCameraAccess(info.Path); err != nil {
			return device.Info{}, err
		}
	}
	return info, nil
}

func findDevice(infos []device.Info, index int) (device.Info, bool) {
	for _, info := range infos {
		if info.Index == index {
			return info, true
		}
	}
	return device.Info{}, false
}

func displayOptions(cfg *config.Config) display.Options {
	return display.Options{
		Width:     cfg.Window.Width,
		Height:    cfg.Window.Height,
		Title:     cfg.Window.Title,
		TPS:       cfg.Window.TPS,
		Letterbox: cfg.Window.Letterbox,
	}
}
