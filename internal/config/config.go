// Package config loads camview settings from defaults, an optional YAML
// file and command-line flags, in that order of precedence.
package config

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/junsooki/camview/internal/capture"
	"github.com/junsooki/camview/internal/device"
	"github.com/junsooki/camview/internal/transport"
)

// EncodingAuto lets the device pick its own default format.
const EncodingAuto = "auto"

// Config holds all runtime configuration.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Window    WindowConfig    `yaml:"window"`
	Transport TransportConfig `yaml:"transport"`
	Retry     RetryConfig     `yaml:"retry"`
	Mirror    MirrorConfig    `yaml:"mirror"`
	LogLevel  string          `yaml:"log_level"` // debug, info, warn, error
}

// DeviceConfig selects the camera and the format requested from it.
type DeviceConfig struct {
	Index    int    `yaml:"index"`
	Width    int    `yaml:"width"`
	Height   int    `yaml:"height"`
	Encoding string `yaml:"encoding"` // mjpeg, yuyv, rgb24, a fourcc, or auto
	FPS      int    `yaml:"fps"`      // 0 accepts the driver's rate
}

// WindowConfig sizes the presentation window.
type WindowConfig struct {
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	Title     string `yaml:"title"`
	TPS       int    `yaml:"tps"`
	Letterbox bool   `yaml:"letterbox"`
}

// TransportConfig picks the frame slot's backpressure policy.
type TransportConfig struct {
	Policy string `yaml:"policy"` // drop-oldest or drop-newest
}

// RetryConfig bounds camera open retries.
type RetryConfig struct {
	MaxRetries    int           `yaml:"max_retries"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
	MaxRetryDelay time.Duration `yaml:"max_retry_delay"`
}

// MirrorConfig enables forwarding frames to a remote viewer.
type MirrorConfig struct {
	SignalingURL string   `yaml:"signaling_url"` // empty disables the mirror
	SessionID    string   `yaml:"session_id"`
	ICEServers   []string `yaml:"ice_servers"`
}

// Default returns the built-in settings: MJPEG 1280x720 at 60 fps from
// camera 0 into a 1280x720 window ticking at 165 Hz.
func Default() Config {
	r := capture.DefaultRetryConfig()
	return Config{
		Device: DeviceConfig{
			Index:    0,
			Width:    1280,
			Height:   720,
			Encoding: "mjpeg",
			FPS:      60,
		},
		Window: WindowConfig{
			Width:  1280,
			Height: 720,
			Title:  "camview",
			TPS:    165,
		},
		Transport: TransportConfig{Policy: "drop-oldest"},
		Retry: RetryConfig{
			MaxRetries:    r.MaxRetries,
			RetryDelay:    r.RetryDelay,
			MaxRetryDelay: r.MaxRetryDelay,
		},
		Mirror: MirrorConfig{
			ICEServers: []string{"stun:stun.l.google.com:19302"},
		},
		LogLevel: "info",
	}
}

// Load reads a YAML file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Flags are the switches that choose what camview does, as opposed to how.
type Flags struct {
	ConfigPath string
	List       bool
	Modes      bool
}

// ParseCamview parses flags for the camview binary.
func ParseCamview(args []string) (Config, Flags, error) {
	fs := flag.NewFlagSet("camview", flag.ContinueOnError)
	var fl Flags
	fs.StringVar(&fl.ConfigPath, "config", "", "YAML config file")
	fs.BoolVar(&fl.List, "list", false, "List capture devices and exit")
	fs.BoolVar(&fl.Modes, "modes", false, "List supported modes of the selected device and exit")

	d := Default()
	index := fs.Int("device", d.Device.Index, "Camera index (/dev/videoN)")
	width := fs.Int("width", d.Device.Width, "Capture width")
	height := fs.Int("height", d.Device.Height, "Capture height")
	format := fs.String("format", d.Device.Encoding, "Capture encoding: mjpeg, yuyv, rgb24, a fourcc, or auto")
	fps := fs.Int("fps", d.Device.FPS, "Capture frame rate (0 = driver default)")
	policy := fs.String("policy", d.Transport.Policy, "Frame slot policy: drop-oldest or drop-newest")
	letterbox := fs.Bool("letterbox", d.Window.Letterbox, "Keep the frame's aspect ratio")
	mirror := fs.String("mirror", "", "Signaling server WebSocket URL; enables the remote mirror")
	session := fs.String("session", "", "Mirror session id (generated if empty)")
	level := fs.String("log-level", d.LogLevel, "Log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		return Config{}, fl, err
	}

	cfg, err := base(fl.ConfigPath)
	if err != nil {
		return cfg, fl, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "device":
			cfg.Device.Index = *index
		case "width":
			cfg.Device.Width = *width
		case "height":
			cfg.Device.Height = *height
		case "format":
			cfg.Device.Encoding = *format
		case "fps":
			cfg.Device.FPS = *fps
		case "policy":
			cfg.Transport.Policy = *policy
		case "letterbox":
			cfg.Window.Letterbox = *letterbox
		case "mirror":
			cfg.Mirror.SignalingURL = *mirror
		case "session":
			cfg.Mirror.SessionID = *session
		case "log-level":
			cfg.LogLevel = *level
		}
	})

	if cfg.Mirror.SignalingURL != "" && cfg.Mirror.SessionID == "" {
		cfg.Mirror.SessionID = "camview-" + uuid.NewString()
	}
	return cfg, fl, nil
}

// ParseViewer parses flags for the camview-viewer binary. The session id is
// required since it names the camera to watch.
func ParseViewer(args []string) (Config, error) {
	fs := flag.NewFlagSet("camview-viewer", flag.ContinueOnError)
	d := Default()
	path := fs.String("config", "", "YAML config file")
	signaling := fs.String("signaling", "ws://localhost:8080", "Signaling server WebSocket URL")
	session := fs.String("session", "", "Session id printed by camview (required)")
	letterbox := fs.Bool("letterbox", true, "Keep the frame's aspect ratio")
	level := fs.String("log-level", d.LogLevel, "Log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg, err := base(*path)
	if err != nil {
		return cfg, err
	}
	cfg.Window.Title = "camview viewer"
	cfg.Window.Letterbox = *letterbox
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "signaling":
			cfg.Mirror.SignalingURL = *signaling
		case "session":
			cfg.Mirror.SessionID = *session
		case "log-level":
			cfg.LogLevel = *level
		}
	})
	if cfg.Mirror.SignalingURL == "" {
		cfg.Mirror.SignalingURL = *signaling
	}
	if cfg.Mirror.SessionID == "" {
		return cfg, fmt.Errorf("-session is required")
	}
	return cfg, nil
}

func base(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errs []string

	if c.Device.Index < 0 {
		errs = append(errs, "device.index must not be negative")
	}
	if !c.autoFormat() {
		if c.Device.Width <= 0 || c.Device.Height <= 0 {
			errs = append(errs, "device.width and device.height must be positive")
		}
		if _, err := device.ParseEncoding(c.Device.Encoding); err != nil {
			errs = append(errs, fmt.Sprintf("device.encoding: %v", err))
		}
	}
	if c.Device.FPS < 0 || c.Device.FPS > 480 {
		errs = append(errs, "device.fps must be between 0 and 480")
	}

	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		errs = append(errs, "window.width and window.height must be positive")
	}
	if c.Window.TPS < 1 || c.Window.TPS > 1000 {
		errs = append(errs, "window.tps must be between 1 and 1000")
	}

	if _, err := transport.ParsePolicy(c.Transport.Policy); err != nil {
		errs = append(errs, "transport.policy must be drop-oldest or drop-newest")
	}

	if c.Retry.MaxRetries < 0 {
		errs = append(errs, "retry.max_retries must not be negative")
	}
	if c.Retry.RetryDelay <= 0 {
		errs = append(errs, "retry.retry_delay must be positive")
	}
	if c.Retry.MaxRetryDelay < c.Retry.RetryDelay {
		errs = append(errs, "retry.max_retry_delay must not be below retry.retry_delay")
	}

	if c.Mirror.SignalingURL != "" {
		u, err := url.Parse(c.Mirror.SignalingURL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
			errs = append(errs, "mirror.signaling_url must be a ws:// or wss:// URL")
		}
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, "log_level must be debug, info, warn, or error")
	}
	return errs
}

func (c *Config) autoFormat() bool {
	return strings.EqualFold(c.Device.Encoding, EncodingAuto)
}

// CaptureFormat is the format to request, or nil for the device default.
func (c *Config) CaptureFormat() (*device.CaptureFormat, error) {
	if c.autoFormat() {
		return nil, nil
	}
	enc, err := device.ParseEncoding(c.Device.Encoding)
	if err != nil {
		return nil, err
	}
	f := device.NewFormat(c.Device.Width, c.Device.Height, enc, c.Device.FPS)
	return &f, nil
}

// Capture returns the capture goroutine settings.
func (c *Config) Capture() (capture.Config, error) {
	f, err := c.CaptureFormat()
	if err != nil {
		return capture.Config{}, err
	}
	return capture.Config{
		Index:  c.Device.Index,
		Format: f,
		Retry: capture.RetryConfig{
			MaxRetries:    c.Retry.MaxRetries,
			RetryDelay:    c.Retry.RetryDelay,
			MaxRetryDelay: c.Retry.MaxRetryDelay,
		},
	}, nil
}

// Policy returns the frame slot policy, DropOldest if unparseable.
func (c *Config) Policy() transport.Policy {
	p, _ := transport.ParsePolicy(c.Transport.Policy)
	return p
}
