package device

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// MockCamera describes a device served by MockBackend.
type MockCamera struct {
	Name      string
	Encodings []Encoding
	Sizes     map[Encoding][]ResolutionRates

	// ProbeErr fails Resolutions for the given encodings.
	ProbeErr map[Encoding]error
	// ListErr fails Encodings.
	ListErr error
	// StartErr fails StartStreaming.
	StartErr error
}

// MockBackend is an in-memory Backend for tests and dry runs.
type MockBackend struct {
	mu      sync.Mutex
	cameras map[int]*MockCamera
	opened  []*MockHandle

	// ListErr fails Devices.
	ListErr error
}

// NewMockBackend serves the given cameras by index.
func NewMockBackend(cameras map[int]*MockCamera) *MockBackend {
	if cameras == nil {
		cameras = map[int]*MockCamera{}
	}
	return &MockBackend{cameras: cameras}
}

func (b *MockBackend) Devices() ([]Info, error) {
	if b.ListErr != nil {
		return nil, b.ListErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	out := []Info{}
	for idx, c := range b.cameras {
		out = append(out, Info{Index: idx, Name: c.Name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (b *MockBackend) Open(index int) (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.cameras[index]
	if !ok {
		return nil, fmt.Errorf("%w: no mock camera at index %d", ErrDeviceUnavailable, index)
	}
	h := &MockHandle{
		cam:    c,
		frames: make(chan []byte, 64),
		done:   make(chan struct{}),
	}
	b.opened = append(b.opened, h)
	return h, nil
}

// Handles returns every handle opened so far, oldest first.
func (b *MockBackend) Handles() []*MockHandle {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*MockHandle(nil), b.opened...)
}

// MockHandle is a Handle whose frames are pushed by the test.
type MockHandle struct {
	cam *MockCamera

	mu        sync.Mutex
	format    CaptureFormat
	streaming bool
	closed    bool

	frames chan []byte
	done   chan struct{}
}

// Push queues one payload for ReadFrame.
func (h *MockHandle) Push(payload []byte) {
	select {
	case h.frames <- payload:
	case <-h.done:
	}
}

// Closed reports whether Close has been called.
func (h *MockHandle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *MockHandle) Name() string { return h.cam.Name }

func (h *MockHandle) Encodings() ([]Encoding, error) {
	if h.cam.ListErr != nil {
		return nil, h.cam.ListErr
	}
	return h.cam.Encodings, nil
}

func (h *MockHandle) Resolutions(enc Encoding) ([]ResolutionRates, error) {
	if err := h.cam.ProbeErr[enc]; err != nil {
		return nil, err
	}
	return h.cam.Sizes[enc], nil
}

// SetFormat accepts exact matches; anything else snaps to the first mode,
// the way V4L2 drivers adjust unsupported requests.
func (h *MockHandle) SetFormat(f CaptureFormat) (CaptureFormat, error) {
	modes, err := ListSupportedModes(h)
	if err != nil {
		return CaptureFormat{}, err
	}
	if len(modes) == 0 {
		return CaptureFormat{}, errors.New("mock camera has no modes")
	}
	got := modes[0]
	for _, m := range modes {
		if m.Encoding == f.Encoding && m.Resolution == f.Resolution &&
			(f.FrameRate == 0 || m.FrameRate == f.FrameRate) {
			got = m
			break
		}
	}
	h.mu.Lock()
	h.format = got
	h.mu.Unlock()
	return got, nil
}

func (h *MockHandle) StartStreaming() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cam.StartErr != nil {
		return h.cam.StartErr
	}
	if h.closed {
		return errors.New("mock handle closed")
	}
	if h.streaming {
		return errors.New("already streaming")
	}
	h.streaming = true
	return nil
}

func (h *MockHandle) StopStreaming() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.streaming = false
	return nil
}

func (h *MockHandle) ReadFrame() ([]byte, error) {
	select {
	case data := <-h.frames:
		return data, nil
	case <-h.done:
		return nil, errors.New("mock handle closed")
	}
}

func (h *MockHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	h.streaming = false
	close(h.done)
	return nil
}

// RGBMockCamera offers RGB3 at 4x2 (30 and 60 fps) and 8x4 (15 fps).
func RGBMockCamera(name string) *MockCamera {
	return &MockCamera{
		Name:      name,
		Encodings: []Encoding{EncodingRGB24},
		Sizes: map[Encoding][]ResolutionRates{
			EncodingRGB24: {
				{Resolution: Resolution{Width: 4, Height: 2}, FrameRates: []int{30, 60}},
				{Resolution: Resolution{Width: 8, Height: 4}, FrameRates: []int{15}},
			},
		},
	}
}
