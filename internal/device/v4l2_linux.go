//go:build linux

package device

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/blackjack/webcam"
	"golang.org/x/sys/unix"
)

// v4l2Major is the character-device major number of video4linux nodes.
const v4l2Major = 81

// waitTimeoutSec bounds each WaitForFrame call so Close is noticed.
const waitTimeoutSec = 1

// V4L2Backend discovers and opens /dev/videoN capture nodes.
type V4L2Backend struct {
	devDir string
}

// SystemBackend returns the capture backend for this platform.
func SystemBackend() Backend {
	return &V4L2Backend{devDir: "/dev"}
}

// NodePath returns the device node path for index.
func (b *V4L2Backend) NodePath(index int) string {
	return filepath.Join(b.devDir, "video"+strconv.Itoa(index))
}

// Devices lists nodes that accept video capture, sorted by index.
func (b *V4L2Backend) Devices() ([]Info, error) {
	entries, err := os.ReadDir(b.devDir)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrEnumeration, b.devDir, err)
	}

	infos := []Info{}
	for _, e := range entries {
		idx, ok := videoIndex(e.Name())
		if !ok {
			continue
		}
		path := filepath.Join(b.devDir, e.Name())
		if !isVideoNode(path) {
			continue
		}
		name, err := nodeName(path)
		if info, ok := listedNode(idx, path, name, err); ok {
			infos = append(infos, info)
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Index < infos[j].Index })
	return infos, nil
}

// Open claims /dev/video<index>.
func (b *V4L2Backend) Open(index int) (Handle, error) {
	path := b.NodePath(index)
	if !isVideoNode(path) {
		return nil, fmt.Errorf("%w: %s is not a video device", ErrDeviceUnavailable, path)
	}
	cam, err := webcam.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDeviceUnavailable, path, err)
	}
	name, err := cam.GetName()
	if err != nil || name == "" {
		name = filepath.Base(path)
	}
	return &v4l2Handle{cam: cam, name: name}, nil
}

func nodeName(path string) (string, error) {
	cam, err := webcam.Open(path)
	if err != nil {
		return "", err
	}
	defer cam.Close()
	name, err := cam.GetName()
	if err != nil {
		return "", nil
	}
	return name, nil
}

// listedNode decides whether a probed node is reported. Nodes the user may not
// open stay listed so the caller can explain the permission problem; nodes that
// fail for any other reason (metadata nodes, output-only devices) are dropped.
func listedNode(idx int, path, name string, openErr error) (Info, bool) {
	if openErr != nil && !errors.Is(openErr, os.ErrPermission) {
		return Info{}, false
	}
	if name == "" {
		name = filepath.Base(path)
	}
	return Info{Index: idx, Name: name, Path: path}, true
}

func videoIndex(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, "video")
	if !ok || rest == "" {
		return 0, false
	}
	idx, err := strconv.Atoi(rest)
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}

func isVideoNode(path string) bool {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return false
	}
	if st.Mode&unix.S_IFMT != unix.S_IFCHR {
		return false
	}
	return unix.Major(uint64(st.Rdev)) == v4l2Major
}

type v4l2Handle struct {
	cam  *webcam.Webcam
	name string

	ioMu      sync.Mutex
	streaming bool
	closed    atomic.Bool
}

func (h *v4l2Handle) Name() string { return h.name }

func (h *v4l2Handle) Encodings() ([]Encoding, error) {
	h.ioMu.Lock()
	defer h.ioMu.Unlock()
	if h.closed.Load() {
		return nil, errHandleClosed
	}

	formats := h.cam.GetSupportedFormats()
	codes := make([]webcam.PixelFormat, 0, len(formats))
	for pf := range formats {
		codes = append(codes, pf)
	}
	// The library hands formats back as a map; fourcc order keeps output stable.
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })

	encs := make([]Encoding, 0, len(codes))
	for _, pf := range codes {
		encs = append(encs, fourccToEncoding(pf))
	}
	return encs, nil
}

func (h *v4l2Handle) Resolutions(enc Encoding) ([]ResolutionRates, error) {
	h.ioMu.Lock()
	defer h.ioMu.Unlock()
	if h.closed.Load() {
		return nil, errHandleClosed
	}

	pf, err := encodingToFourcc(enc)
	if err != nil {
		return nil, err
	}
	sizes := h.cam.GetSupportedFrameSizes(pf)
	if len(sizes) == 0 {
		return nil, fmt.Errorf("no frame sizes reported for %s", enc)
	}

	var out []ResolutionRates
	for _, s := range sizes {
		for _, res := range frameSizeResolutions(s) {
			rates := framerates(h.cam.GetSupportedFramerates(pf, uint32(res.Width), uint32(res.Height)))
			if len(rates) == 0 {
				continue
			}
			out = append(out, ResolutionRates{Resolution: res, FrameRates: rates})
		}
	}
	return out, nil
}

// frameSizeResolutions expands a FrameSize. Stepwise ranges contribute only
// their smallest and largest size.
func frameSizeResolutions(s webcam.FrameSize) []Resolution {
	hi := Resolution{Width: int(s.MaxWidth), Height: int(s.MaxHeight)}
	if s.StepWidth == 0 && s.StepHeight == 0 {
		return []Resolution{hi}
	}
	lo := Resolution{Width: int(s.MinWidth), Height: int(s.MinHeight)}
	if lo == hi {
		return []Resolution{hi}
	}
	return []Resolution{lo, hi}
}

// framerates converts V4L2 frame intervals (seconds per frame) into whole
// frames per second, keeping driver order and dropping duplicates.
func framerates(intervals []webcam.FrameRate) []int {
	var out []int
	seen := map[int]bool{}
	add := func(num, den uint32) {
		if num == 0 {
			return
		}
		fps := int(math.Round(float64(den) / float64(num)))
		if fps <= 0 || seen[fps] {
			return
		}
		seen[fps] = true
		out = append(out, fps)
	}
	for _, r := range intervals {
		add(r.MinNumerator, r.MinDenominator)
		add(r.MaxNumerator, r.MaxDenominator)
	}
	return out
}

func (h *v4l2Handle) SetFormat(f CaptureFormat) (CaptureFormat, error) {
	h.ioMu.Lock()
	defer h.ioMu.Unlock()
	if h.closed.Load() {
		return CaptureFormat{}, errHandleClosed
	}

	pf, err := encodingToFourcc(f.Encoding)
	if err != nil {
		return CaptureFormat{}, err
	}
	gotPF, w, hgt, err := h.cam.SetImageFormat(pf, uint32(f.Resolution.Width), uint32(f.Resolution.Height))
	if err != nil {
		if errors.Is(err, unix.EBUSY) {
			return CaptureFormat{}, fmt.Errorf("%w: %s is busy", ErrDeviceUnavailable, h.name)
		}
		return CaptureFormat{}, err
	}

	got := CaptureFormat{
		Resolution: Resolution{Width: int(w), Height: int(hgt)},
		Encoding:   fourccToEncoding(gotPF),
	}
	if f.FrameRate > 0 {
		if err := h.cam.SetFramerate(float32(f.FrameRate)); err != nil {
			return got, fmt.Errorf("set frame rate %d: %w", f.FrameRate, err)
		}
	}
	if fps, err := h.cam.GetFramerate(); err == nil {
		got.FrameRate = int(math.Round(float64(fps)))
	}
	return got, nil
}

func (h *v4l2Handle) StartStreaming() error {
	h.ioMu.Lock()
	defer h.ioMu.Unlock()
	if h.closed.Load() {
		return errHandleClosed
	}
	if h.streaming {
		return errors.New("already streaming")
	}
	if err := h.cam.StartStreaming(); err != nil {
		if errors.Is(err, unix.EBUSY) {
			return fmt.Errorf("%w: %s is busy", ErrDeviceUnavailable, h.name)
		}
		return err
	}
	h.streaming = true
	return nil
}

func (h *v4l2Handle) StopStreaming() error {
	h.ioMu.Lock()
	defer h.ioMu.Unlock()
	return h.stopLocked()
}

func (h *v4l2Handle) stopLocked() error {
	if !h.streaming {
		return nil
	}
	h.streaming = false
	return h.cam.StopStreaming()
}

func (h *v4l2Handle) ReadFrame() ([]byte, error) {
	for {
		data, again, err := h.readOnce()
		if again {
			continue
		}
		return data, err
	}
}

func (h *v4l2Handle) readOnce() (data []byte, again bool, err error) {
	h.ioMu.Lock()
	defer h.ioMu.Unlock()

	if h.closed.Load() {
		return nil, false, errHandleClosed
	}
	if !h.streaming {
		return nil, false, errors.New("not streaming")
	}

	err = h.cam.WaitForFrame(waitTimeoutSec)
	var timeout *webcam.Timeout
	switch {
	case errors.As(err, &timeout):
		return nil, true, nil
	case err != nil:
		return nil, false, err
	}

	raw, err := h.cam.ReadFrame()
	if err != nil {
		return nil, false, err
	}
	if len(raw) == 0 {
		return nil, true, nil
	}
	data = make([]byte, len(raw))
	copy(data, raw)
	return data, false, nil
}

func (h *v4l2Handle) Close() error {
	if h.closed.Swap(true) {
		return nil
	}
	h.ioMu.Lock()
	defer h.ioMu.Unlock()
	stopErr := h.stopLocked()
	closeErr := h.cam.Close()
	return errors.Join(stopErr, closeErr)
}

var errHandleClosed = errors.New("device handle closed")

func fourccToEncoding(pf webcam.PixelFormat) Encoding {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(pf))
	return Encoding(strings.TrimRight(string(b[:]), "\x00 "))
}

func encodingToFourcc(enc Encoding) (webcam.PixelFormat, error) {
	if len(enc) != 4 {
		return 0, fmt.Errorf("%w: encoding %q is not a fourcc", ErrFormatUnsupported, string(enc))
	}
	return webcam.PixelFormat(binary.LittleEndian.Uint32([]byte(enc))), nil
}
