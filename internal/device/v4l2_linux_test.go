//go:build linux

package device

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/blackjack/webcam"
	"golang.org/x/sys/unix"
)

func TestVideoIndex(t *testing.T) {
	tests := []struct {
		name string
		idx  int
		ok   bool
	}{
		{"video0", 0, true},
		{"video12", 12, true},
		{"video", 0, false},
		{"videoX", 0, false},
		{"media0", 0, false},
	}
	for _, tt := range tests {
		idx, ok := videoIndex(tt.name)
		if idx != tt.idx || ok != tt.ok {
			t.Errorf("videoIndex(%q) = %d, %v; want %d, %v", tt.name, idx, ok, tt.idx, tt.ok)
		}
	}
}

func TestFourccRoundTrip(t *testing.T) {
	for _, enc := range []Encoding{EncodingMJPEG, EncodingYUYV, EncodingRGB24} {
		pf, err := encodingToFourcc(enc)
		if err != nil {
			t.Fatalf("encodingToFourcc(%s): %v", enc, err)
		}
		if got := fourccToEncoding(pf); got != enc {
			t.Errorf("round trip %s -> %#x -> %s", enc, uint32(pf), got)
		}
	}
	if _, err := encodingToFourcc("H26"); !errors.Is(err, ErrFormatUnsupported) {
		t.Errorf("short fourcc error = %v, want ErrFormatUnsupported", err)
	}
}

func TestFramerates(t *testing.T) {
	intervals := []webcam.FrameRate{
		{MinNumerator: 1, MaxNumerator: 1, MinDenominator: 30, MaxDenominator: 30},
		{MinNumerator: 1, MaxNumerator: 1, MinDenominator: 60, MaxDenominator: 60},
		{MinNumerator: 1001, MaxNumerator: 1001, MinDenominator: 30000, MaxDenominator: 30000},
		{MinNumerator: 0, MaxNumerator: 0},
	}
	got := framerates(intervals)
	want := []int{30, 60}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("framerates = %v, want %v", got, want)
	}
}

func TestFrameSizeResolutions(t *testing.T) {
	discrete := webcam.FrameSize{MinWidth: 640, MaxWidth: 640, MinHeight: 480, MaxHeight: 480}
	if got := frameSizeResolutions(discrete); !reflect.DeepEqual(got, []Resolution{{640, 480}}) {
		t.Errorf("discrete = %v", got)
	}

	stepwise := webcam.FrameSize{
		MinWidth: 160, MaxWidth: 1920, StepWidth: 16,
		MinHeight: 120, MaxHeight: 1080, StepHeight: 8,
	}
	want := []Resolution{{160, 120}, {1920, 1080}}
	if got := frameSizeResolutions(stepwise); !reflect.DeepEqual(got, want) {
		t.Errorf("stepwise = %v, want %v", got, want)
	}
}

func TestV4L2BackendMissingDir(t *testing.T) {
	b := &V4L2Backend{devDir: t.TempDir() + "/missing"}
	if _, err := b.Devices(); !errors.Is(err, ErrEnumeration) {
		t.Errorf("Devices() error = %v, want ErrEnumeration", err)
	}
}

func TestV4L2BackendEmptyDir(t *testing.T) {
	b := &V4L2Backend{devDir: t.TempDir()}
	infos, err := b.Devices()
	if err != nil {
		t.Fatalf("Devices(): %v", err)
	}
	if infos == nil || len(infos) != 0 {
		t.Errorf("Devices() = %#v, want empty non-nil slice", infos)
	}
	if _, err := b.Open(0); !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("Open(0) error = %v, want ErrDeviceUnavailable", err)
	}
}

func TestListedNode(t *testing.T) {
	tests := []struct {
		name     string
		devName  string
		openErr  error
		wantOK   bool
		wantName string
	}{
		{"accessible", "HD Webcam", nil, true, "HD Webcam"},
		{"unnamed", "", nil, true, "video2"},
		{"eacces", "", unix.EACCES, true, "video2"},
		{"eperm wrapped", "", fmt.Errorf("open: %w", unix.EPERM), true, "video2"},
		{"metadata node", "", errors.New("Not a video capture device"), false, ""},
		{"no driver", "", unix.ENXIO, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, ok := listedNode(2, "/dev/video2", tt.devName, tt.openErr)
			if ok != tt.wantOK {
				t.Fatalf("listedNode() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			want := Info{Index: 2, Name: tt.wantName, Path: "/dev/video2"}
			if info != want {
				t.Errorf("listedNode() = %+v, want %+v", info, want)
			}
		})
	}
}
