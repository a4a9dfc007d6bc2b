package device

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func rgbFrame(w, h int, fill byte) []byte {
	return bytes.Repeat([]byte{fill}, w*h*3)
}

func TestOpenDefaultFormat(t *testing.T) {
	d := New(NewMockBackend(map[int]*MockCamera{0: RGBMockCamera("cam0")}), 0)

	if err := d.Open(nil); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()

	if d.State() != StateOpened {
		t.Errorf("state = %s, want opened", d.State())
	}
	if d.Name() != "cam0" {
		t.Errorf("name = %q, want cam0", d.Name())
	}
	f, ok := d.Format()
	if !ok {
		t.Fatal("Format reported not ok while opened")
	}
	if want := NewFormat(8, 4, EncodingRGB24, 15); f != want {
		t.Errorf("format = %v, want %v", f, want)
	}
}

func TestOpenUnsupportedFormatLeavesClosed(t *testing.T) {
	b := NewMockBackend(map[int]*MockCamera{0: RGBMockCamera("cam0")})
	d := New(b, 0)

	want := NewFormat(1920, 1080, EncodingMJPEG, 60)
	err := d.Open(&want)
	if !errors.Is(err, ErrFormatUnsupported) {
		t.Fatalf("Open error = %v, want ErrFormatUnsupported", err)
	}

	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FormatError, got %T", err)
	}
	if fe.Requested != want {
		t.Errorf("Requested = %v, want %v", fe.Requested, want)
	}
	if len(fe.Available) != 3 {
		t.Errorf("Available = %v, want 3 modes", fe.Available)
	}

	if d.State() != StateClosed {
		t.Errorf("state = %s, want closed", d.State())
	}
	if _, ok := d.Format(); ok {
		t.Error("Format reported ok on a closed device")
	}
	for _, h := range b.Handles() {
		if !h.Closed() {
			t.Error("handle left open after failed negotiation")
		}
	}
}

func TestOpenMissingIndex(t *testing.T) {
	d := New(NewMockBackend(map[int]*MockCamera{}), 3)

	if err := d.Open(nil); !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("Open error = %v, want ErrDeviceUnavailable", err)
	}
	if d.State() != StateClosed {
		t.Errorf("state = %s, want closed", d.State())
	}
}

func TestOpenTwice(t *testing.T) {
	d := New(NewMockBackend(map[int]*MockCamera{0: RGBMockCamera("cam0")}), 0)
	if err := d.Open(nil); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()

	if err := d.Open(nil); !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("second Open error = %v, want ErrDeviceUnavailable", err)
	}
}

func TestOpenStreamRequiresOpened(t *testing.T) {
	d := New(NewMockBackend(map[int]*MockCamera{0: RGBMockCamera("cam0")}), 0)

	if _, err := d.OpenStream(); !errors.Is(err, ErrStreamOpen) {
		t.Fatalf("OpenStream on closed device error = %v, want ErrStreamOpen", err)
	}

	if err := d.Open(nil); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()

	if _, err := d.OpenStream(); err != nil {
		t.Fatalf("OpenStream: %v", err)
	}
	if d.State() != StateStreaming {
		t.Errorf("state = %s, want streaming", d.State())
	}
	if _, err := d.OpenStream(); !errors.Is(err, ErrStreamOpen) {
		t.Errorf("second OpenStream error = %v, want ErrStreamOpen", err)
	}
}

func TestOpenStreamDriverRefuses(t *testing.T) {
	cam := RGBMockCamera("cam0")
	cam.StartErr = errors.New("EBUSY")
	d := New(NewMockBackend(map[int]*MockCamera{0: cam}), 0)
	if err := d.Open(nil); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()

	if _, err := d.OpenStream(); !errors.Is(err, ErrStreamOpen) {
		t.Fatalf("OpenStream error = %v, want ErrStreamOpen", err)
	}
	if d.State() != StateOpened {
		t.Errorf("state = %s, want opened", d.State())
	}
}

func TestGrabFrame(t *testing.T) {
	b := NewMockBackend(map[int]*MockCamera{0: RGBMockCamera("cam0")})
	d := New(b, 0)
	f := NewFormat(4, 2, EncodingRGB24, 30)
	if err := d.Open(&f); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()

	s, err := d.OpenStream()
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}

	h := b.Handles()[0]
	h.Push(rgbFrame(4, 2, 7))
	h.Push(rgbFrame(4, 2, 9))

	first, err := s.GrabFrame()
	if err != nil {
		t.Fatalf("GrabFrame: %v", err)
	}
	second, err := s.GrabFrame()
	if err != nil {
		t.Fatalf("GrabFrame: %v", err)
	}

	if err := first.Validate(); err != nil {
		t.Errorf("first frame invalid: %v", err)
	}
	if first.Pix[0] != 7 || second.Pix[0] != 9 {
		t.Errorf("pixels = %d, %d; want 7, 9", first.Pix[0], second.Pix[0])
	}
	if first.Seq != 1 || second.Seq != 2 {
		t.Errorf("seq = %d, %d; want 1, 2", first.Seq, second.Seq)
	}
	if first.Payload != nil {
		t.Error("uncompressed frame carries a payload")
	}
	if s.Format() != f {
		t.Errorf("stream format = %v, want %v", s.Format(), f)
	}
}

func TestGrabFrameSkipsUndecodable(t *testing.T) {
	b := NewMockBackend(map[int]*MockCamera{0: RGBMockCamera("cam0")})
	d := New(b, 0)
	f := NewFormat(4, 2, EncodingRGB24, 30)
	if err := d.Open(&f); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()
	s, err := d.OpenStream()
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}

	h := b.Handles()[0]
	h.Push([]byte{1, 2, 3})
	h.Push(rgbFrame(4, 2, 5))

	buf, err := s.GrabFrame()
	if err != nil {
		t.Fatalf("GrabFrame: %v", err)
	}
	if buf.Pix[0] != 5 {
		t.Errorf("pix[0] = %d, want 5", buf.Pix[0])
	}
}

func TestCloseUnblocksGrab(t *testing.T) {
	d := New(NewMockBackend(map[int]*MockCamera{0: RGBMockCamera("cam0")}), 0)
	if err := d.Open(nil); err != nil {
		t.Fatalf("Open: %v", err)
	}
	s, err := d.OpenStream()
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := s.GrabFrame()
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrCaptureFailure) {
			t.Errorf("GrabFrame error = %v, want ErrCaptureFailure", err)
		}
	case <-time.After(time.Second):
		t.Fatal("GrabFrame still blocked after Close")
	}

	if _, err := s.GrabFrame(); !errors.Is(err, ErrCaptureFailure) {
		t.Errorf("GrabFrame after Close error = %v, want ErrCaptureFailure", err)
	}
	if d.State() != StateClosed {
		t.Errorf("state = %s, want closed", d.State())
	}
}

func TestChangeDeviceInvalidatesStream(t *testing.T) {
	b := NewMockBackend(map[int]*MockCamera{
		0: RGBMockCamera("cam0"),
		1: RGBMockCamera("cam1"),
	})
	d := New(b, 0)
	f := NewFormat(4, 2, EncodingRGB24, 30)
	if err := d.Open(&f); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()

	old, err := d.OpenStream()
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}

	if err := d.ChangeDevice(1); err != nil {
		t.Fatalf("ChangeDevice: %v", err)
	}

	if d.State() != StateOpened {
		t.Errorf("state after ChangeDevice = %s, want opened", d.State())
	}
	if d.Index() != 1 || d.Name() != "cam1" {
		t.Errorf("bound to %d %q, want 1 cam1", d.Index(), d.Name())
	}
	if got, _ := d.Format(); got != f {
		t.Errorf("format after rebind = %v, want %v", got, f)
	}
	if !b.Handles()[0].Closed() {
		t.Error("old handle still open after ChangeDevice")
	}
	if _, err := old.GrabFrame(); !errors.Is(err, ErrCaptureFailure) {
		t.Errorf("stale stream GrabFrame error = %v, want ErrCaptureFailure", err)
	}

	s, err := d.OpenStream()
	if err != nil {
		t.Fatalf("OpenStream after rebind: %v", err)
	}
	b.Handles()[1].Push(rgbFrame(4, 2, 3))
	buf, err := s.GrabFrame()
	if err != nil {
		t.Fatalf("GrabFrame after rebind: %v", err)
	}
	if buf.Seq != 1 {
		t.Errorf("seq = %d, want 1 on a fresh stream", buf.Seq)
	}
}

func TestChangeDeviceToMissingIndex(t *testing.T) {
	d := New(NewMockBackend(map[int]*MockCamera{0: RGBMockCamera("cam0")}), 0)
	if err := d.Open(nil); err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := d.ChangeDevice(5); !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("ChangeDevice error = %v, want ErrDeviceUnavailable", err)
	}
	if d.State() != StateClosed {
		t.Errorf("state = %s, want closed", d.State())
	}
	if d.Index() != 5 {
		t.Errorf("index = %d, want 5", d.Index())
	}
}

func TestChangeDeviceWhileClosed(t *testing.T) {
	b := NewMockBackend(map[int]*MockCamera{0: RGBMockCamera("cam0"), 1: RGBMockCamera("cam1")})
	d := New(b, 0)

	if err := d.ChangeDevice(1); err != nil {
		t.Fatalf("ChangeDevice: %v", err)
	}
	if d.State() != StateClosed || d.Index() != 1 {
		t.Errorf("got %s index %d, want closed index 1", d.State(), d.Index())
	}
	if len(b.Handles()) != 0 {
		t.Error("ChangeDevice on a closed device opened a handle")
	}
}

func TestSupportedModesWhileClosed(t *testing.T) {
	b := NewMockBackend(map[int]*MockCamera{0: RGBMockCamera("cam0")})
	d := New(b, 0)

	modes, err := d.SupportedModes()
	if err != nil {
		t.Fatalf("SupportedModes: %v", err)
	}
	if len(modes) != 3 {
		t.Errorf("modes = %v, want 3", modes)
	}
	if d.State() != StateClosed {
		t.Errorf("state = %s, want closed", d.State())
	}
	if !b.Handles()[0].Closed() {
		t.Error("probe handle left open")
	}
}

func TestListDevicesEmpty(t *testing.T) {
	infos, err := ListDevices(NewMockBackend(nil))
	if err != nil {
		t.Fatalf("ListDevices: %v", err)
	}
	if infos == nil || len(infos) != 0 {
		t.Errorf("ListDevices = %#v, want empty slice", infos)
	}
}

func TestListDevicesFailure(t *testing.T) {
	b := NewMockBackend(nil)
	b.ListErr = ErrEnumeration
	if _, err := ListDevices(b); !errors.Is(err, ErrEnumeration) {
		t.Errorf("error = %v, want ErrEnumeration", err)
	}
}

func TestStateString(t *testing.T) {
	if StateStreaming.String() != "streaming" || State(9).String() != "state(9)" {
		t.Error("unexpected State.String output")
	}
}
