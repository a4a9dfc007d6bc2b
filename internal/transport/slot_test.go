package transport

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/junsooki/camview/internal/frame"
)

func buf(seq uint64) frame.Buffer {
	return frame.Buffer{Pix: []byte{byte(seq), 0, 0}, Width: 1, Height: 1, Seq: seq}
}

func TestLatestSendWins(t *testing.T) {
	for _, n := range []int{1, 2, 10, 1000} {
		s := NewSlot(DropOldest)
		for i := 1; i <= n; i++ {
			s.Send(buf(uint64(i)))
		}

		got, err := s.TryReceive()
		if err != nil {
			t.Fatalf("n=%d: TryReceive: %v", n, err)
		}
		if got == nil || got.Seq != uint64(n) {
			t.Fatalf("n=%d: got %v, want seq %d", n, got, n)
		}

		st := s.Stats()
		if st.Sent != uint64(n) || st.Dropped != uint64(n-1) || st.Delivered != 1 {
			t.Errorf("n=%d: stats = %+v", n, st)
		}
	}
}

func TestTakeOnce(t *testing.T) {
	s := NewSlot(DropOldest)
	s.Send(buf(1))

	if got, _ := s.TryReceive(); got == nil {
		t.Fatal("first TryReceive returned nothing")
	}
	got, err := s.TryReceive()
	if err != nil || got != nil {
		t.Fatalf("second TryReceive = %v, %v; want nil, nil", got, err)
	}
}

func TestEmptySlot(t *testing.T) {
	s := NewSlot(DropOldest)
	got, err := s.TryReceive()
	if got != nil || err != nil {
		t.Fatalf("TryReceive on empty slot = %v, %v", got, err)
	}
}

func TestDropNewestKeepsPending(t *testing.T) {
	s := NewSlot(DropNewest)
	if !s.Send(buf(1)) {
		t.Fatal("first Send rejected")
	}
	if s.Send(buf(2)) {
		t.Error("second Send accepted under DropNewest")
	}

	got, _ := s.TryReceive()
	if got == nil || got.Seq != 1 {
		t.Fatalf("got %v, want seq 1", got)
	}
	if !s.Send(buf(3)) {
		t.Error("Send into an emptied slot rejected")
	}
}

func TestBurstBeforePoll(t *testing.T) {
	s := NewSlot(DropOldest)

	sent := make(chan struct{})
	go func() {
		defer close(sent)
		s.Send(buf(1))
		s.Send(buf(2))
		s.Send(buf(3))
	}()
	<-sent

	got, err := s.TryReceive()
	if err != nil || got == nil || got.Seq != 3 {
		t.Fatalf("TryReceive = %v, %v; want F3", got, err)
	}
	got, err = s.TryReceive()
	if err != nil || got != nil {
		t.Fatalf("second TryReceive = %v, %v; want nothing", got, err)
	}
}

func TestClosedSlot(t *testing.T) {
	s := NewSlot(DropOldest)
	s.Send(buf(1))

	cause := errors.New("camera unplugged")
	s.CloseWithError(cause)

	for i := 0; i < 3; i++ {
		got, err := s.TryReceive()
		if got != nil {
			t.Fatalf("call %d: stale frame %v returned after close", i, got)
		}
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("call %d: error = %v, want ErrClosed", i, err)
		}
		if !errors.Is(err, cause) {
			t.Fatalf("call %d: error = %v does not carry cause", i, err)
		}
	}
	if s.Err() != cause {
		t.Errorf("Err() = %v, want %v", s.Err(), cause)
	}
	if s.Send(buf(2)) {
		t.Error("Send accepted after close")
	}
	if st := s.Stats(); st.Dropped != 1 {
		t.Errorf("dropped = %d, want 1 for the discarded pending frame", st.Dropped)
	}

	select {
	case <-s.Done():
	default:
		t.Error("Done not closed")
	}
}

func TestCloseWithoutCause(t *testing.T) {
	s := NewSlot(DropOldest)
	s.Close()
	s.CloseWithError(errors.New("ignored"))

	if _, err := s.TryReceive(); err != ErrClosed {
		t.Errorf("error = %v, want bare ErrClosed", err)
	}
	if s.Err() != nil {
		t.Errorf("Err() = %v, want nil", s.Err())
	}
}

func TestReceiveWakesOnSend(t *testing.T) {
	s := NewSlot(DropOldest)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go func() {
		time.Sleep(10 * time.Millisecond)
		s.Send(buf(42))
	}()

	got, err := s.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if got.Seq != 42 {
		t.Errorf("seq = %d, want 42", got.Seq)
	}
}

func TestReceiveWakesOnClose(t *testing.T) {
	s := NewSlot(DropOldest)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go func() {
		time.Sleep(10 * time.Millisecond)
		s.Close()
	}()

	if _, err := s.Receive(ctx); !errors.Is(err, ErrClosed) {
		t.Fatalf("Receive error = %v, want ErrClosed", err)
	}
}

func TestReceiveTimeout(t *testing.T) {
	s := NewSlot(DropOldest)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := s.Receive(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Receive error = %v, want DeadlineExceeded", err)
	}
}

func TestSendNeverBlocks(t *testing.T) {
	s := NewSlot(DropOldest)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10000; i++ {
			s.Send(buf(uint64(i)))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Send blocked without a consumer")
	}
}

func TestConcurrentProducerConsumer(t *testing.T) {
	s := NewSlot(DropOldest)
	const n = 5000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= n; i++ {
			s.Send(buf(uint64(i)))
		}
		s.Close()
	}()

	var last uint64
	for {
		got, err := s.TryReceive()
		if errors.Is(err, ErrClosed) {
			break
		}
		if err != nil {
			t.Fatalf("TryReceive: %v", err)
		}
		if got == nil {
			continue
		}
		if got.Seq <= last {
			t.Fatalf("seq %d after %d: frames must only move forward", got.Seq, last)
		}
		last = got.Seq
	}
	wg.Wait()

	st := s.Stats()
	if st.Sent != n {
		t.Errorf("sent = %d, want %d", st.Sent, n)
	}
	if st.Delivered+st.Dropped != n {
		t.Errorf("delivered %d + dropped %d != sent %d", st.Delivered, st.Dropped, n)
	}
}

func TestParsePolicy(t *testing.T) {
	tests := map[string]Policy{
		"":            DropOldest,
		"overwrite":   DropOldest,
		"drop-oldest": DropOldest,
		"drop-newest": DropNewest,
		"DROP":        DropNewest,
	}
	for in, want := range tests {
		got, err := ParsePolicy(in)
		if err != nil || got != want {
			t.Errorf("ParsePolicy(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParsePolicy("block"); err == nil {
		t.Error("ParsePolicy(block) should fail")
	}
}
