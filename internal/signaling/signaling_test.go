package signaling

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func startRelay(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(NewRelay())
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func connect(t *testing.T, url, id, typ string, h Handler) *Client {
	t.Helper()
	registered := make(chan struct{})
	prev := h.OnRegistered
	h.OnRegistered = func() {
		if prev != nil {
			prev()
		}
		close(registered)
	}
	c := NewClient(url, id, typ, h)
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect %s: %v", id, err)
	}
	t.Cleanup(c.Close)
	select {
	case <-registered:
	case <-time.After(2 * time.Second):
		t.Fatalf("%s never registered", id)
	}
	return c
}

func TestRelayForwardsOfferAndAnswer(t *testing.T) {
	url := startRelay(t)

	type got struct {
		from    string
		payload string
	}
	offers := make(chan got, 1)
	answers := make(chan got, 1)

	camera := connect(t, url, "cam-1", ClientTypeCamera, Handler{
		OnOffer: func(from string, payload json.RawMessage) {
			offers <- got{from, string(payload)}
		},
	})
	viewer := connect(t, url, "viewer-1", ClientTypeViewer, Handler{
		OnAnswer: func(from string, payload json.RawMessage) {
			answers <- got{from, string(payload)}
		},
	})

	if err := viewer.SendOffer("cam-1", json.RawMessage(`{"sdp":"offer"}`)); err != nil {
		t.Fatalf("SendOffer: %v", err)
	}

	select {
	case o := <-offers:
		if o.from != "viewer-1" || o.payload != `{"sdp":"offer"}` {
			t.Errorf("offer = %+v", o)
		}
		if err := camera.SendAnswer(o.from, json.RawMessage(`{"sdp":"answer"}`)); err != nil {
			t.Fatalf("SendAnswer: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("offer not forwarded")
	}
	select {
	case a := <-answers:
		if a.from != "cam-1" || a.payload != `{"sdp":"answer"}` {
			t.Errorf("answer = %+v", a)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("answer not forwarded")
	}
}

func TestRelayUnknownTarget(t *testing.T) {
	url := startRelay(t)
	errs := make(chan string, 1)
	c := connect(t, url, "viewer-1", ClientTypeViewer, Handler{
		OnError: func(msg string) { errs <- msg },
	})

	if err := c.SendOffer("nobody", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("SendOffer: %v", err)
	}
	select {
	case msg := <-errs:
		if !strings.Contains(msg, "nobody") {
			t.Errorf("error = %q", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no error for unknown target")
	}
}

func TestRelayAnnouncesDisconnect(t *testing.T) {
	url := startRelay(t)
	left := make(chan string, 1)
	connect(t, url, "cam-1", ClientTypeCamera, Handler{
		OnPeerDisconnected: func(id string) { left <- id },
	})
	viewer := connect(t, url, "viewer-1", ClientTypeViewer, Handler{})

	viewer.Close()
	select {
	case id := <-left:
		if id != "viewer-1" {
			t.Errorf("disconnected = %q", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect not announced")
	}
}

func TestSendBeforeConnect(t *testing.T) {
	c := NewClient("ws://127.0.0.1:1", "x", ClientTypeViewer, Handler{})
	if err := c.SendOffer("y", nil); err == nil {
		t.Error("send without a connection should fail")
	}
}
