package signaling

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// echoServer sends every text frame straight back to its sender.
func echoServer(t *testing.T) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(kind, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(ts.Close)
	return RoomURL("ws"+strings.TrimPrefix(ts.URL, "http"), "room")
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestClient_SendBeforeConnect(t *testing.T) {
	c := NewClient("ws://127.0.0.1:1/ws/room")
	defer c.Close()

	if err := c.Send(Join{DeviceID: "a"}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("err=%v, want ErrNotConnected", err)
	}
}

func TestClient_CloseBeforeConnect(t *testing.T) {
	c := NewClient(echoServer(t))

	if isClosed(c.Done()) {
		t.Fatalf("Done closed before Close")
	}
	c.Close()
	c.Close()
	if !isClosed(c.Done()) {
		t.Fatalf("Done still open after Close")
	}

	if err := c.Connect(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("Connect err=%v, want ErrClosed", err)
	}
	if err := c.Send(Join{DeviceID: "a"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("Send err=%v, want ErrClosed", err)
	}
}

func TestClient_RoundTrip(t *testing.T) {
	c := NewClient(echoServer(t))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := c.Connect(ctx); err == nil {
		t.Fatalf("second Connect should fail")
	}

	want := Offer{Payload: "sdp", Target: PeerTarget}
	if err := c.Send(want); err != nil {
		t.Fatalf("Send: %v", err)
	}
	select {
	case got := <-c.Incoming():
		if got != Message(want) {
			t.Fatalf("got %#v, want %#v", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no echo")
	}

	c.Close()
	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatalf("Done not closed after Close")
	}
	if err := c.Send(want); !errors.Is(err, ErrClosed) {
		t.Fatalf("Send after Close err=%v, want ErrClosed", err)
	}
}

func TestClient_UndecodableFrameEndsConnection(t *testing.T) {
	c := NewClient(echoServer(t))
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()

	// The echo returns a join whose device id is missing.
	c.outgoing <- []byte(`{"type":"join"}`)

	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("connection survived an undecodable frame")
	}
	var decodeErr *DecodeError
	if !errors.As(c.Err(), &decodeErr) {
		t.Fatalf("Err()=%v, want *DecodeError", c.Err())
	}
}
