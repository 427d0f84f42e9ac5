package server_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/denzyldick/mediasafe/internal/relay"
	"github.com/denzyldick/mediasafe/internal/server"
	"github.com/denzyldick/mediasafe/internal/signaling"
)

const roomID = "92561c15bec526286041ebfc7ac6c9a4dd9332a6ae02ffa5d576c82b0e6b595e"

func newRelay(t *testing.T, opts server.Options) (*httptest.Server, *relay.Registry) {
	t.Helper()
	registry := relay.NewRegistry(nil)
	ts := httptest.NewServer(server.NewRouter(registry, opts))
	t.Cleanup(ts.Close)
	return ts, registry
}

func dial(t *testing.T, ts *httptest.Server, room string) *websocket.Conn {
	t.Helper()
	wsURL := signaling.RoomURL("ws"+strings.TrimPrefix(ts.URL, "http"), room)
	c, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func send(t *testing.T, c *websocket.Conn, m signaling.Message) {
	t.Helper()
	if err := c.WriteMessage(websocket.TextMessage, signaling.MustEncode(m)); err != nil {
		t.Fatalf("write %T: %v", m, err)
	}
}

func recv(t *testing.T, c *websocket.Conn) signaling.Message {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := c.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	msg, err := signaling.Decode(data)
	if err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return msg
}

func waitParticipants(t *testing.T, registry *relay.Registry, room string, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(registry.Participants(room)) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("room never reached %d participants, has %v", want, registry.Participants(room))
}

func joinPair(t *testing.T, ts *httptest.Server, registry *relay.Registry) (a, b *websocket.Conn) {
	t.Helper()
	a = dial(t, ts, roomID)
	send(t, a, signaling.Join{DeviceID: "device-a"})
	waitParticipants(t, registry, roomID, 1)

	b = dial(t, ts, roomID)
	send(t, b, signaling.Join{DeviceID: "device-b"})
	waitParticipants(t, registry, roomID, 2)
	return a, b
}

func TestHealth(t *testing.T) {
	ts, _ := newRelay(t, server.Options{})

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "healthy") {
		t.Fatalf("body=%q", body)
	}
}

func TestRelay_OfferAnswerCandidates(t *testing.T) {
	ts, registry := newRelay(t, server.Options{})
	a, b := joinPair(t, ts, registry)

	send(t, a, signaling.Offer{Payload: "offer-sdp", Target: signaling.PeerTarget})
	if got := recv(t, b); got != (signaling.Offer{Payload: "offer-sdp", Target: signaling.PeerTarget}) {
		t.Fatalf("b got %#v", got)
	}

	send(t, b, signaling.Answer{Payload: "answer-sdp", Target: signaling.PeerTarget})
	if got := recv(t, a); got != (signaling.Answer{Payload: "answer-sdp", Target: signaling.PeerTarget}) {
		t.Fatalf("a got %#v", got)
	}

	send(t, a, signaling.IceCandidate{Payload: "cand-a1", Target: "device-b"})
	send(t, a, signaling.IceCandidate{Payload: "cand-a2", Target: "device-b"})
	send(t, b, signaling.IceCandidate{Payload: "cand-b1", Target: signaling.PeerTarget})

	for _, want := range []string{"cand-a1", "cand-a2"} {
		got, ok := recv(t, b).(signaling.IceCandidate)
		if !ok || got.Payload != want {
			t.Fatalf("b got %#v, want candidate %s", got, want)
		}
	}
	if got, ok := recv(t, a).(signaling.IceCandidate); !ok || got.Payload != "cand-b1" {
		t.Fatalf("a got %#v", got)
	}
}

func TestRelay_ThirdDeviceGetsRoomFull(t *testing.T) {
	ts, registry := newRelay(t, server.Options{})
	a, b := joinPair(t, ts, registry)

	c := dial(t, ts, roomID)
	send(t, c, signaling.Join{DeviceID: "device-c"})

	if got := recv(t, c); got != (signaling.Error{Message: signaling.ErrTextRoomFull}) {
		t.Fatalf("c got %#v, want room full", got)
	}

	_ = c.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := c.ReadMessage(); err == nil {
		t.Fatalf("expected the relay to close the rejected socket")
	}

	got := registry.Participants(roomID)
	if len(got) != 2 || got[0] != "device-a" || got[1] != "device-b" {
		t.Fatalf("participants=%v", got)
	}

	// Existing members still talk to each other and heard nothing of c.
	send(t, a, signaling.Offer{Payload: "still-here", Target: signaling.PeerTarget})
	if got, ok := recv(t, b).(signaling.Offer); !ok || got.Payload != "still-here" {
		t.Fatalf("b got %#v", got)
	}
}

func TestRelay_PeerPlaceholderDeviceIDRejected(t *testing.T) {
	ts, registry := newRelay(t, server.Options{})

	a := dial(t, ts, roomID)
	send(t, a, signaling.Join{DeviceID: signaling.PeerTarget})
	if got := recv(t, a); got != (signaling.Error{Message: signaling.ErrTextReservedID}) {
		t.Fatalf("a got %#v, want reserved id error", got)
	}

	_ = a.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := a.ReadMessage(); err == nil {
		t.Fatalf("expected the relay to close the rejected socket")
	}
	if n := registry.RoomCount(); n != 0 {
		t.Fatalf("rooms=%d, want 0", n)
	}
}

func TestRelay_DisconnectNotifiesAndDeletesRoom(t *testing.T) {
	ts, registry := newRelay(t, server.Options{})
	a, b := joinPair(t, ts, registry)

	_ = a.Close()

	if got := recv(t, b); got != (signaling.PeerDisconnected{DeviceID: "device-a"}) {
		t.Fatalf("b got %#v", got)
	}
	waitParticipants(t, registry, roomID, 1)

	// Exactly one notification: the next frame b sees is one it provoked.
	c := dial(t, ts, roomID)
	send(t, c, signaling.Join{DeviceID: "device-c"})
	waitParticipants(t, registry, roomID, 2)
	send(t, c, signaling.Offer{Payload: "from-c", Target: signaling.PeerTarget})
	if got, ok := recv(t, b).(signaling.Offer); !ok || got.Payload != "from-c" {
		t.Fatalf("b got %#v, want offer from c", got)
	}

	_ = b.Close()
	_ = c.Close()

	deadline := time.Now().Add(5 * time.Second)
	for registry.RoomCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("room not deleted, %d rooms left", registry.RoomCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRelay_UnjoinedDisconnectLeavesNoTrace(t *testing.T) {
	ts, registry := newRelay(t, server.Options{})

	c := dial(t, ts, roomID)
	send(t, c, signaling.Offer{Payload: "too-early", Target: signaling.PeerTarget})
	_ = c.Close()

	time.Sleep(50 * time.Millisecond)
	if registry.RoomCount() != 0 {
		t.Fatalf("unjoined socket created a room")
	}
}

func TestRelay_MalformedAndMisaddressedFramesAreDropped(t *testing.T) {
	ts, registry := newRelay(t, server.Options{})
	a, b := joinPair(t, ts, registry)

	if err := a.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := a.WriteMessage(websocket.TextMessage, []byte(`{"type":"teleport"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	send(t, a, signaling.IceCandidate{Payload: "lost", Target: "device-z"})
	send(t, a, signaling.PeerDisconnected{DeviceID: "device-b"})
	send(t, a, signaling.IceCandidate{Payload: "kept", Target: signaling.PeerTarget})

	if got, ok := recv(t, b).(signaling.IceCandidate); !ok || got.Payload != "kept" {
		t.Fatalf("b got %#v, want only the well-addressed candidate", got)
	}
	if got := registry.Participants(roomID); len(got) != 2 {
		t.Fatalf("participants=%v", got)
	}
}

func TestRelay_SecondJoinOnSameSocket(t *testing.T) {
	ts, registry := newRelay(t, server.Options{})
	a, b := joinPair(t, ts, registry)

	send(t, a, signaling.Join{DeviceID: "device-a2"})
	if got := recv(t, a); got != (signaling.Error{Message: signaling.ErrTextAlreadyJoined}) {
		t.Fatalf("a got %#v", got)
	}

	send(t, a, signaling.Answer{Payload: "ok", Target: signaling.PeerTarget})
	if got, ok := recv(t, b).(signaling.Answer); !ok || got.Payload != "ok" {
		t.Fatalf("b got %#v", got)
	}
}

func TestRelay_RateLimitDropsExcessFrames(t *testing.T) {
	ts, registry := newRelay(t, server.Options{
		Relay: relay.Options{RateLimit: 0.5, RateBurst: 3},
	})

	a := dial(t, ts, roomID)
	send(t, a, signaling.Join{DeviceID: "device-a"})
	waitParticipants(t, registry, roomID, 1)
	b := dial(t, ts, roomID)
	send(t, b, signaling.Join{DeviceID: "device-b"})
	waitParticipants(t, registry, roomID, 2)

	// a has spent one token on Join; two more pass, the rest are dropped.
	for i := 0; i < 5; i++ {
		send(t, a, signaling.IceCandidate{Payload: string(rune('0' + i)), Target: signaling.PeerTarget})
	}
	for _, want := range []string{"0", "1"} {
		if got, ok := recv(t, b).(signaling.IceCandidate); !ok || got.Payload != want {
			t.Fatalf("b got %#v, want %s", got, want)
		}
	}

	send(t, b, signaling.Offer{Payload: "after-limit", Target: signaling.PeerTarget})
	if got, ok := recv(t, a).(signaling.Offer); !ok || got.Payload != "after-limit" {
		t.Fatalf("a got %#v", got)
	}

	_ = b.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	if _, data, err := b.ReadMessage(); err == nil {
		t.Fatalf("rate-limited frame was delivered: %s", data)
	}
}

func TestServeWs_RejectsForeignOrigin(t *testing.T) {
	ts, _ := newRelay(t, server.Options{AllowedOrigins: []string{"https://vault.example"}})
	wsURL := signaling.RoomURL("ws"+strings.TrimPrefix(ts.URL, "http"), roomID)

	header := http.Header{"Origin": []string{"https://evil.example"}}
	if _, _, err := websocket.DefaultDialer.Dial(wsURL, header); err == nil {
		t.Fatalf("expected foreign origin to be rejected")
	}

	header = http.Header{"Origin": []string{"https://vault.example"}}
	c, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("allowed origin rejected: %v", err)
	}
	_ = c.Close()
}
