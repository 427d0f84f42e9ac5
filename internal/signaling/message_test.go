package signaling

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestEncode_WireShape(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want map[string]string
	}{
		{
			name: "join",
			msg:  Join{DeviceID: "dev-a"},
			want: map[string]string{"type": "join", "device_id": "dev-a"},
		},
		{
			name: "offer",
			msg:  Offer{Payload: `{"type":"offer","sdp":"v=0"}`, Target: PeerTarget},
			want: map[string]string{"type": "offer", "payload": `{"type":"offer","sdp":"v=0"}`, "target": "peer"},
		},
		{
			name: "ice candidate",
			msg:  IceCandidate{Payload: "{}", Target: "dev-b"},
			want: map[string]string{"type": "ice_candidate", "payload": "{}", "target": "dev-b"},
		},
		{
			name: "peer disconnected",
			msg:  PeerDisconnected{DeviceID: "dev-a"},
			want: map[string]string{"type": "peer_disconnected", "device_id": "dev-a"},
		},
		{
			name: "error",
			msg:  Error{Message: ErrTextRoomFull},
			want: map[string]string{"type": "error", "message": "Room is full"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Encode(tt.msg)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}

			var got map[string]string
			if err := json.Unmarshal(b, &got); err != nil {
				t.Fatalf("unmarshal %s: %v", b, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("fields=%v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Fatalf("%s=%q, want %q (frame %s)", k, got[k], v, b)
				}
			}
		})
	}
}

func TestDecode_Variants(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"answer","payload":"sdp","target":"peer"}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	answer, ok := msg.(Answer)
	if !ok {
		t.Fatalf("decoded %T, want Answer", msg)
	}
	if answer.Payload != "sdp" || answer.RouteTarget() != PeerTarget {
		t.Fatalf("unexpected answer: %#v", answer)
	}

	msg, err = Decode([]byte(`{"type":"join","device_id":"abc","extra":1}`))
	if err != nil {
		t.Fatalf("Decode join with unknown field: %v", err)
	}
	if join, ok := msg.(Join); !ok || join.DeviceID != "abc" {
		t.Fatalf("unexpected join: %#v", msg)
	}

	msg, err = Decode([]byte(`{"type":"offer","payload":"","target":"peer"}`))
	if err != nil {
		t.Fatalf("Decode offer with empty payload: %v", err)
	}
	if _, ok := msg.(Routed); !ok {
		t.Fatalf("offer must be routed")
	}
}

func TestDecode_TypedErrors(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  error
	}{
		{name: "not json", frame: `not json`, want: ErrMalformed},
		{name: "wrong field type", frame: `{"type":"join","device_id":7}`, want: ErrMalformed},
		{name: "no type", frame: `{"device_id":"a"}`, want: ErrMissing},
		{name: "unknown type", frame: `{"type":"shout"}`, want: ErrUnknownKind},
		{name: "join without device", frame: `{"type":"join"}`, want: ErrMissing},
		{name: "offer without target", frame: `{"type":"offer","payload":"x"}`, want: ErrMissing},
		{name: "candidate without payload", frame: `{"type":"ice_candidate","target":"peer"}`, want: ErrMissing},
		{name: "error without message", frame: `{"type":"error"}`, want: ErrMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.frame))
			if !errors.Is(err, tt.want) {
				t.Fatalf("err=%v, want %v", err, tt.want)
			}
			var decodeErr *DecodeError
			if !errors.As(err, &decodeErr) {
				t.Fatalf("err %T is not a *DecodeError", err)
			}
		})
	}
}

func TestRoomURL(t *testing.T) {
	if got := RoomURL("ws://localhost:9489/", "abc"); got != "ws://localhost:9489/ws/abc" {
		t.Fatalf("RoomURL=%q", got)
	}
}
