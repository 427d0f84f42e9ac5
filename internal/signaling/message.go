package signaling

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind is the value of the "type" tag on the wire.
type Kind string

// Message kinds.
const (
	KindJoin             Kind = "join"
	KindOffer            Kind = "offer"
	KindAnswer           Kind = "answer"
	KindIceCandidate     Kind = "ice_candidate"
	KindPeerDisconnected Kind = "peer_disconnected"
	KindError            Kind = "error"
)

// PeerTarget addresses "the other participant". Rooms hold two devices at
// most, so clients never learn the remote device id and use this instead.
const PeerTarget = "peer"

// Error texts sent by the relay.
const (
	ErrTextRoomFull      = "Room is full"
	ErrTextAlreadyJoined = "Already joined"
	ErrTextDuplicateID   = "Device ID already in room"
	ErrTextReservedID    = "Device ID is reserved"
)

// Message is one of Join, Offer, Answer, IceCandidate, PeerDisconnected or
// Error. The set is closed: only this package can add variants.
type Message interface {
	Kind() Kind
	sealed()
}

// Join registers the sending socket under DeviceID.
type Join struct {
	DeviceID string
}

// Offer carries a session description offer. Payload is opaque to the relay.
type Offer struct {
	Payload string
	Target  string
}

// Answer carries a session description answer.
type Answer struct {
	Payload string
	Target  string
}

// IceCandidate carries one trickled ICE candidate.
type IceCandidate struct {
	Payload string
	Target  string
}

// PeerDisconnected tells the remaining participant who left.
type PeerDisconnected struct {
	DeviceID string
}

// Error is a relay-side rejection: room full or protocol violation.
type Error struct {
	Message string
}

func (Join) Kind() Kind             { return KindJoin }
func (Offer) Kind() Kind            { return KindOffer }
func (Answer) Kind() Kind           { return KindAnswer }
func (IceCandidate) Kind() Kind     { return KindIceCandidate }
func (PeerDisconnected) Kind() Kind { return KindPeerDisconnected }
func (Error) Kind() Kind            { return KindError }

func (Join) sealed()             {}
func (Offer) sealed()            {}
func (Answer) sealed()           {}
func (IceCandidate) sealed()     {}
func (PeerDisconnected) sealed() {}
func (Error) sealed()            {}

// Routed is implemented by the messages the relay forwards between peers.
type Routed interface {
	Message
	RouteTarget() string
}

func (m Offer) RouteTarget() string        { return m.Target }
func (m Answer) RouteTarget() string       { return m.Target }
func (m IceCandidate) RouteTarget() string { return m.Target }

var (
	ErrMalformed   = errors.New("signaling: malformed message")
	ErrUnknownKind = errors.New("signaling: unknown message type")
	ErrMissing     = errors.New("signaling: missing field")
)

// DecodeError describes why a frame could not be turned into a Message.
type DecodeError struct {
	Kind    Kind
	Field   string
	Err     error
	Details string
}

func (e *DecodeError) Error() string {
	what := "message"
	if e.Kind != "" {
		what = string(e.Kind)
	}

	switch {
	case e.Field != "":
		return fmt.Sprintf("decode %s: %v: %s", what, e.Err, e.Field)
	case e.Details != "":
		return fmt.Sprintf("decode %s: %v (%s)", what, e.Err, e.Details)
	default:
		return fmt.Sprintf("decode %s: %v", what, e.Err)
	}
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// envelope is the JSON shape of every frame. Pointer fields let Decode tell
// an absent field from an empty one.
type envelope struct {
	Type     Kind    `json:"type"`
	DeviceID *string `json:"device_id,omitempty"`
	Payload  *string `json:"payload,omitempty"`
	Target   *string `json:"target,omitempty"`
	Message  *string `json:"message,omitempty"`
}

// Encode renders m as a JSON text frame.
func Encode(m Message) ([]byte, error) {
	env := envelope{Type: m.Kind()}

	switch v := m.(type) {
	case Join:
		env.DeviceID = &v.DeviceID
	case Offer:
		env.Payload, env.Target = &v.Payload, &v.Target
	case Answer:
		env.Payload, env.Target = &v.Payload, &v.Target
	case IceCandidate:
		env.Payload, env.Target = &v.Payload, &v.Target
	case PeerDisconnected:
		env.DeviceID = &v.DeviceID
	case Error:
		env.Message = &v.Message
	default:
		return nil, fmt.Errorf("signaling: cannot encode %T", m)
	}

	return json.Marshal(env)
}

// MustEncode is Encode for messages built in code, which always encode.
func MustEncode(m Message) []byte {
	b, err := Encode(m)
	if err != nil {
		panic(err)
	}
	return b
}

// Decode parses a JSON text frame into its Message variant.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &DecodeError{Err: ErrMalformed, Details: err.Error()}
	}

	switch env.Type {
	case KindJoin:
		if env.DeviceID == nil || *env.DeviceID == "" {
			return nil, &DecodeError{Kind: env.Type, Field: "device_id", Err: ErrMissing}
		}
		return Join{DeviceID: *env.DeviceID}, nil

	case KindOffer, KindAnswer, KindIceCandidate:
		if env.Payload == nil {
			return nil, &DecodeError{Kind: env.Type, Field: "payload", Err: ErrMissing}
		}
		if env.Target == nil {
			return nil, &DecodeError{Kind: env.Type, Field: "target", Err: ErrMissing}
		}
		switch env.Type {
		case KindOffer:
			return Offer{Payload: *env.Payload, Target: *env.Target}, nil
		case KindAnswer:
			return Answer{Payload: *env.Payload, Target: *env.Target}, nil
		default:
			return IceCandidate{Payload: *env.Payload, Target: *env.Target}, nil
		}

	case KindPeerDisconnected:
		if env.DeviceID == nil {
			return nil, &DecodeError{Kind: env.Type, Field: "device_id", Err: ErrMissing}
		}
		return PeerDisconnected{DeviceID: *env.DeviceID}, nil

	case KindError:
		if env.Message == nil {
			return nil, &DecodeError{Kind: env.Type, Field: "message", Err: ErrMissing}
		}
		return Error{Message: *env.Message}, nil

	case "":
		return nil, &DecodeError{Err: ErrMissing, Field: "type"}

	default:
		return nil, &DecodeError{Kind: env.Type, Err: ErrUnknownKind}
	}
}
