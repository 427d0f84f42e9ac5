package transfer

import "github.com/vmihailenco/msgpack/v5"

const (
	MessageTypeHello     = "hello"
	MessageTypeHelloAck  = "hello_ack"
	MessageTypeHelloDone = "hello_done"
)

// Message is the envelope of every frame on the transfer channel.
type Message struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

// DeviceInfo identifies one end of the channel to the other.
type DeviceInfo struct {
	Name    string `msgpack:"name"`
	Version string `msgpack:"version"`
}

// DecodePayload decodes the message payload into the provided struct
func (m Message) DecodePayload(v any) error {
	return msgpack.Unmarshal(m.Payload, v)
}

// NewMessage creates a new Message with the given type and payload
func NewMessage(t string, payload any) (Message, error) {
	b, err := msgpack.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: t, Payload: b}, nil
}

func ParseMessage(data []byte) (Message, error) {
	var msg Message
	if err := msgpack.Unmarshal(data, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
