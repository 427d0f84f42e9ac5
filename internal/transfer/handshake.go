package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/denzyldick/mediasafe/internal/negotiation"
	"github.com/pion/webrtc/v4"
	"github.com/vmihailenco/msgpack/v5"
)

var (
	ErrChannelNotOpen    = errors.New("channel not open")
	ErrChannelClosed     = errors.New("channel closed")
	ErrUnexpectedMessage = errors.New("unexpected message")
)

// HelloInterval paces the Initiator's hello until it is acknowledged; the
// Responder may attach its message handler after the first hello arrived.
var HelloInterval = 250 * time.Millisecond

// AckLinger bounds how long the Responder waits for hello_done after acking.
var AckLinger = 5 * time.Second

// drainTimeout bounds the wait for the Initiator's last frame to leave the
// send buffer.
const drainTimeout = time.Second

// Handshake exchanges device info over an open channel and returns the
// peer's info.
//
// The Initiator sends hello until it gets hello_ack, then answers with
// hello_done. The Responder acks every hello and returns once hello_done
// arrives, the Initiator closes the channel, or AckLinger passes. Either side
// may close the peer connection as soon as Handshake returns.
func Handshake(ctx context.Context, dc *webrtc.DataChannel, role negotiation.Role, local DeviceInfo) (DeviceInfo, error) {
	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return DeviceInfo{}, ErrChannelNotOpen
	}

	frames := make(chan []byte, 8)
	closed := make(chan struct{})
	var closeOnce sync.Once
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		select {
		case frames <- msg.Data:
		default:
			slog.Debug("handshake frame dropped", "bytes", len(msg.Data))
		}
	})
	dc.OnClose(func() { closeOnce.Do(func() { close(closed) }) })
	defer dc.OnMessage(func(webrtc.DataChannelMessage) {})

	if role == negotiation.Initiator {
		return initiate(ctx, dc, local, frames, closed)
	}
	return respond(ctx, dc, local, frames, closed)
}

func initiate(ctx context.Context, dc *webrtc.DataChannel, local DeviceInfo, frames <-chan []byte, closed <-chan struct{}) (DeviceInfo, error) {
	if err := send(dc, MessageTypeHello, local); err != nil {
		return DeviceInfo{}, err
	}
	ticker := time.NewTicker(HelloInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return DeviceInfo{}, fmt.Errorf("handshake: %w", ctx.Err())

		case <-closed:
			return DeviceInfo{}, fmt.Errorf("handshake: %w", ErrChannelClosed)

		case <-ticker.C:
			if err := send(dc, MessageTypeHello, local); err != nil {
				return DeviceInfo{}, err
			}

		case data := <-frames:
			peer, err := decodeInfo(data, MessageTypeHelloAck)
			if err != nil {
				return DeviceInfo{}, err
			}
			if err := send(dc, MessageTypeHelloDone, local); err != nil {
				return DeviceInfo{}, err
			}
			drain(ctx, dc)
			slog.Debug("handshake complete", "peer", peer.Name, "version", peer.Version)
			return peer, nil
		}
	}
}

func respond(ctx context.Context, dc *webrtc.DataChannel, local DeviceInfo, frames <-chan []byte, closed <-chan struct{}) (DeviceInfo, error) {
	var (
		peer   DeviceInfo
		acked  bool
		linger <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			if acked {
				return peer, nil
			}
			return DeviceInfo{}, fmt.Errorf("handshake: %w", ctx.Err())

		case <-closed:
			// The Initiator only closes after reading hello_ack.
			if acked {
				return peer, nil
			}
			return DeviceInfo{}, fmt.Errorf("handshake: %w", ErrChannelClosed)

		case <-linger:
			slog.Debug("no hello_done from initiator", "peer", peer.Name)
			return peer, nil

		case data := <-frames:
			msg, err := ParseMessage(data)
			if err != nil {
				return DeviceInfo{}, fmt.Errorf("handshake: parse message: %w", err)
			}

			switch {
			case msg.Type == MessageTypeHello:
				if !acked {
					if err := msg.DecodePayload(&peer); err != nil {
						return DeviceInfo{}, fmt.Errorf("handshake: decode %s: %w", msg.Type, err)
					}
					acked = true
					timer := time.NewTimer(AckLinger)
					defer timer.Stop()
					linger = timer.C
				}
				// Repeated hellos mean earlier acks are still in flight.
				if err := send(dc, MessageTypeHelloAck, local); err != nil {
					return DeviceInfo{}, err
				}

			case msg.Type == MessageTypeHelloDone && acked:
				slog.Debug("handshake complete", "peer", peer.Name, "version", peer.Version)
				return peer, nil

			default:
				return DeviceInfo{}, fmt.Errorf("handshake: %w: %q", ErrUnexpectedMessage, msg.Type)
			}
		}
	}
}

func decodeInfo(data []byte, want string) (DeviceInfo, error) {
	msg, err := ParseMessage(data)
	if err != nil {
		return DeviceInfo{}, fmt.Errorf("handshake: parse message: %w", err)
	}
	if msg.Type != want {
		return DeviceInfo{}, fmt.Errorf("handshake: %w: %q", ErrUnexpectedMessage, msg.Type)
	}
	var info DeviceInfo
	if err := msg.DecodePayload(&info); err != nil {
		return DeviceInfo{}, fmt.Errorf("handshake: decode %s: %w", msg.Type, err)
	}
	return info, nil
}

// drain waits, up to drainTimeout, for queued frames to leave the channel.
func drain(ctx context.Context, dc *webrtc.DataChannel) {
	deadline := time.Now().Add(drainTimeout)
	for dc.BufferedAmount() > 0 && time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func send(dc *webrtc.DataChannel, msgType string, info DeviceInfo) error {
	msg, err := NewMessage(msgType, info)
	if err != nil {
		return fmt.Errorf("create %s: %w", msgType, err)
	}
	data, err := msgpack.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msgType, err)
	}
	if err := dc.Send(data); err != nil {
		return fmt.Errorf("send %s: %w", msgType, err)
	}
	return nil
}
