package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/denzyldick/mediasafe/internal/signaling"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// DefaultMaxMessageSize is enough for SDP messages with trickled candidates.
	DefaultMaxMessageSize = 64 * 1024
)

// errRejected ends the read side after an Error reply that closes the socket.
var errRejected = errors.New("relay: join rejected")

// Options tune a relay connection.
type Options struct {
	// MaxMessageSize caps inbound frames. Zero means DefaultMaxMessageSize.
	MaxMessageSize int64

	// RateLimit is the sustained number of inbound frames per second and
	// RateBurst the bucket size. RateLimit <= 0 disables limiting.
	RateLimit float64
	RateBurst int
}

// Client is one WebSocket connection to the relay. It starts Unjoined,
// becomes Joined after an accepted Join and is Closed when Run returns.
type Client struct {
	Registry *Registry
	Conn     *websocket.Conn
	RoomID   string

	queue       *outboundQueue
	participant *Participant
	limiter     *rate.Limiter
	maxSize     int64
	log         *slog.Logger
}

// NewClient wraps an upgraded connection for roomID.
func NewClient(registry *Registry, conn *websocket.Conn, roomID string, opts Options) *Client {
	c := &Client{
		Registry: registry,
		Conn:     conn,
		RoomID:   roomID,
		queue:    newOutboundQueue(),
		maxSize:  opts.MaxMessageSize,
		log:      registry.log.With("room", roomID, "remote", conn.RemoteAddr().String()),
	}
	if c.maxSize <= 0 {
		c.maxSize = DefaultMaxMessageSize
	}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = int(opts.RateLimit)
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), max(burst, 1))
	}
	return c
}

// Run serves the connection until either pump finishes; the other one is
// stopped at that point.
func (c *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return c.WritePump(ctx)
	})

	g.Go(func() error {
		err := c.ReadPump()
		if errors.Is(err, errRejected) {
			// Let the writer flush the Error reply, then it closes the socket.
			c.queue.Drain()
			return nil
		}
		cancel()
		return err
	})

	err := g.Wait()
	if err != nil && !isCloseError(err) {
		return err
	}
	return nil
}

// ReadPump reads frames and applies them to the room state. It returns when
// the socket fails or closes, or when a Join is rejected.
func (c *Client) ReadPump() error {
	defer c.leave()

	c.Conn.SetReadLimit(c.maxSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Warn("read failed", "err", err)
			}
			return err
		}
		if kind != websocket.TextMessage {
			continue
		}

		if c.limiter != nil && !c.limiter.Allow() {
			c.log.Warn("rate limit exceeded, dropping frame")
			continue
		}

		msg, err := signaling.Decode(data)
		if err != nil {
			c.log.Debug("ignoring malformed frame", "err", err)
			continue
		}

		if err := c.handle(msg, data); err != nil {
			return err
		}
	}
}

func (c *Client) handle(msg signaling.Message, frame []byte) error {
	switch m := msg.(type) {
	case signaling.Join:
		return c.join(m.DeviceID)

	case signaling.Routed:
		if c.participant == nil {
			c.log.Debug("ignoring message before join", "type", m.Kind())
			return nil
		}
		n := c.Registry.Relay(c.RoomID, c.participant.DeviceID, m.RouteTarget(), frame)
		c.log.Debug("relayed", "type", m.Kind(), "device", c.participant.DeviceID, "target", m.RouteTarget(), "delivered", n)
		return nil

	default:
		c.log.Debug("ignoring relay-only message", "type", msg.Kind())
		return nil
	}
}

func (c *Client) join(deviceID string) error {
	if c.participant != nil {
		c.reply(signaling.Error{Message: signaling.ErrTextAlreadyJoined})
		return nil
	}

	p := &Participant{DeviceID: deviceID, queue: c.queue}
	err := c.Registry.Join(c.RoomID, p)
	switch {
	case errors.Is(err, ErrRoomFull):
		c.log.Info("join rejected, room full", "device", deviceID)
		c.reply(signaling.Error{Message: signaling.ErrTextRoomFull})
		return errRejected
	case errors.Is(err, ErrDuplicateDevice):
		c.log.Info("join rejected, duplicate device", "device", deviceID)
		c.reply(signaling.Error{Message: signaling.ErrTextDuplicateID})
		return errRejected
	case errors.Is(err, ErrReservedDevice):
		c.log.Info("join rejected, reserved device id", "device", deviceID)
		c.reply(signaling.Error{Message: signaling.ErrTextReservedID})
		return errRejected
	case err != nil:
		return err
	}

	c.participant = p
	c.log.Info("device joined", "device", deviceID)
	return nil
}

func (c *Client) reply(m signaling.Message) {
	c.queue.Enqueue(signaling.MustEncode(m))
}

func (c *Client) leave() {
	if c.participant == nil {
		return
	}
	notified := c.Registry.Leave(c.RoomID, c.participant)
	c.queue.Close()
	c.log.Info("device disconnected", "device", c.participant.DeviceID, "notified", notified)
}

// WritePump drains the outbound queue onto the socket and sends pings. It is
// the only writer of the connection and closes it on return.
func (c *Client) WritePump(ctx context.Context) error {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		frame, ok, done := c.queue.Pop()
		if done {
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return nil
		}

		if ok {
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return fmt.Errorf("write frame: %w", err)
			}
			continue
		}

		select {
		case <-c.queue.Ready():

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return fmt.Errorf("write ping: %w", err)
			}

		case <-ctx.Done():
			return nil
		}
	}
}

func isCloseError(err error) bool {
	var closeErr *websocket.CloseError
	return errors.As(err, &closeErr)
}
