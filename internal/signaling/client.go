package signaling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/denzyldick/mediasafe/internal/dns"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var (
	ErrClosed       = errors.New("signaling: connection closed")
	ErrNotConnected = errors.New("signaling: not connected")
)

// Client manages the WebSocket connection to the relay for one room.
type Client struct {
	conn      *websocket.Conn
	serverURL string
	incoming  chan Message
	outgoing  chan []byte

	// ctx lives from NewClient until Close or the end of the connection,
	// so Done and Send are safe before Connect.
	ctx       context.Context
	cancel    context.CancelFunc
	connected atomic.Bool

	closeOnce sync.Once
	errMu     sync.Mutex
	err       error
}

// NewClient creates a client for serverURL, the full room endpoint
// (see RoomURL).
func NewClient(serverURL string) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		serverURL: serverURL,
		incoming:  make(chan Message, 16),
		outgoing:  make(chan []byte, 16),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// RoomURL joins a relay base URL and a room id into the room endpoint.
func RoomURL(base, roomID string) string {
	return strings.TrimSuffix(base, "/") + "/ws/" + url.PathEscape(roomID)
}

// Connect establishes the WebSocket connection and starts the pumps. A
// client connects at most once; Connect after Close returns ErrClosed.
func (c *Client) Connect(ctx context.Context) error {
	if c.ctx.Err() != nil {
		return ErrClosed
	}
	if c.connected.Load() {
		return errors.New("signaling: already connected")
	}

	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	dialer := *websocket.DefaultDialer
	dialer.NetDialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}

		resolvedIP, err := dns.Lookup(ctx, host)
		if err != nil {
			return nil, fmt.Errorf("dns lookup failed: %w", err)
		}

		var d net.Dialer
		return d.DialContext(ctx, network, net.JoinHostPort(resolvedIP, port))
	}

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.conn = conn
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	c.connected.Store(true)

	go c.readPump()
	go c.writePump()

	return nil
}

// readPump decodes frames into Messages. A frame that does not decode ends
// the connection; the DecodeError is reported by Err.
func (c *Client) readPump() {
	defer func() {
		c.cancel()
		c.conn.Close()
		close(c.incoming)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			c.setErr(err)
			return
		}
		if kind != websocket.TextMessage {
			continue
		}

		msg, err := Decode(data)
		if err != nil {
			slog.Debug("undecodable frame from relay", "err", err)
			c.setErr(err)
			return
		}

		select {
		case c.incoming <- msg:
		case <-c.ctx.Done():
			return
		}
	}
}

// writePump writes queued frames and sends periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.setErr(err)
				c.cancel()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.setErr(err)
				c.cancel()
				return
			}

		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Send queues m for delivery to the relay.
func (c *Client) Send(m Message) error {
	if c.ctx.Err() != nil {
		return ErrClosed
	}
	if !c.connected.Load() {
		return ErrNotConnected
	}

	frame, err := Encode(m)
	if err != nil {
		return err
	}

	select {
	case c.outgoing <- frame:
		return nil
	case <-c.ctx.Done():
		return ErrClosed
	}
}

// Incoming returns the channel of decoded relay messages. It is closed when
// the connection ends.
func (c *Client) Incoming() <-chan Message {
	return c.incoming
}

// Done is closed once the connection is shutting down, or once Close is
// called on a client that never connected.
func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Err returns the error that ended the connection, if any.
func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Client) setErr(err error) {
	c.errMu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.errMu.Unlock()
}

// Close closes the WebSocket connection and cleans up resources.
func (c *Client) Close() {
	c.closeOnce.Do(c.cancel)
}
