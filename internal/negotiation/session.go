package negotiation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/denzyldick/mediasafe/internal/config"
	"github.com/denzyldick/mediasafe/internal/signaling"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
)

// Role fixes which side of the negotiation a session plays.
type Role int

const (
	Initiator Role = iota
	Responder
)

func (r Role) String() string {
	switch r {
	case Initiator:
		return "initiator"
	case Responder:
		return "responder"
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// Result is handed to the file-transfer collaborator once the channel opens.
type Result struct {
	Role           Role
	DeviceID       string
	PeerConnection *webrtc.PeerConnection
	DataChannel    *webrtc.DataChannel
}

// Close tears down the peer connection and its channel.
func (r *Result) Close() error {
	return r.PeerConnection.Close()
}

// Session negotiates one data channel through the relay. A Session runs once;
// later calls to Run fail with ErrSessionUsed.
type Session struct {
	cfg      *config.Config
	role     Role
	roomID   string
	deviceID string
	log      *slog.Logger

	// OnStateChange, when set, observes every peer connection state change.
	// It is called from pion's goroutines.
	OnStateChange func(webrtc.PeerConnectionState)

	started    atomic.Bool
	done       chan struct{}
	opened     chan *webrtc.DataChannel
	states     chan webrtc.PeerConnectionState
	candidates chan webrtc.ICECandidateInit
}

// NewSession prepares a session in room roomID with a fresh device id.
func NewSession(cfg *config.Config, role Role, roomID string) *Session {
	deviceID := uuid.NewString()
	return &Session{
		cfg:        cfg,
		role:       role,
		roomID:     roomID,
		deviceID:   deviceID,
		log:        slog.Default().With("room", shortID(roomID), "device", deviceID, "role", role.String()),
		done:       make(chan struct{}),
		opened:     make(chan *webrtc.DataChannel, 1),
		states:     make(chan webrtc.PeerConnectionState, 8),
		candidates: make(chan webrtc.ICECandidateInit, 64),
	}
}

func (s *Session) DeviceID() string { return s.deviceID }
func (s *Session) Role() Role       { return s.role }

// negotiation holds the mutable state of one Run.
type negotiation struct {
	*Session
	ctx    context.Context
	client *signaling.Client
	pc     *webrtc.PeerConnection

	offer     string
	local     []string
	pending   []webrtc.ICECandidateInit
	remoteSet bool
	connected bool
}

// Run drives the negotiation until the data channel opens or a terminal
// failure occurs. The relay connection is released before Run returns.
func (s *Session) Run(ctx context.Context) (*Result, error) {
	if !s.started.CompareAndSwap(false, true) {
		return nil, NewError("run", ErrSessionUsed)
	}
	defer close(s.done)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.NegotiationTimeout)
	defer cancel()

	client := signaling.NewClient(signaling.RoomURL(s.cfg.RelayURL, s.roomID))
	defer client.Close()
	if err := client.Connect(ctx); err != nil {
		return nil, WrapError("connect relay", ErrRelayClosed, err.Error())
	}

	handler := signaling.NewHandler(client)
	go handler.Start()
	defer handler.Close()

	if err := client.Send(signaling.Join{DeviceID: s.deviceID}); err != nil {
		return nil, WrapError("join room", ErrRelayClosed, err.Error())
	}
	s.log.Debug("joined room")

	pc, err := NewPeerConnection(s.cfg)
	if err != nil {
		return nil, err
	}

	n := &negotiation{Session: s, ctx: ctx, client: client, pc: pc}
	res, err := n.loop(handler)
	if err != nil {
		if cerr := pc.Close(); cerr != nil {
			s.log.Debug("close peer connection", "err", cerr)
		}
		return nil, err
	}
	return res, nil
}

func (n *negotiation) loop(h *signaling.Handler) (*Result, error) {
	n.watch()

	var retry <-chan time.Time
	if n.role == Initiator {
		if err := n.sendOffer(); err != nil {
			return nil, err
		}
		ticker := time.NewTicker(n.cfg.OfferRetryInterval)
		defer ticker.Stop()
		retry = ticker.C
	}

	for {
		select {
		case <-n.ctx.Done():
			if errors.Is(n.ctx.Err(), context.DeadlineExceeded) {
				return nil, WrapError("negotiate", ErrTimeout, n.cfg.NegotiationTimeout.String())
			}
			return nil, NewError("negotiate", n.ctx.Err())

		case dc := <-n.opened:
			n.log.Info("data channel open", "label", dc.Label())
			return &Result{
				Role:           n.role,
				DeviceID:       n.deviceID,
				PeerConnection: n.pc,
				DataChannel:    dc,
			}, nil

		case state := <-n.states:
			switch state {
			case webrtc.PeerConnectionStateConnected:
				n.connected = true
			case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
				return nil, WrapError("peer connection", ErrConnectionFailed, state.String())
			}

		case c := <-n.candidates:
			if err := n.sendCandidate(c); err != nil {
				return nil, err
			}

		case <-retry:
			// The relay drops messages for a peer that has not joined yet.
			n.log.Debug("resending offer", "candidates", len(n.local))
			if err := n.resend(); err != nil {
				return nil, err
			}

		case m := <-h.Offers:
			if err := n.handleOffer(m); err != nil {
				return nil, err
			}

		case m := <-h.Answers:
			if err := n.handleAnswer(m); err != nil {
				return nil, err
			}
			if n.remoteSet {
				retry = nil
			}

		case m := <-h.Candidates:
			if err := n.handleCandidate(m); err != nil {
				return nil, err
			}

		case m := <-h.PeerLeft:
			if err := n.handlePeerLeft(m); err != nil {
				return nil, err
			}

		case m := <-h.Errors:
			return nil, relayError(m)

		case <-h.Done:
			return nil, n.relayGone(h)
		}
	}
}

// watch registers pion callbacks. They hand events to the loop and drop them
// once Run has returned.
func (n *negotiation) watch() {
	s := n.Session

	n.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		select {
		case s.candidates <- c.ToJSON():
		case <-s.done:
		}
	})

	n.pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.log.Debug("peer connection state", "state", state.String())
		if s.OnStateChange != nil {
			s.OnStateChange(state)
		}
		select {
		case s.states <- state:
		case <-s.done:
		}
	})

	onOpen := func(dc *webrtc.DataChannel) {
		dc.OnOpen(func() {
			select {
			case s.opened <- dc:
			case <-s.done:
			}
		})
	}

	if n.role == Responder {
		n.pc.OnDataChannel(onOpen)
	}
}

func (n *negotiation) sendOffer() error {
	dc, err := CreateDataChannel(n.pc, ChannelLabel)
	if err != nil {
		return err
	}
	dc.OnOpen(func() {
		select {
		case n.opened <- dc:
		case <-n.done:
		}
	})

	desc, err := CreateOffer(n.pc)
	if err != nil {
		return err
	}
	if n.offer, err = encodeJSON(desc); err != nil {
		return NewError("encode offer", err)
	}
	return n.send(signaling.Offer{Payload: n.offer, Target: signaling.PeerTarget})
}

func (n *negotiation) sendCandidate(c webrtc.ICECandidateInit) error {
	payload, err := encodeJSON(c)
	if err != nil {
		return NewError("encode candidate", err)
	}
	if n.role == Initiator {
		n.local = append(n.local, payload)
	}
	return n.send(signaling.IceCandidate{Payload: payload, Target: signaling.PeerTarget})
}

// resend replays the offer and every local candidate gathered so far.
func (n *negotiation) resend() error {
	if err := n.send(signaling.Offer{Payload: n.offer, Target: signaling.PeerTarget}); err != nil {
		return err
	}
	for _, payload := range n.local {
		if err := n.send(signaling.IceCandidate{Payload: payload, Target: signaling.PeerTarget}); err != nil {
			return err
		}
	}
	return nil
}

func (n *negotiation) handleOffer(m signaling.Offer) error {
	if n.role != Responder {
		n.log.Debug("ignoring offer as initiator")
		return nil
	}
	if n.remoteSet {
		n.log.Debug("ignoring repeated offer")
		return nil
	}

	offer, err := decodeDescription(m.Payload, webrtc.SDPTypeOffer)
	if err != nil {
		return err
	}
	answer, err := CreateAnswer(n.pc, offer)
	if err != nil {
		return err
	}
	if err := n.remoteReady(); err != nil {
		return err
	}

	payload, err := encodeJSON(answer)
	if err != nil {
		return NewError("encode answer", err)
	}
	return n.send(signaling.Answer{Payload: payload, Target: signaling.PeerTarget})
}

func (n *negotiation) handleAnswer(m signaling.Answer) error {
	if n.role != Initiator || n.remoteSet {
		n.log.Debug("ignoring unexpected answer")
		return nil
	}

	answer, err := decodeDescription(m.Payload, webrtc.SDPTypeAnswer)
	if err != nil {
		return err
	}
	if err := n.pc.SetRemoteDescription(answer); err != nil {
		return WrapError("set remote description", ErrConnectionFailed, err.Error())
	}
	return n.remoteReady()
}

func (n *negotiation) handleCandidate(m signaling.IceCandidate) error {
	c, err := decodeCandidate(m.Payload)
	if err != nil {
		return err
	}
	if !n.remoteSet {
		n.pending = append(n.pending, c)
		return nil
	}
	return n.addCandidate(c)
}

// remoteReady marks the remote description set and applies buffered candidates.
func (n *negotiation) remoteReady() error {
	n.remoteSet = true
	pending := n.pending
	n.pending = nil
	for _, c := range pending {
		if err := n.addCandidate(c); err != nil {
			return err
		}
	}
	return nil
}

func (n *negotiation) addCandidate(c webrtc.ICECandidateInit) error {
	if err := n.pc.AddICECandidate(c); err != nil {
		return WrapError("add ICE candidate", ErrConnectionFailed, err.Error())
	}
	return nil
}

func (n *negotiation) handlePeerLeft(m signaling.PeerDisconnected) error {
	if n.connected {
		n.log.Debug("peer left relay after connecting", "peer", m.DeviceID)
		return nil
	}
	return WrapError("negotiate", ErrPeerDisconnected, m.DeviceID)
}

// relayGone reports why the relay connection ended. Messages routed just
// before the end take precedence over the bare disconnect.
func (n *negotiation) relayGone(h *signaling.Handler) error {
	select {
	case m := <-h.Errors:
		return relayError(m)
	default:
	}
	select {
	case m := <-h.PeerLeft:
		if err := n.handlePeerLeft(m); err != nil {
			return err
		}
	default:
	}

	var decodeErr *signaling.DecodeError
	if err := n.client.Err(); errors.As(err, &decodeErr) {
		return WrapError("read relay", ErrMalformedMessage, decodeErr.Error())
	} else if err != nil {
		return WrapError("read relay", ErrRelayClosed, err.Error())
	}
	return NewError("read relay", ErrRelayClosed)
}

func (n *negotiation) send(m signaling.Message) error {
	if err := n.client.Send(m); err != nil {
		return WrapError("send "+string(m.Kind()), ErrRelayClosed, err.Error())
	}
	return nil
}

func relayError(m signaling.Error) error {
	if m.Message == signaling.ErrTextRoomFull {
		return NewError("join room", ErrRoomFull)
	}
	return WrapError("relay", ErrRelayRejected, m.Message)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
