package signaling

import "sync"

// Handler routes incoming relay messages to typed channels.
type Handler struct {
	client     *Client
	Offers     chan Offer
	Answers    chan Answer
	Candidates chan IceCandidate
	PeerLeft   chan PeerDisconnected
	Errors     chan Error

	// Done is closed when the relay connection has ended and every
	// message before that point has been routed.
	Done chan struct{}

	quit      chan struct{}
	closeOnce sync.Once
}

// NewHandler creates a new message handler.
func NewHandler(client *Client) *Handler {
	return &Handler{
		client:     client,
		Offers:     make(chan Offer, 4),
		Answers:    make(chan Answer, 4),
		Candidates: make(chan IceCandidate, 32),
		PeerLeft:   make(chan PeerDisconnected, 1),
		Errors:     make(chan Error, 1),
		Done:       make(chan struct{}),
		quit:       make(chan struct{}),
	}
}

// Start begins listening to incoming messages and routing them. It returns
// when the connection ends or Close is called.
func (h *Handler) Start() {
	defer close(h.Done)

	for msg := range h.client.Incoming() {
		var ok bool

		switch m := msg.(type) {
		case Offer:
			ok = deliver(h.Offers, m, h.quit)
		case Answer:
			ok = deliver(h.Answers, m, h.quit)
		case IceCandidate:
			ok = deliver(h.Candidates, m, h.quit)
		case PeerDisconnected:
			ok = deliver(h.PeerLeft, m, h.quit)
		case Error:
			ok = deliver(h.Errors, m, h.quit)
		default:
			// Join only ever travels client to relay.
			ok = true
		}

		if !ok {
			return
		}
	}
}

func deliver[T any](ch chan T, v T, quit <-chan struct{}) bool {
	select {
	case ch <- v:
		return true
	case <-quit:
		return false
	}
}

// Close stops routing. Messages still in flight are dropped.
func (h *Handler) Close() {
	h.closeOnce.Do(func() {
		close(h.quit)
	})
}
