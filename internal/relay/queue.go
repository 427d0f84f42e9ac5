package relay

import "sync"

// outboundQueue is an unbounded FIFO of encoded frames with a single
// consumer. Enqueue never blocks, so a slow socket never stalls the
// goroutine relaying to it.
type outboundQueue struct {
	mu       sync.Mutex
	frames   [][]byte
	closed   bool
	draining bool

	// notify holds a token whenever frames may be waiting.
	notify chan struct{}
}

func newOutboundQueue() *outboundQueue {
	return &outboundQueue{notify: make(chan struct{}, 1)}
}

// Enqueue appends frame. It reports false once the queue is closed.
func (q *outboundQueue) Enqueue(frame []byte) bool {
	q.mu.Lock()
	if q.closed || q.draining {
		q.mu.Unlock()
		return false
	}
	q.frames = append(q.frames, frame)
	q.mu.Unlock()

	q.signal()
	return true
}

// Pop removes the oldest frame. done is true when the queue is closed, or
// when it is draining and empty.
func (q *outboundQueue) Pop() (frame []byte, ok bool, done bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, false, true
	}
	if len(q.frames) == 0 {
		return nil, false, q.draining
	}

	frame = q.frames[0]
	q.frames[0] = nil
	q.frames = q.frames[1:]
	return frame, true, false
}

// Ready fires when frames may be available or the queue state changed.
func (q *outboundQueue) Ready() <-chan struct{} {
	return q.notify
}

// Drain stops accepting frames; the consumer finishes what is queued and then
// sees done.
func (q *outboundQueue) Drain() {
	q.mu.Lock()
	q.draining = true
	q.mu.Unlock()
	q.signal()
}

// Close discards queued frames and stops accepting new ones.
func (q *outboundQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.frames = nil
	q.mu.Unlock()
	q.signal()
}

// Len returns the number of queued frames.
func (q *outboundQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

func (q *outboundQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
