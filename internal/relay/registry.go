package relay

import (
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/denzyldick/mediasafe/internal/signaling"
)

// MaxParticipants is the capacity of a room.
const MaxParticipants = 2

var (
	ErrRoomFull        = errors.New("relay: room is full")
	ErrDuplicateDevice = errors.New("relay: device id already in room")
	ErrReservedDevice  = errors.New("relay: device id is reserved")
)

// Participant is one joined socket. It lives exactly as long as the
// connection that created it.
type Participant struct {
	DeviceID string
	queue    *outboundQueue
}

// Send queues frame for the participant's writer. It never blocks and
// reports false when the participant's connection is already gone.
func (p *Participant) Send(frame []byte) bool {
	return p.queue.Enqueue(frame)
}

// Room groups up to MaxParticipants sockets that share a room id.
type Room struct {
	ID           string
	participants map[string]*Participant
}

// Registry owns every live room. It is built once per relay and shared by
// all connections; mu guards the map and every Room in it.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	log   *slog.Logger
}

// NewRegistry creates an empty registry. A nil logger uses slog.Default.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		rooms: make(map[string]*Room),
		log:   log,
	}
}

// Join adds p to the room, creating the room if needed. Capacity is checked
// here and only here.
func (r *Registry) Join(roomID string, p *Participant) error {
	// Routed messages use PeerTarget as a placeholder; a device holding that
	// id could never be addressed directly.
	if p.DeviceID == signaling.PeerTarget {
		return ErrReservedDevice
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		room = &Room{ID: roomID, participants: make(map[string]*Participant, MaxParticipants)}
		r.rooms[roomID] = room
		r.log.Debug("room created", "room", roomID)
	}

	if len(room.participants) >= MaxParticipants {
		return ErrRoomFull
	}
	if _, taken := room.participants[p.DeviceID]; taken {
		return ErrDuplicateDevice
	}

	room.participants[p.DeviceID] = p
	return nil
}

// Relay forwards frame to target inside roomID and returns how many
// participants it was queued for. signaling.PeerTarget means everyone in the
// room except from. Unknown rooms and targets are dropped silently.
func (r *Registry) Relay(roomID, from, target string, frame []byte) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return 0
	}

	if target == signaling.PeerTarget {
		delivered := 0
		for id, p := range room.participants {
			if id != from && p.Send(frame) {
				delivered++
			}
		}
		return delivered
	}

	p, ok := room.participants[target]
	if !ok || !p.Send(frame) {
		return 0
	}
	return 1
}

// Leave removes p from the room, deletes the room once it is empty and tells
// every remaining participant that p left. It returns the number notified.
func (r *Registry) Leave(roomID string, p *Participant) int {
	r.mu.Lock()
	room, ok := r.rooms[roomID]
	if !ok || room.participants[p.DeviceID] != p {
		r.mu.Unlock()
		return 0
	}

	delete(room.participants, p.DeviceID)

	remaining := make([]*Participant, 0, len(room.participants))
	for _, other := range room.participants {
		remaining = append(remaining, other)
	}

	if len(room.participants) == 0 {
		delete(r.rooms, roomID)
		r.log.Info("room deleted", "room", roomID)
	}
	r.mu.Unlock()

	frame := signaling.MustEncode(signaling.PeerDisconnected{DeviceID: p.DeviceID})
	notified := 0
	for _, other := range remaining {
		if other.Send(frame) {
			notified++
		}
	}
	return notified
}

// Participants returns the sorted device ids currently in roomID.
func (r *Registry) Participants(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return nil
	}

	ids := make([]string, 0, len(room.participants))
	for id := range room.participants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RoomCount returns the number of live rooms.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Close ends every joined connection by closing its outbound queue. The
// connections then leave their rooms as usual.
func (r *Registry) Close() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, room := range r.rooms {
		for _, p := range room.participants {
			p.queue.Close()
		}
	}
}
