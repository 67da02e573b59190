package state

import (
	"errors"
	"time"
)

var (
	// ErrRoomNotFound is returned for lookups and state updates against a
	// room code with no live room.
	ErrRoomNotFound = errors.New("room not found")
)

// Room groups the clients sharing one match and holds its authoritative
// state. Members are client ids only; the ClientRegistry owns the records.
type Room struct {
	Code      string
	Members   map[string]struct{}
	State     *GameState
	CreatedAt time.Time
}

// MemberIDs returns the member set as a slice, in no particular order.
func (r *Room) MemberIDs() []string {
	out := make([]string, 0, len(r.Members))
	for id := range r.Members {
		out = append(out, id)
	}
	return out
}

// RoomRegistry maps room codes to live rooms. A room is present exactly when
// it has at least one member.
type RoomRegistry struct {
	rooms map[string]*Room
}

// NewRoomRegistry returns an empty registry.
func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{rooms: make(map[string]*Room)}
}

// Join adds clientID to the room named by code, creating the room with the
// default initial state when the code is unknown. It returns the room and
// whether this call created it. The caller is responsible for removing the
// client from any prior room first, so that leave notices go out with the
// client's identity.
func (r *RoomRegistry) Join(clientID, code string, now time.Time) (*Room, bool) {
	room, ok := r.rooms[code]
	created := false
	if !ok {
		room = &Room{
			Code:      code,
			Members:   make(map[string]struct{}),
			State:     NewGameState(now.UnixMilli()),
			CreatedAt: now,
		}
		r.rooms[code] = room
		created = true
	}
	room.Members[clientID] = struct{}{}
	return room, created
}

// Leave removes clientID from the room. It returns the room (nil when the
// code was unknown), whether the membership actually existed, and whether
// the room was deleted because it became empty. Idempotent: a second leave
// for the same membership reports removed=false and changes nothing.
func (r *RoomRegistry) Leave(clientID, code string) (room *Room, removed, deleted bool) {
	room, ok := r.rooms[code]
	if !ok {
		return nil, false, false
	}
	if _, member := room.Members[clientID]; !member {
		return room, false, false
	}
	delete(room.Members, clientID)
	if len(room.Members) == 0 {
		delete(r.rooms, code)
		return room, true, true
	}
	return room, true, false
}

// ApplyStateUpdate merges patch into the room's game state, bumping the
// version by exactly 1 and stamping the update time. It returns
// ErrRoomNotFound when the code has no live room.
func (r *RoomRegistry) ApplyStateUpdate(code string, patch map[string]any, nowMillis int64) (*Room, error) {
	room, ok := r.rooms[code]
	if !ok {
		return nil, ErrRoomNotFound
	}
	room.State.Merge(patch, nowMillis)
	return room, nil
}

// Get is a read-only lookup, used by SYNC_REQUEST handling.
func (r *RoomRegistry) Get(code string) (*Room, error) {
	room, ok := r.rooms[code]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// All returns the live rooms in no particular order.
func (r *RoomRegistry) All() []*Room {
	out := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		out = append(out, room)
	}
	return out
}

// Len returns the number of live rooms.
func (r *RoomRegistry) Len() int {
	return len(r.rooms)
}
