package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/danish78691223/chatapp/internal/domain"
)

// Rooms is the call room registry. All mutations are serialized through
// one mutex so that concurrent joins, leaves and disconnect cleanups for
// the same room never corrupt the member set.
type Rooms struct {
	mu    sync.Mutex
	rooms map[domain.RoomID]*Room
}

func NewRooms() *Rooms {
	return &Rooms{rooms: make(map[domain.RoomID]*Room)}
}

// Join adds identity to the room's member set, creating the room on
// first join, and returns the set as it was before the add (excluding
// identity) so the caller knows exactly who to initiate sessions toward.
// Joining twice is idempotent.
func (rs *Rooms) Join(roomID domain.RoomID, identity domain.Identity) []domain.Identity {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	room, ok := rs.rooms[roomID]
	if !ok {
		room = newRoom(roomID)
		rs.rooms[roomID] = room
		log.Debug().Str("module", "core.rooms").Str("room", string(roomID)).Msg("room created")
	}
	existing := room.snapshot(identity)
	room.add(identity)
	log.Info().Str("module", "core.rooms").Str("room", string(roomID)).Str("identity", string(identity)).Int("size", room.size()).Msg("joined")
	return existing
}

// Leave removes identity from the room; deletes the room when the set
// empties. No-op if the room or identity is absent. Reports whether the
// identity was actually a member, so a disconnect cleanup racing an
// explicit leave stays idempotent.
func (rs *Rooms) Leave(roomID domain.RoomID, identity domain.Identity) bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	room, ok := rs.rooms[roomID]
	if !ok {
		return false
	}
	if !room.remove(identity) {
		return false
	}
	if room.size() == 0 {
		delete(rs.rooms, roomID)
		log.Debug().Str("module", "core.rooms").Str("room", string(roomID)).Msg("room destroyed")
	}
	log.Info().Str("module", "core.rooms").Str("room", string(roomID)).Str("identity", string(identity)).Msg("left")
	return true
}

// Members returns the current member set, excluding the given identity.
func (rs *Rooms) Members(roomID domain.RoomID, excluding domain.Identity) []domain.Identity {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	room, ok := rs.rooms[roomID]
	if !ok {
		return nil
	}
	return room.snapshot(excluding)
}

// Exists reports whether a room currently has any members.
func (rs *Rooms) Exists(roomID domain.RoomID) bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	_, ok := rs.rooms[roomID]
	return ok
}

// RoomsOf lists every room the identity belongs to. Used by disconnect
// cleanup to resolve a dropped connection back to its rooms.
func (rs *Rooms) RoomsOf(identity domain.Identity) []domain.RoomID {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	var out []domain.RoomID
	for id, room := range rs.rooms {
		if _, ok := room.members[identity]; ok {
			out = append(out, id)
		}
	}
	return out
}
