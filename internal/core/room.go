package core

import "github.com/danish78691223/chatapp/internal/domain"

// Room holds the set of identities currently in one call. Distinct from
// chat-group membership, which lives outside this subsystem. A Room is
// created on first join and destroyed when the last member leaves; an
// empty Room never exists in the registry.
type Room struct {
	id      domain.RoomID
	members map[domain.Identity]struct{}
}

func newRoom(id domain.RoomID) *Room {
	return &Room{id: id, members: make(map[domain.Identity]struct{})}
}

func (r *Room) ID() domain.RoomID { return r.id }

func (r *Room) size() int { return len(r.members) }

func (r *Room) add(identity domain.Identity) {
	r.members[identity] = struct{}{}
}

func (r *Room) remove(identity domain.Identity) bool {
	if _, ok := r.members[identity]; !ok {
		return false
	}
	delete(r.members, identity)
	return true
}

func (r *Room) snapshot(excluding domain.Identity) []domain.Identity {
	out := make([]domain.Identity, 0, len(r.members))
	for id := range r.members {
		if id != excluding {
			out = append(out, id)
		}
	}
	return out
}
