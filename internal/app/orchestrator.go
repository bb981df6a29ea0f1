package app

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/danish78691223/chatapp/internal/core"
	"github.com/danish78691223/chatapp/internal/domain"
)

// Orchestrator owns the presence and room registries and is the only
// component allowed to mutate them. Adapters translate wire events into
// calls on it.
type Orchestrator struct {
	Presence *core.Presence
	Rooms    *core.Rooms
	Relay    *Relay
}

func NewOrchestrator() *Orchestrator {
	presence := core.NewPresence()
	return &Orchestrator{
		Presence: presence,
		Rooms:    core.NewRooms(),
		Relay:    NewRelay(presence),
	}
}

// Register binds identity to conn, replacing any prior binding.
func (o *Orchestrator) Register(identity domain.Identity, conn core.SignalConnection) {
	o.Presence.Register(identity, conn)
}

// Forward relays an addressed envelope. From must already be stamped
// with the sender's registered identity by the adapter.
func (o *Orchestrator) Forward(env domain.Envelope) {
	o.Relay.Forward(env)
}

// RoomJoin adds identity to the room and returns the members present
// before the join. Remaining members are told about the newcomer.
func (o *Orchestrator) RoomJoin(roomID domain.RoomID, identity domain.Identity) []domain.Identity {
	existing := o.Rooms.Join(roomID, identity)
	o.broadcast(roomID, identity, domain.Envelope{
		Kind: domain.KindRoomMemberJoined,
		From: identity,
		Room: roomID,
	})
	return existing
}

// RoomLeave removes identity from the room and notifies the remaining
// members. No-op if identity was not a member.
func (o *Orchestrator) RoomLeave(roomID domain.RoomID, identity domain.Identity) {
	if !o.Rooms.Leave(roomID, identity) {
		return
	}
	o.broadcast(roomID, identity, domain.Envelope{
		Kind: domain.KindRoomMemberLeft,
		From: identity,
		Room: roomID,
	})
}

// Disconnect handles a dropped connection. The handle is resolved back
// to an identity through the presence registry; a stale handle (already
// replaced by a reconnect) resolves to nothing and the newer state is
// left untouched. For every room the identity belonged to, the same
// removal-and-broadcast as an explicit leave is performed.
func (o *Orchestrator) Disconnect(conn core.SignalConnection) {
	identity, ok := o.Presence.Unregister(conn)
	if !ok {
		return
	}
	for _, roomID := range o.Rooms.RoomsOf(identity) {
		o.RoomLeave(roomID, identity)
	}
	log.Info().Str("module", "app.orchestrator").Str("identity", string(identity)).Msg("disconnect cleanup done")
}

// broadcast sends env to every current room member except excluding.
// Delivery is best effort and independent per recipient; a closed or
// backpressured connection affects that one member only.
func (o *Orchestrator) broadcast(roomID domain.RoomID, excluding domain.Identity, env domain.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("module", "app.orchestrator").Msg("marshal broadcast")
		return
	}
	for _, member := range o.Rooms.Members(roomID, excluding) {
		conn, ok := o.Presence.Lookup(member)
		if !ok {
			continue
		}
		if err := conn.TrySend(data); err != nil {
			log.Debug().Err(err).Str("module", "app.orchestrator").Str("member", string(member)).Msg("broadcast send failed")
		}
	}
}
