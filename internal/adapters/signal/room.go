package signal

import (
	"github.com/rs/zerolog/log"

	"github.com/danish78691223/chatapp/internal/domain"
)

func (ctl *Controller) handleRegister(c *Conn, env domain.Envelope) {
	if env.From == "" {
		ctl.sendJSON(c, map[string]any{"kind": "error", "error": "empty identity"})
		return
	}
	c.bind(env.From)
	ctl.Orch.Register(env.From, c)
	log.Info().Str("module", "signal").Str("identity", string(env.From)).Str("handle", c.ID()).Msg("register")
}

// handleRoomJoin adds the sender to the room and replies with the
// members that were already present, so the joiner knows exactly who to
// initiate pairwise sessions toward. Existing members never initiate
// toward a joiner; they learn about it via room-member-joined.
func (ctl *Controller) handleRoomJoin(c *Conn, env domain.Envelope) {
	identity := ctl.senderIdentity(c, env)
	if env.Room == "" || identity == "" {
		log.Warn().Str("module", "signal").Str("handle", c.ID()).Msg("room-join missing room or identity")
		return
	}
	existing := ctl.Orch.RoomJoin(env.Room, identity)
	ctl.sendJSON(c, domain.Envelope{
		Kind:    domain.KindRoomMembers,
		Room:    env.Room,
		Members: existing,
	})
}

func (ctl *Controller) handleRoomLeave(c *Conn, env domain.Envelope) {
	identity := ctl.senderIdentity(c, env)
	if env.Room == "" || identity == "" {
		return
	}
	ctl.Orch.RoomLeave(env.Room, identity)
}

func (ctl *Controller) handlePing(c *Conn) {
	ctl.sendJSON(c, domain.Envelope{Kind: domain.KindPong})
}

// senderIdentity prefers the identity registered over this connection
// and falls back to the caller-supplied one for clients that join a
// room before registering.
func (ctl *Controller) senderIdentity(c *Conn, env domain.Envelope) domain.Identity {
	if id := c.boundIdentity(); id != "" {
		return id
	}
	return env.From
}
