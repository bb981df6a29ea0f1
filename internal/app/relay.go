package app

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/danish78691223/chatapp/internal/core"
	"github.com/danish78691223/chatapp/internal/domain"
)

// Relay is the store-less addressed pass-through: look up the target in
// the presence registry, forward the envelope verbatim, drop silently if
// the target is not present. Payload semantics are never inspected.
type Relay struct {
	Presence *core.Presence
}

func NewRelay(presence *core.Presence) *Relay {
	return &Relay{Presence: presence}
}

// Forward delivers env to env.To if registered. The boolean is for
// observability only; the sender is never told about a drop.
func (r *Relay) Forward(env domain.Envelope) bool {
	conn, ok := r.Presence.Lookup(env.To)
	if !ok {
		log.Debug().Str("module", "app.relay").Str("kind", string(env.Kind)).Str("to", string(env.To)).Msg("target not present, dropped")
		return false
	}
	data, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Msg("marshal envelope")
		return false
	}
	if err := conn.TrySend(data); err != nil {
		log.Debug().Err(err).Str("module", "app.relay").Str("to", string(env.To)).Msg("send failed, dropped")
		return false
	}
	return true
}
