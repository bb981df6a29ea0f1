package signal

import (
	"github.com/rs/zerolog/log"

	"github.com/danish78691223/chatapp/internal/domain"
)

// handleRelay forwards call signaling (offers, answers, candidates, end)
// to the addressed identity. From is stamped with the sender's
// registered identity so a client cannot impersonate another. Drops are
// silent toward the sender: signaling is best effort and the caller has
// no recovery action here beyond a higher-level retry.
func (ctl *Controller) handleRelay(c *Conn, env domain.Envelope) {
	if env.To == "" {
		log.Warn().Str("module", "signal").Str("kind", string(env.Kind)).Msg("relay without target")
		return
	}
	if id := c.boundIdentity(); id != "" {
		env.From = id
	}
	ctl.Orch.Forward(env)
}
