package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/danish78691223/chatapp/internal/domain"
)

const writeTimeout = 5 * time.Second

func (ctl *Controller) writePump(ctx context.Context, c *Conn) {
	ticker := time.NewTicker(ctl.Cfg.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Str("handle", c.ID()).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, c *Conn) {
	defer func() {
		log.Info().Str("module", "signal").Str("handle", c.ID()).Msg("readPump closing")
		cancel()
		ctl.Orch.Disconnect(c)
		ctl.limiter.Forget(c.ID())
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Debug().Err(err).Str("module", "signal").Str("handle", c.ID()).Msg("readPump read error")
				return
			}
			if !ctl.limiter.Allow(c.ID()) {
				log.Warn().Str("module", "signal").Str("handle", c.ID()).Msg("rate limit exceeded, dropped")
				continue
			}
			ctl.dispatch(c, data)
		}
	}
}

// dispatch decodes one envelope and routes it by kind. Malformed input
// is ignored: nothing a single client sends may take the process down.
func (ctl *Controller) dispatch(c *Conn, data []byte) {
	var env domain.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("handle", c.ID()).Msg("bad json")
		return
	}

	switch env.Kind {
	case domain.KindRegister:
		ctl.handleRegister(c, env)
	case domain.KindRoomJoin:
		ctl.handleRoomJoin(c, env)
	case domain.KindRoomLeave:
		ctl.handleRoomLeave(c, env)
	case domain.KindPing:
		ctl.handlePing(c)
	default:
		if env.Kind.Relayed() {
			ctl.handleRelay(c, env)
			return
		}
		log.Warn().Str("module", "signal").Str("kind", string(env.Kind)).Msg("unknown signal")
	}
}

func (ctl *Controller) sendJSON(c *Conn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}
