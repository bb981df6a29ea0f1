package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/danish78691223/chatapp/internal/app"
	"github.com/danish78691223/chatapp/internal/config"
	"github.com/danish78691223/chatapp/internal/core"
	"github.com/danish78691223/chatapp/internal/domain"
)

// Controller accepts signaling websockets and translates envelopes into
// orchestrator calls.
type Controller struct {
	Orch    *app.Orchestrator
	Cfg     *config.Config
	limiter *RateLimiter
}

func NewController(orch *app.Orchestrator, cfg *config.Config) *Controller {
	return &Controller{
		Orch:    orch,
		Cfg:     cfg,
		limiter: NewRateLimiter(cfg.SignalRateLimit, cfg.SignalRateWindow),
	}
}

// Conn is one live signaling connection. It implements
// core.SignalConnection; the registries hold it as an opaque handle.
type Conn struct {
	id   string
	conn *websocket.Conn
	send chan core.Frame

	mu       sync.RWMutex
	closed   bool
	identity domain.Identity
}

func newConn(ws *websocket.Conn, sendBuf int) *Conn {
	return &Conn{
		id:   uuid.NewString(),
		conn: ws,
		send: make(chan core.Frame, sendBuf),
	}
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

func (c *Conn) bind(identity domain.Identity) {
	c.mu.Lock()
	c.identity = identity
	c.mu.Unlock()
}

// boundIdentity is the identity registered over this connection, if any.
func (c *Conn) boundIdentity() domain.Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and starts the connection pumps.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.Cfg.ReadLimit > 0 {
		ws.SetReadLimit(ctl.Cfg.ReadLimit)
	}

	conn := newConn(ws, 32)
	log.Info().Str("module", "signal").Str("handle", conn.ID()).Msg("new WS connection")

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, conn)
}
