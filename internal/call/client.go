package call

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/danish78691223/chatapp/internal/domain"
)

// Handler receives decoded signaling events. The Orchestrator
// implements it.
type Handler interface {
	HandleRoomMembers(room domain.RoomID, members []domain.Identity)
	HandleMemberJoined(room domain.RoomID, who domain.Identity)
	HandleMemberLeft(room domain.RoomID, who domain.Identity)
	HandleOffer(room domain.RoomID, from domain.Identity, sdp webrtc.SessionDescription)
	HandleAnswer(room domain.RoomID, from domain.Identity, sdp webrtc.SessionDescription)
	HandleCandidate(room domain.RoomID, from domain.Identity, ci webrtc.ICECandidateInit)
	HandleCallEnd(from domain.Identity)
}

// Client manages the persistent signaling connection. It registers the
// local identity on connect; after a reconnect the caller re-registers
// and re-joins rooms itself, the server keeps nothing across
// connections.
type Client struct {
	url     string
	self    domain.Identity
	handler Handler

	mu     sync.Mutex
	conn   *websocket.Conn
	closed chan struct{}
}

func NewClient(url string, self domain.Identity) *Client {
	return &Client{
		url:    url,
		self:   self,
		closed: make(chan struct{}),
	}
}

func (c *Client) SetHandler(h Handler) { c.handler = h }

// Connect dials the signaling endpoint, registers the identity and
// starts the read and ping loops.
func (c *Client) Connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	c.conn = conn
	log.Info().Str("module", "call.client").Str("url", c.url).Str("identity", string(c.self)).Msg("connected")

	if err := c.send(domain.Envelope{Kind: domain.KindRegister, From: c.self}); err != nil {
		conn.Close()
		return fmt.Errorf("register: %w", err)
	}

	go c.readLoop()
	go c.pingLoop()
	return nil
}

// Close shuts the signaling connection down. Idempotent.
func (c *Client) Close() {
	select {
	case <-c.closed:
		return
	default:
		close(c.closed)
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func (c *Client) send(env domain.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) sendPayload(kind domain.Kind, room domain.RoomID, to domain.Identity, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.send(domain.Envelope{
		Kind:    kind,
		From:    c.self,
		To:      to,
		Room:    room,
		Payload: raw,
	})
}

// SendOffer picks the direct or room-scoped kind from the key's room.
func (c *Client) SendOffer(room domain.RoomID, to domain.Identity, sdp webrtc.SessionDescription) error {
	kind := domain.KindCallInitiate
	if room != "" {
		kind = domain.KindRoomCallOffer
	}
	return c.sendPayload(kind, room, to, sdp)
}

func (c *Client) SendAnswer(room domain.RoomID, to domain.Identity, sdp webrtc.SessionDescription) error {
	kind := domain.KindCallAnswer
	if room != "" {
		kind = domain.KindRoomCallAnswer
	}
	return c.sendPayload(kind, room, to, sdp)
}

func (c *Client) SendCandidate(room domain.RoomID, to domain.Identity, ci webrtc.ICECandidateInit) error {
	kind := domain.KindCallCandidate
	if room != "" {
		kind = domain.KindRoomCallCandidate
	}
	return c.sendPayload(kind, room, to, ci)
}

func (c *Client) SendEnd(to domain.Identity) error {
	return c.send(domain.Envelope{Kind: domain.KindCallEnd, From: c.self, To: to})
}

func (c *Client) JoinRoom(room domain.RoomID) error {
	return c.send(domain.Envelope{Kind: domain.KindRoomJoin, From: c.self, Room: room})
}

func (c *Client) LeaveRoom(room domain.RoomID) error {
	return c.send(domain.Envelope{Kind: domain.KindRoomLeave, From: c.self, Room: room})
}

func (c *Client) readLoop() {
	defer c.Close()
	for {
		select {
		case <-c.closed:
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Debug().Err(err).Str("module", "call.client").Msg("read error")
				return
			}
			c.dispatch(data)
		}
	}
}

// dispatch routes one server envelope. Unexpected shapes are ignored,
// never fatal.
func (c *Client) dispatch(data []byte) {
	var env domain.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "call.client").Msg("bad json from server")
		return
	}
	if c.handler == nil {
		return
	}

	switch env.Kind {
	case domain.KindRoomMembers:
		c.handler.HandleRoomMembers(env.Room, env.Members)
	case domain.KindRoomMemberJoined:
		c.handler.HandleMemberJoined(env.Room, env.From)
	case domain.KindRoomMemberLeft:
		c.handler.HandleMemberLeft(env.Room, env.From)
	case domain.KindCallInitiate, domain.KindRoomCallOffer:
		sdp, ok := decodeSDP(env.Payload)
		if !ok {
			return
		}
		c.handler.HandleOffer(env.Room, env.From, sdp)
	case domain.KindCallAnswer, domain.KindRoomCallAnswer:
		sdp, ok := decodeSDP(env.Payload)
		if !ok {
			return
		}
		c.handler.HandleAnswer(env.Room, env.From, sdp)
	case domain.KindCallCandidate, domain.KindRoomCallCandidate:
		var ci webrtc.ICECandidateInit
		if err := json.Unmarshal(env.Payload, &ci); err != nil {
			log.Warn().Err(err).Str("module", "call.client").Msg("bad candidate payload")
			return
		}
		c.handler.HandleCandidate(env.Room, env.From, ci)
	case domain.KindCallEnd:
		c.handler.HandleCallEnd(env.From)
	case domain.KindPong:
	default:
		log.Debug().Str("module", "call.client").Str("kind", string(env.Kind)).Msg("unhandled kind")
	}
}

func decodeSDP(raw json.RawMessage) (webrtc.SessionDescription, bool) {
	var sdp webrtc.SessionDescription
	if err := json.Unmarshal(raw, &sdp); err != nil {
		log.Warn().Err(err).Str("module", "call.client").Msg("bad session description payload")
		return webrtc.SessionDescription{}, false
	}
	return sdp, true
}

func (c *Client) pingLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			if err := c.send(domain.Envelope{Kind: domain.KindPing}); err != nil {
				return
			}
		}
	}
}
