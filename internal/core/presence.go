package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/danish78691223/chatapp/internal/domain"
)

// Presence maps a participant identity to its single currently-reachable
// signaling connection. Last write wins: re-registering an identity
// against a new connection models reconnect-replaces-old-session.
//
// State is process-lifetime only; clients re-register after reconnect.
type Presence struct {
	mu         sync.RWMutex
	byIdentity map[domain.Identity]SignalConnection
	byHandle   map[string]domain.Identity
}

func NewPresence() *Presence {
	return &Presence{
		byIdentity: make(map[domain.Identity]SignalConnection),
		byHandle:   make(map[string]domain.Identity),
	}
}

// Register unconditionally overwrites any existing entry for identity.
func (p *Presence) Register(identity domain.Identity, conn SignalConnection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if old, ok := p.byIdentity[identity]; ok {
		delete(p.byHandle, old.ID())
	}
	p.byIdentity[identity] = conn
	p.byHandle[conn.ID()] = identity
	log.Info().Str("module", "core.presence").Str("identity", string(identity)).Str("handle", conn.ID()).Msg("registered")
}

func (p *Presence) Lookup(identity domain.Identity) (SignalConnection, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	conn, ok := p.byIdentity[identity]
	return conn, ok
}

// Unregister removes the entry for whichever identity currently maps to
// this exact handle. A stale close racing a fresh reconnect resolves to
// a no-op: the newer entry is never deleted.
func (p *Presence) Unregister(conn SignalConnection) (domain.Identity, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	identity, ok := p.byHandle[conn.ID()]
	if !ok {
		return "", false
	}
	if cur := p.byIdentity[identity]; cur == nil || cur.ID() != conn.ID() {
		return "", false
	}
	delete(p.byIdentity, identity)
	delete(p.byHandle, conn.ID())
	log.Info().Str("module", "core.presence").Str("identity", string(identity)).Str("handle", conn.ID()).Msg("unregistered")
	return identity, true
}
