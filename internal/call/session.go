package call

import (
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/danish78691223/chatapp/internal/domain"
)

// State tracks one session's negotiation progress.
type State int

const (
	StateIdle State = iota
	StateOffering
	StateAnswering
	StateNegotiating
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOffering:
		return "offering"
	case StateAnswering:
		return "answering"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Key scopes a session to one remote participant, optionally within a
// room. The same two identities can hold independent sessions in
// different rooms, or a direct call outside any room (empty Room),
// without cross-talk.
type Key struct {
	Room domain.RoomID
	Peer domain.Identity
}

// Session is one negotiated media path toward exactly one remote
// participant. Each endpoint owns only its local half; coordination is
// purely through relayed messages.
//
// Candidates arriving before the remote description is set are buffered
// and flushed once it is, so no candidate is lost to early arrival.
type Session struct {
	key  Key
	peer Peer

	mu        sync.Mutex
	state     State
	remoteSet bool
	pending   []webrtc.ICECandidateInit
}

func newSession(key Key, peer Peer) *Session {
	s := &Session{key: key, peer: peer, state: StateIdle}
	peer.OnConnected(func() {
		s.mu.Lock()
		if s.state != StateClosed {
			s.state = StateConnected
		}
		s.mu.Unlock()
		log.Info().Str("module", "call.session").Str("room", string(key.Room)).Str("peer", string(key.Peer)).Msg("connected")
	})
	return s
}

func (s *Session) Key() Key { return s.key }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// StartOffer produces the local offer and moves to Offering. Used by
// the initiating side only.
func (s *Session) StartOffer() (webrtc.SessionDescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	offer, err := s.peer.CreateOffer()
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	s.state = StateOffering
	return offer, nil
}

// HandleOffer applies a remote offer and produces the answer. Buffered
// candidates become applicable once the remote description is set.
func (s *Session) HandleOffer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateAnswering
	answer, err := s.peer.ApplyOfferAndCreateAnswer(offer)
	if err != nil {
		return nil, err
	}
	s.remoteSet = true
	s.flushLocked()
	s.state = StateNegotiating
	return answer, nil
}

// HandleAnswer applies the remote answer to our outstanding offer.
func (s *Session) HandleAnswer(answer webrtc.SessionDescription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.peer.AcceptAnswer(answer); err != nil {
		return err
	}
	s.remoteSet = true
	s.flushLocked()
	s.state = StateNegotiating
	return nil
}

// HandleCandidate applies a remote connectivity candidate, or buffers it
// when the remote description is not set yet.
func (s *Session) HandleCandidate(ci webrtc.ICECandidateInit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return nil
	}
	if !s.remoteSet {
		s.pending = append(s.pending, ci)
		log.Debug().Str("module", "call.session").Str("peer", string(s.key.Peer)).Int("buffered", len(s.pending)).Msg("candidate buffered")
		return nil
	}
	return s.peer.AddICECandidate(ci)
}

func (s *Session) flushLocked() {
	for _, ci := range s.pending {
		if err := s.peer.AddICECandidate(ci); err != nil {
			log.Debug().Err(err).Str("module", "call.session").Str("peer", string(s.key.Peer)).Msg("buffered candidate rejected")
		}
	}
	s.pending = nil
}

// Close releases the local connection and discards buffered candidates.
// Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	s.pending = nil
	s.mu.Unlock()
	s.peer.Close()
	log.Info().Str("module", "call.session").Str("room", string(s.key.Room)).Str("peer", string(s.key.Peer)).Msg("closed")
}
