package call

import (
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/danish78691223/chatapp/internal/domain"
)

// Signaler sends signaling messages on behalf of the orchestrator. The
// websocket Client implements it.
type Signaler interface {
	SendOffer(room domain.RoomID, to domain.Identity, sdp webrtc.SessionDescription) error
	SendAnswer(room domain.RoomID, to domain.Identity, sdp webrtc.SessionDescription) error
	SendCandidate(room domain.RoomID, to domain.Identity, ci webrtc.ICECandidateInit) error
	SendEnd(to domain.Identity) error
	JoinRoom(room domain.RoomID) error
	LeaveRoom(room domain.RoomID) error
}

// MediaSource provides the local tracks attached to every session.
type MediaSource interface {
	Tracks() []webrtc.TrackLocal
	Close()
}

// MediaFactory acquires the capture source lazily, on the first session
// of a call. The source is released when the last session closes.
type MediaFactory func() (MediaSource, error)

// RemoteTrackFunc receives remote media, always tagged with the session
// key it arrived on so the presentation layer renders one view per
// remote participant; tracks are never merged across participants.
type RemoteTrackFunc func(key Key, track *webrtc.TrackRemote)

// Orchestrator owns every peer session of this client: one per remote
// participant per call, created on join/offer, destroyed on
// leave/disconnect/end. It is the only writer of the session map.
type Orchestrator struct {
	self     domain.Identity
	sig      Signaler
	newPeer  PeerFactory
	newMedia MediaFactory
	onRemote RemoteTrackFunc

	mu       sync.Mutex
	sessions map[Key]*Session
	media    MediaSource
}

func NewOrchestrator(self domain.Identity, sig Signaler, peers PeerFactory, media MediaFactory, onRemote RemoteTrackFunc) *Orchestrator {
	return &Orchestrator{
		self:     self,
		sig:      sig,
		newPeer:  peers,
		newMedia: media,
		onRemote: onRemote,
		sessions: make(map[Key]*Session),
	}
}

func (o *Orchestrator) Self() domain.Identity { return o.self }

// JoinRoom asks the server for the current member set; negotiation
// starts when room-members arrives.
func (o *Orchestrator) JoinRoom(room domain.RoomID) error {
	return o.sig.JoinRoom(room)
}

// LeaveRoom cancels every in-flight negotiation in the room and closes
// its sessions immediately. Remaining members keep their own mesh.
func (o *Orchestrator) LeaveRoom(room domain.RoomID) error {
	err := o.sig.LeaveRoom(room)
	o.mu.Lock()
	var victims []*Session
	for key, s := range o.sessions {
		if key.Room == room {
			victims = append(victims, s)
			delete(o.sessions, key)
		}
	}
	o.releaseMediaLocked()
	o.mu.Unlock()
	for _, s := range victims {
		s.Close()
	}
	return err
}

// StartCall initiates a direct 1:1 call toward the given identity.
func (o *Orchestrator) StartCall(to domain.Identity) {
	go o.offerTo(Key{Peer: to})
}

// EndCall signals the remote side and releases the local half. The
// remote, on receiving call-end, is forced to Closed as well.
func (o *Orchestrator) EndCall(to domain.Identity) {
	if err := o.sig.SendEnd(to); err != nil {
		log.Debug().Err(err).Str("module", "call.orchestrator").Msg("send end")
	}
	o.closeSession(Key{Peer: to})
}

// HandleRoomMembers starts one pairwise negotiation toward each member
// that was already in the room. All sessions are initiated by this
// side, the joiner: existing members only ever respond, which is what
// keeps a mesh join free of colliding offers. Each negotiation runs in
// its own goroutine so a slow peer never delays the others.
func (o *Orchestrator) HandleRoomMembers(room domain.RoomID, members []domain.Identity) {
	for _, m := range members {
		if m == o.self {
			continue
		}
		go o.offerTo(Key{Room: room, Peer: m})
	}
}

// HandleMemberJoined is informational: the joiner will offer to us.
func (o *Orchestrator) HandleMemberJoined(room domain.RoomID, who domain.Identity) {
	log.Debug().Str("module", "call.orchestrator").Str("room", string(room)).Str("who", string(who)).Msg("member joined, awaiting their offer")
}

// HandleMemberLeft closes the one session toward the departed member.
// Sessions with everyone else are untouched; the mesh is not
// renegotiated on leave.
func (o *Orchestrator) HandleMemberLeft(room domain.RoomID, who domain.Identity) {
	o.closeSession(Key{Room: room, Peer: who})
}

// HandleOffer answers a remote offer. If both sides offered to each
// other for the same key (possible when two clients join an empty room
// concurrently), the lexicographically smaller identity's offer wins:
// the smaller side ignores the incoming offer and waits for its answer,
// the larger side abandons its own attempt and answers instead.
func (o *Orchestrator) HandleOffer(room domain.RoomID, from domain.Identity, sdp webrtc.SessionDescription) {
	key := Key{Room: room, Peer: from}

	o.mu.Lock()
	if existing, ok := o.sessions[key]; ok && existing.State() == StateOffering {
		if o.self < from {
			o.mu.Unlock()
			log.Debug().Str("module", "call.orchestrator").Str("peer", string(from)).Msg("offer glare, local offer wins")
			return
		}
		delete(o.sessions, key)
		o.mu.Unlock()
		existing.Close()
		log.Debug().Str("module", "call.orchestrator").Str("peer", string(from)).Msg("offer glare, yielding to remote offer")
		o.mu.Lock()
	}
	s, err := o.ensureSessionLocked(key)
	o.mu.Unlock()
	if err != nil {
		log.Error().Err(err).Str("module", "call.orchestrator").Str("peer", string(from)).Msg("create session for offer")
		return
	}

	answer, err := s.HandleOffer(sdp)
	if err != nil {
		log.Error().Err(err).Str("module", "call.orchestrator").Str("peer", string(from)).Msg("apply offer")
		o.closeSession(key)
		return
	}
	if err := o.sig.SendAnswer(room, from, *answer); err != nil {
		log.Debug().Err(err).Str("module", "call.orchestrator").Msg("send answer")
	}
}

// HandleAnswer completes our outstanding offer toward from.
func (o *Orchestrator) HandleAnswer(room domain.RoomID, from domain.Identity, sdp webrtc.SessionDescription) {
	s, ok := o.lookup(Key{Room: room, Peer: from})
	if !ok {
		log.Debug().Str("module", "call.orchestrator").Str("peer", string(from)).Msg("answer for unknown session, ignored")
		return
	}
	if err := s.HandleAnswer(sdp); err != nil {
		log.Error().Err(err).Str("module", "call.orchestrator").Str("peer", string(from)).Msg("apply answer")
	}
}

// HandleCandidate routes a remote candidate to its session, which
// buffers it if the offer/answer exchange has not caught up yet.
func (o *Orchestrator) HandleCandidate(room domain.RoomID, from domain.Identity, ci webrtc.ICECandidateInit) {
	s, ok := o.lookup(Key{Room: room, Peer: from})
	if !ok {
		log.Debug().Str("module", "call.orchestrator").Str("peer", string(from)).Msg("candidate for unknown session, ignored")
		return
	}
	if err := s.HandleCandidate(ci); err != nil {
		log.Debug().Err(err).Str("module", "call.orchestrator").Str("peer", string(from)).Msg("add candidate")
	}
}

// HandleCallEnd forces the direct session with from to Closed and
// releases its resources.
func (o *Orchestrator) HandleCallEnd(from domain.Identity) {
	o.closeSession(Key{Peer: from})
}

// ReplaceVideo swaps the outgoing video track on every live session of
// this client, e.g. to substitute a screen capture mid-call. Purely
// local: no session is renegotiated from scratch.
func (o *Orchestrator) ReplaceVideo(track webrtc.TrackLocal) {
	o.mu.Lock()
	peers := make([]Peer, 0, len(o.sessions))
	for _, s := range o.sessions {
		peers = append(peers, s.peer)
	}
	o.mu.Unlock()
	for _, p := range peers {
		if err := p.ReplaceVideoTrack(track); err != nil {
			log.Debug().Err(err).Str("module", "call.orchestrator").Msg("replace video track")
		}
	}
}

// SessionState reports the negotiation state toward one peer, mainly
// for diagnostics and tests.
func (o *Orchestrator) SessionState(key Key) (State, bool) {
	s, ok := o.lookup(key)
	if !ok {
		return StateClosed, false
	}
	return s.State(), true
}

// Close tears down every session and releases the capture source.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	victims := make([]*Session, 0, len(o.sessions))
	for key, s := range o.sessions {
		victims = append(victims, s)
		delete(o.sessions, key)
	}
	o.releaseMediaLocked()
	o.mu.Unlock()
	for _, s := range victims {
		s.Close()
	}
}

func (o *Orchestrator) offerTo(key Key) {
	o.mu.Lock()
	s, err := o.ensureSessionLocked(key)
	o.mu.Unlock()
	if err != nil {
		log.Error().Err(err).Str("module", "call.orchestrator").Str("peer", string(key.Peer)).Msg("create session")
		return
	}
	offer, err := s.StartOffer()
	if err != nil {
		log.Error().Err(err).Str("module", "call.orchestrator").Str("peer", string(key.Peer)).Msg("create offer")
		o.closeSession(key)
		return
	}
	if err := o.sig.SendOffer(key.Room, key.Peer, offer); err != nil {
		log.Debug().Err(err).Str("module", "call.orchestrator").Msg("send offer")
	}
}

// ensureSessionLocked returns the session for key, creating it with
// local tracks attached and candidate/track plumbing wired. Caller
// holds o.mu.
func (o *Orchestrator) ensureSessionLocked(key Key) (*Session, error) {
	if s, ok := o.sessions[key]; ok {
		return s, nil
	}
	if o.media == nil {
		media, err := o.newMedia()
		if err != nil {
			return nil, fmt.Errorf("acquire media source: %w", err)
		}
		o.media = media
	}
	peer, err := o.newPeer()
	if err != nil {
		return nil, fmt.Errorf("create peer: %w", err)
	}
	for _, track := range o.media.Tracks() {
		if err := peer.AttachTrack(track); err != nil {
			peer.Close()
			return nil, fmt.Errorf("attach local track: %w", err)
		}
	}
	peer.OnICECandidate(func(ci webrtc.ICECandidateInit) {
		if err := o.sig.SendCandidate(key.Room, key.Peer, ci); err != nil {
			log.Debug().Err(err).Str("module", "call.orchestrator").Msg("send candidate")
		}
	})
	peer.OnTrack(func(track *webrtc.TrackRemote) {
		if o.onRemote != nil {
			o.onRemote(key, track)
		}
	})
	s := newSession(key, peer)
	o.sessions[key] = s
	return s, nil
}

func (o *Orchestrator) lookup(key Key) (*Session, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.sessions[key]
	return s, ok
}

func (o *Orchestrator) closeSession(key Key) {
	o.mu.Lock()
	s, ok := o.sessions[key]
	if ok {
		delete(o.sessions, key)
	}
	o.releaseMediaLocked()
	o.mu.Unlock()
	if ok {
		s.Close()
	}
}

// releaseMediaLocked drops the capture source once the last session is
// gone. Caller holds o.mu.
func (o *Orchestrator) releaseMediaLocked() {
	if len(o.sessions) == 0 && o.media != nil {
		o.media.Close()
		o.media = nil
	}
}
