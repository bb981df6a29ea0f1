package call

import (
	"errors"
	"sync"
	"testing"

	"github.com/pion/webrtc/v4"
)

// mockPeer records calls for verification. AddICECandidate fails until
// a remote description is applied, like a real peer connection.
type mockPeer struct {
	mu           sync.Mutex
	remoteSet    bool
	candidates   []webrtc.ICECandidateInit
	attached     []webrtc.TrackLocal
	replaced     webrtc.TrackLocal
	replaceCalls int
	closed       bool
	onICE        func(webrtc.ICECandidateInit)
	onTrack      func(*webrtc.TrackRemote)
	onConnected  func()
}

func (m *mockPeer) CreateOffer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 mock-offer"}, nil
}

func (m *mockPeer) ApplyOfferAndCreateAnswer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	m.mu.Lock()
	m.remoteSet = true
	m.mu.Unlock()
	return &webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 mock-answer"}, nil
}

func (m *mockPeer) AcceptAnswer(answer webrtc.SessionDescription) error {
	m.mu.Lock()
	m.remoteSet = true
	m.mu.Unlock()
	return nil
}

func (m *mockPeer) AddICECandidate(ci webrtc.ICECandidateInit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.remoteSet {
		return errors.New("no remote description")
	}
	m.candidates = append(m.candidates, ci)
	return nil
}

func (m *mockPeer) AttachTrack(track webrtc.TrackLocal) error {
	m.mu.Lock()
	m.attached = append(m.attached, track)
	m.mu.Unlock()
	return nil
}

func (m *mockPeer) ReplaceVideoTrack(track webrtc.TrackLocal) error {
	m.mu.Lock()
	m.replaced = track
	m.replaceCalls++
	m.mu.Unlock()
	return nil
}

func (m *mockPeer) OnICECandidate(fn func(webrtc.ICECandidateInit)) { m.onICE = fn }
func (m *mockPeer) OnTrack(fn func(*webrtc.TrackRemote))           { m.onTrack = fn }
func (m *mockPeer) OnConnected(fn func())                          { m.onConnected = fn }

func (m *mockPeer) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}

func (m *mockPeer) appliedCandidates() []webrtc.ICECandidateInit {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]webrtc.ICECandidateInit, len(m.candidates))
	copy(out, m.candidates)
	return out
}

func (m *mockPeer) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func TestSessionStartOffer(t *testing.T) {
	peer := &mockPeer{}
	s := newSession(Key{Room: "R", Peer: "bob"}, peer)

	offer, err := s.StartOffer()
	if err != nil {
		t.Fatal(err)
	}
	if offer.Type != webrtc.SDPTypeOffer {
		t.Errorf("expected an offer, got %v", offer.Type)
	}
	if s.State() != StateOffering {
		t.Errorf("expected offering, got %s", s.State())
	}
}

func TestSessionHandleOfferProducesAnswer(t *testing.T) {
	peer := &mockPeer{}
	s := newSession(Key{Peer: "alice"}, peer)

	answer, err := s.HandleOffer(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"})
	if err != nil {
		t.Fatal(err)
	}
	if answer.Type != webrtc.SDPTypeAnswer {
		t.Errorf("expected an answer, got %v", answer.Type)
	}
	if s.State() != StateNegotiating {
		t.Errorf("expected negotiating, got %s", s.State())
	}
}

func TestSessionBuffersEarlyCandidates(t *testing.T) {
	peer := &mockPeer{}
	s := newSession(Key{Peer: "bob"}, peer)

	if _, err := s.StartOffer(); err != nil {
		t.Fatal(err)
	}

	// Candidates arrive before the answer; applying them now would fail.
	early := []webrtc.ICECandidateInit{
		{Candidate: "candidate:1"},
		{Candidate: "candidate:2"},
	}
	for _, ci := range early {
		if err := s.HandleCandidate(ci); err != nil {
			t.Fatalf("early candidate must be buffered, not rejected: %v", err)
		}
	}
	if len(peer.appliedCandidates()) != 0 {
		t.Fatal("no candidate should reach the peer before the remote description")
	}

	if err := s.HandleAnswer(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0"}); err != nil {
		t.Fatal(err)
	}

	applied := peer.appliedCandidates()
	if len(applied) != 2 {
		t.Fatalf("expected both buffered candidates applied, got %d", len(applied))
	}
	if applied[0].Candidate != "candidate:1" || applied[1].Candidate != "candidate:2" {
		t.Error("buffered candidates must flush in arrival order")
	}
}

func TestSessionAppliesCandidatesDirectlyOnceRemoteSet(t *testing.T) {
	peer := &mockPeer{}
	s := newSession(Key{Peer: "bob"}, peer)

	if _, err := s.HandleOffer(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"}); err != nil {
		t.Fatal(err)
	}
	if err := s.HandleCandidate(webrtc.ICECandidateInit{Candidate: "candidate:3"}); err != nil {
		t.Fatal(err)
	}
	if len(peer.appliedCandidates()) != 1 {
		t.Error("candidate after remote description should apply immediately")
	}
}

func TestSessionCloseDiscardsBufferAndIsIdempotent(t *testing.T) {
	peer := &mockPeer{}
	s := newSession(Key{Peer: "bob"}, peer)

	if _, err := s.StartOffer(); err != nil {
		t.Fatal(err)
	}
	_ = s.HandleCandidate(webrtc.ICECandidateInit{Candidate: "candidate:1"})

	s.Close()
	s.Close()

	if !peer.isClosed() {
		t.Error("close must release the peer connection")
	}
	if s.State() != StateClosed {
		t.Errorf("expected closed, got %s", s.State())
	}
	// A candidate arriving after close is dropped quietly.
	if err := s.HandleCandidate(webrtc.ICECandidateInit{Candidate: "late"}); err != nil {
		t.Errorf("candidate after close must be a no-op, got %v", err)
	}
}

func TestSessionConnectedCallback(t *testing.T) {
	peer := &mockPeer{}
	s := newSession(Key{Peer: "bob"}, peer)

	if _, err := s.StartOffer(); err != nil {
		t.Fatal(err)
	}
	peer.onConnected()

	if s.State() != StateConnected {
		t.Errorf("expected connected, got %s", s.State())
	}
}
