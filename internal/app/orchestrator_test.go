package app

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/danish78691223/chatapp/internal/core"
	"github.com/danish78691223/chatapp/internal/domain"
)

// fakeConn records delivered envelopes for verification.
type fakeConn struct {
	id string

	mu       sync.Mutex
	received []domain.Envelope
	failSend bool
}

func newFakeConn(id string) *fakeConn { return &fakeConn{id: id} }

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend {
		return core.ErrBackpressure
	}
	var env domain.Envelope
	if err := json.Unmarshal(fr, &env); err != nil {
		return errors.New("bad frame")
	}
	f.received = append(f.received, env)
	return nil
}

func (f *fakeConn) Close() {}

func (f *fakeConn) envelopes() []domain.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Envelope, len(f.received))
	copy(out, f.received)
	return out
}

func (f *fakeConn) countKind(kind domain.Kind) int {
	n := 0
	for _, env := range f.envelopes() {
		if env.Kind == kind {
			n++
		}
	}
	return n
}

func register(o *Orchestrator, id domain.Identity) *fakeConn {
	conn := newFakeConn(string(id) + "-conn")
	o.Register(id, conn)
	return conn
}

func TestRelayForwardsToRegisteredTarget(t *testing.T) {
	o := NewOrchestrator()
	target := register(o, "bob")

	o.Forward(domain.Envelope{
		Kind:    domain.KindCallInitiate,
		From:    "alice",
		To:      "bob",
		Payload: json.RawMessage(`{"type":"offer","sdp":"v=0"}`),
	})

	got := target.envelopes()
	if len(got) != 1 {
		t.Fatalf("expected one delivered envelope, got %d", len(got))
	}
	if got[0].Kind != domain.KindCallInitiate || got[0].From != "alice" {
		t.Errorf("envelope not forwarded verbatim: %+v", got[0])
	}
}

func TestRelayDropsSilentlyWhenTargetAbsent(t *testing.T) {
	o := NewOrchestrator()
	sender := register(o, "alice")

	// Z never registered. Nothing is delivered and the sender gets no
	// error event back.
	o.Forward(domain.Envelope{Kind: domain.KindCallInitiate, From: "alice", To: "zed"})

	if len(sender.envelopes()) != 0 {
		t.Errorf("sender must receive nothing on a dropped relay, got %v", sender.envelopes())
	}
}

func TestRoomJoinBroadcastsToPriorMembersOnly(t *testing.T) {
	o := NewOrchestrator()
	a := register(o, "a")
	b := register(o, "b")

	if got := o.RoomJoin("R", "a"); len(got) != 0 {
		t.Fatalf("first join should see empty room, got %v", got)
	}
	existing := o.RoomJoin("R", "b")
	if len(existing) != 1 || existing[0] != domain.Identity("a") {
		t.Fatalf("second join should see [a], got %v", existing)
	}

	if a.countKind(domain.KindRoomMemberJoined) != 1 {
		t.Error("a should be told that b joined")
	}
	if b.countKind(domain.KindRoomMemberJoined) != 0 {
		t.Error("the joiner must not be notified about itself")
	}
}

func TestMeshJoinScenario(t *testing.T) {
	o := NewOrchestrator()
	register(o, "a")
	register(o, "b")
	register(o, "c")

	if got := o.RoomJoin("R", "a"); len(got) != 0 {
		t.Fatalf("a joins empty room, got %v", got)
	}
	if got := o.RoomJoin("R", "b"); len(got) != 1 || got[0] != domain.Identity("a") {
		t.Fatalf("b should see [a], got %v", got)
	}
	got := o.RoomJoin("R", "c")
	if len(got) != 2 {
		t.Fatalf("c should see two members, got %v", got)
	}

	members := o.Rooms.Members("R", "")
	if len(members) != 3 {
		t.Errorf("member set should be {a,b,c}, got %v", members)
	}
}

func TestRoomLeaveBroadcastsMemberLeft(t *testing.T) {
	o := NewOrchestrator()
	a := register(o, "a")
	register(o, "b")

	o.RoomJoin("R", "a")
	o.RoomJoin("R", "b")
	o.RoomLeave("R", "b")

	found := false
	for _, env := range a.envelopes() {
		if env.Kind == domain.KindRoomMemberLeft && env.From == "b" && env.Room == "R" {
			found = true
		}
	}
	if !found {
		t.Error("a should receive room-member-left for b")
	}
	if o.Rooms.Exists("R") && len(o.Rooms.Members("R", "")) != 1 {
		t.Error("room should hold only a after b left")
	}
}

func TestRoomLeaveNonMemberSendsNothing(t *testing.T) {
	o := NewOrchestrator()
	a := register(o, "a")
	o.RoomJoin("R", "a")

	o.RoomLeave("R", "ghost")

	if a.countKind(domain.KindRoomMemberLeft) != 0 {
		t.Error("leaving non-member must not broadcast")
	}
}

func TestDisconnectCleanup(t *testing.T) {
	o := NewOrchestrator()
	a := register(o, "a")
	bConn := register(o, "b")
	c := register(o, "c")

	o.RoomJoin("R", "a")
	o.RoomJoin("R", "b")
	o.RoomJoin("R", "c")

	// B drops without an explicit leave.
	o.Disconnect(bConn)

	for name, conn := range map[string]*fakeConn{"a": a, "c": c} {
		found := false
		for _, env := range conn.envelopes() {
			if env.Kind == domain.KindRoomMemberLeft && env.From == "b" {
				found = true
			}
		}
		if !found {
			t.Errorf("%s should receive room-member-left for b", name)
		}
	}

	members := o.Rooms.Members("R", "")
	if len(members) != 2 {
		t.Errorf("member set should be {a,c}, got %v", members)
	}
	if _, ok := o.Presence.Lookup("b"); ok {
		t.Error("b must be unregistered after disconnect")
	}
}

func TestDisconnectOfStaleHandleLeavesStateIntact(t *testing.T) {
	o := NewOrchestrator()
	old := register(o, "b")
	register(o, "b") // reconnect replaces the handle
	o.RoomJoin("R", "b")

	o.Disconnect(old)

	if _, ok := o.Presence.Lookup("b"); !ok {
		t.Error("stale disconnect must not unregister the fresh handle")
	}
	if len(o.Rooms.Members("R", "")) != 1 {
		t.Error("stale disconnect must not evict b from its room")
	}
}

func TestBroadcastPartialFailureIsIndependent(t *testing.T) {
	o := NewOrchestrator()
	a := register(o, "a")
	b := register(o, "b")
	b.failSend = true
	register(o, "c")

	o.RoomJoin("R", "a")
	o.RoomJoin("R", "b")
	o.RoomJoin("R", "c")

	// a still hears about c even though b's connection is saturated.
	if a.countKind(domain.KindRoomMemberJoined) != 2 {
		t.Errorf("a should see both joins, got %d", a.countKind(domain.KindRoomMemberJoined))
	}
	if len(o.Rooms.Members("R", "")) != 3 {
		t.Error("membership must be unaffected by broadcast failures")
	}
}
