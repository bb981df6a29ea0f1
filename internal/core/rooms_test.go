package core

import (
	"sort"
	"sync"
	"testing"

	"github.com/danish78691223/chatapp/internal/domain"
)

func identities(ids []domain.Identity) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	sort.Strings(out)
	return out
}

func TestRoomsFirstJoinReturnsEmpty(t *testing.T) {
	rs := NewRooms()
	existing := rs.Join("R", "a")
	if len(existing) != 0 {
		t.Errorf("expected empty snapshot for first join, got %v", existing)
	}
	if !rs.Exists("R") {
		t.Error("expected room to exist after first join")
	}
}

func TestRoomsJoinReturnsPriorMembersExcludingJoiner(t *testing.T) {
	rs := NewRooms()
	rs.Join("R", "a")

	got := identities(rs.Join("R", "b"))
	if len(got) != 1 || got[0] != "a" {
		t.Fatalf("expected [a], got %v", got)
	}

	got = identities(rs.Join("R", "c"))
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("expected [a b], got %v", got)
	}
}

func TestRoomsJoinIdempotent(t *testing.T) {
	rs := NewRooms()
	rs.Join("R", "a")
	rs.Join("R", "a")

	members := rs.Members("R", "")
	if len(members) != 1 {
		t.Errorf("expected one member after duplicate join, got %v", members)
	}
}

func TestRoomsLeaveDeletesEmptyRoom(t *testing.T) {
	rs := NewRooms()
	rs.Join("R", "a")
	rs.Join("R", "b")

	if !rs.Leave("R", "a") {
		t.Error("expected leave of member to report true")
	}
	if !rs.Exists("R") {
		t.Error("room should survive while members remain")
	}

	rs.Leave("R", "b")
	if rs.Exists("R") {
		t.Error("room must be destroyed when the last member leaves")
	}
}

func TestRoomsLeaveAbsentIsNoOp(t *testing.T) {
	rs := NewRooms()
	if rs.Leave("ghost", "a") {
		t.Error("leave of unknown room should be a no-op")
	}
	rs.Join("R", "a")
	if rs.Leave("R", "b") {
		t.Error("leave of non-member should be a no-op")
	}
}

func TestRoomsSetAlgebra(t *testing.T) {
	rs := NewRooms()
	rs.Join("R", "a")
	rs.Join("R", "b")
	rs.Join("R", "c")
	rs.Leave("R", "b")

	got := identities(rs.Members("R", ""))
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Errorf("expected members {a,c}, got %v", got)
	}
}

func TestRoomsRoomsOf(t *testing.T) {
	rs := NewRooms()
	rs.Join("R1", "a")
	rs.Join("R2", "a")
	rs.Join("R2", "b")

	rooms := rs.RoomsOf("a")
	if len(rooms) != 2 {
		t.Errorf("expected a to be in two rooms, got %v", rooms)
	}
	if got := rs.RoomsOf("b"); len(got) != 1 || got[0] != domain.RoomID("R2") {
		t.Errorf("expected b only in R2, got %v", got)
	}
}

func TestRoomsConcurrentJoinLeave(t *testing.T) {
	rs := NewRooms()
	var wg sync.WaitGroup
	ids := []domain.Identity{"a", "b", "c", "d", "e", "f", "g", "h"}
	for _, id := range ids {
		wg.Add(1)
		go func(id domain.Identity) {
			defer wg.Done()
			rs.Join("R", id)
		}(id)
	}
	wg.Wait()

	if got := len(rs.Members("R", "")); got != len(ids) {
		t.Fatalf("expected %d members, got %d", len(ids), got)
	}

	for _, id := range ids {
		wg.Add(1)
		go func(id domain.Identity) {
			defer wg.Done()
			rs.Leave("R", id)
		}(id)
	}
	wg.Wait()

	if rs.Exists("R") {
		t.Error("room must be gone after everyone leaves")
	}
}
