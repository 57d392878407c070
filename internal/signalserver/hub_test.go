package signalserver

import (
	"testing"

	"github.com/CosmosZhu/eEducation/internal/domain"
)

func newTestClient() *client {
	return &client{send: make(chan []byte, sendBuffer)}
}

func TestHubBindReturnsPreviousSession(t *testing.T) {
	t.Parallel()
	h := NewHub()
	first := newTestClient()
	if prev := h.bind("5", first); prev != nil {
		t.Fatalf("fresh bind returned previous %v", prev)
	}
	if !h.online("5") {
		t.Fatal("bound uid not online")
	}

	second := newTestClient()
	if prev := h.bind("5", second); prev != first {
		t.Error("rebind did not return the evicted session")
	}
	if c, _ := h.lookup("5"); c != second {
		t.Error("lookup does not resolve to the new session")
	}
}

func TestHubUnbindOnlyRemovesOwnBinding(t *testing.T) {
	t.Parallel()
	h := NewHub()
	first := newTestClient()
	h.bind("5", first)
	second := newTestClient()
	h.bind("5", second)

	// The evicted session disconnecting must not unbind the new one.
	h.unbind(first)
	if !h.online("5") {
		t.Fatal("stale unbind removed the live session")
	}
	h.unbind(second)
	if h.online("5") {
		t.Error("uid still online after unbind")
	}
}

func TestHubJoinLeaveCounts(t *testing.T) {
	t.Parallel()
	h := NewHub()
	a := newTestClient()
	h.bind("1", a)
	b := newTestClient()
	h.bind("5", b)

	if n := h.join("room-1", a); n != 1 {
		t.Errorf("first join count=%d", n)
	}
	if n := h.join("room-1", b); n != 2 {
		t.Errorf("second join count=%d", n)
	}
	if n := h.memberCount("room-1"); n != 2 {
		t.Errorf("memberCount=%d", n)
	}
	if n := h.memberCount("room-9"); n != 0 {
		t.Errorf("unknown channel count=%d", n)
	}

	id, n, ok := h.leave(a)
	if !ok || id != "room-1" || n != 1 {
		t.Errorf("leave: id=%q n=%d ok=%v", id, n, ok)
	}
	if _, _, ok := h.leave(a); ok {
		t.Error("second leave reported ok")
	}
	if len(h.membersOf("room-1")) != 1 {
		t.Errorf("membersOf=%d", len(h.membersOf("room-1")))
	}
}

func TestHubSnapshotDerivesRoomFromTeacherRecord(t *testing.T) {
	t.Parallel()
	h := NewHub()

	snap := h.channelSnapshot("room-1")
	if snap.Teacher != nil || len(snap.Accounts) != 0 {
		t.Fatalf("unknown channel snapshot %+v", snap)
	}

	h.setAttrs("room-1", "5", domain.UserAttrs{UID: "5", Account: "li-lei", Role: "student", Video: 1})
	snap = h.setAttrs("room-1", domain.TeacherKey, domain.UserAttrs{
		UID: "1", Account: "ms-chen", Role: "teacher",
		BoardID: "board-1", LinkID: 5, MuteChat: 1, ClassState: 1,
	})

	if len(snap.Accounts) != 2 {
		t.Fatalf("accounts=%d", len(snap.Accounts))
	}
	if snap.Teacher == nil || snap.Teacher.UID != "1" {
		t.Fatalf("teacher %+v", snap.Teacher)
	}
	room := snap.Room
	if room.TeacherID != "1" || room.BoardID != "board-1" || room.LinkID != 5 {
		t.Errorf("room %+v", room)
	}
	if room.MuteChat != 1 || room.ClassState != 1 {
		t.Errorf("room flags %+v", room)
	}
}

func TestHubSetAttrsReplacesRecord(t *testing.T) {
	t.Parallel()
	h := NewHub()
	h.setAttrs("room-1", "5", domain.UserAttrs{UID: "5", Audio: 1})
	snap := h.setAttrs("room-1", "5", domain.UserAttrs{UID: "5", Audio: 0})

	if len(snap.Accounts) != 1 {
		t.Fatalf("accounts=%d, record duplicated", len(snap.Accounts))
	}
	if snap.Accounts[0].Audio != 0 {
		t.Error("record not replaced")
	}
}

func TestHubChannelCounts(t *testing.T) {
	t.Parallel()
	h := NewHub()
	a := newTestClient()
	h.bind("1", a)
	h.join("room-1", a)
	b := newTestClient()
	h.bind("5", b)
	h.join("room-2", b)

	counts := h.ChannelCounts()
	if counts["room-1"] != 1 || counts["room-2"] != 1 {
		t.Errorf("counts %v", counts)
	}
}
