package signal

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/CosmosZhu/eEducation/internal/config"
	"github.com/CosmosZhu/eEducation/internal/core"
	"github.com/CosmosZhu/eEducation/internal/domain"
	"github.com/CosmosZhu/eEducation/internal/protocol"
	"github.com/CosmosZhu/eEducation/internal/signalserver"
)

// startServer runs the dev signaling server on a test listener and returns
// its ws:// URL.
func startServer(t *testing.T) string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := signalserver.NewHub()
	ctl := signalserver.NewController(hub)
	router := signalserver.SetupRouter(ctx, &config.Config{Mode: "release"}, ctl)
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/signal"
}

func dialClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := Dial(context.Background(), url)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Close)
	return c
}

func waitEvent(t *testing.T, c *Client) core.Event {
	t.Helper()
	select {
	case ev, ok := <-c.Events():
		if !ok {
			t.Fatal("event stream closed")
		}
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return nil
}

func TestClientLoginJoinQueryRoundtrip(t *testing.T) {
	url := startServer(t)
	c := dialClient(t, url)
	ctx := context.Background()

	if err := c.Login(ctx, "edu-test", "1", ""); err != nil {
		t.Fatal(err)
	}
	if !c.LoggedIn() {
		t.Fatal("client does not consider itself logged in")
	}
	if err := c.Join(ctx, "room-1"); err != nil {
		t.Fatal(err)
	}

	counts, err := c.ChannelMemberCount(ctx, []domain.ChannelID{"room-1", "room-9"})
	if err != nil {
		t.Fatal(err)
	}
	if counts["room-1"] != 1 || counts["room-9"] != 0 {
		t.Errorf("counts %v", counts)
	}

	attrs := domain.User{
		UID: "1", Account: "ms-chen", Role: domain.RoleTeacher,
		Audio: true, Video: true, Chat: true, BoardID: "board-1",
	}.Attrs()
	if err := c.UpdateChannelAttrs(ctx, "room-1", domain.TeacherKey, attrs); err != nil {
		t.Fatal(err)
	}

	snap, err := c.ChannelAttributes(ctx, "room-1")
	if err != nil {
		t.Fatal(err)
	}
	if snap.Teacher == nil || snap.Teacher.Account != "ms-chen" {
		t.Fatalf("teacher record %+v", snap.Teacher)
	}
	if snap.Room.TeacherID != "1" || snap.Room.BoardID != "board-1" {
		t.Errorf("room view %+v", snap.Room)
	}

	status, err := c.QueryOnlineStatus(ctx, snap.Accounts)
	if err != nil {
		t.Fatal(err)
	}
	if !status.TeacherPresent || status.TotalCount != 1 {
		t.Errorf("status %+v", status)
	}

	if err := c.Exit(ctx); err != nil {
		t.Fatal(err)
	}
	if c.LoggedIn() {
		t.Error("still logged in after exit")
	}
}

func TestClientPeerMessageDelivery(t *testing.T) {
	url := startServer(t)
	teacher := dialClient(t, url)
	student := dialClient(t, url)
	ctx := context.Background()

	if err := teacher.Login(ctx, "edu-test", "1", ""); err != nil {
		t.Fatal(err)
	}
	if err := student.Login(ctx, "edu-test", "5", ""); err != nil {
		t.Fatal(err)
	}

	if err := student.SendPeerMessage(ctx, "1", domain.CmdApplyCoVideo); err != nil {
		t.Fatal(err)
	}

	ev := waitEvent(t, teacher)
	msg, ok := ev.(core.PeerMessage)
	if !ok {
		t.Fatalf("event %T", ev)
	}
	if msg.PeerID != "5" || msg.Cmd != domain.CmdApplyCoVideo {
		t.Errorf("peer message %+v", msg)
	}

	// Messaging an offline peer fails at the server.
	if err := student.SendPeerMessage(ctx, "99", domain.CmdApplyCoVideo); err == nil {
		t.Error("message to offline peer succeeded")
	}
}

func TestClientChannelMessageFanOut(t *testing.T) {
	url := startServer(t)
	teacher := dialClient(t, url)
	student := dialClient(t, url)
	ctx := context.Background()

	for i, c := range []*Client{teacher, student} {
		uid := domain.UID([]string{"1", "5"}[i])
		if err := c.Login(ctx, "edu-test", uid, ""); err != nil {
			t.Fatal(err)
		}
		if err := c.Join(ctx, "room-1"); err != nil {
			t.Fatal(err)
		}
	}
	// Drain the member-count pushes the joins produced.
	for {
		ev := waitEvent(t, teacher)
		if count, ok := ev.(core.MemberCountUpdated); ok && count.Count == 2 {
			break
		}
	}

	if err := student.SendChannelMessage(ctx, domain.ChatPayload{Account: "li-lei", Content: "hello"}); err != nil {
		t.Fatal(err)
	}

	for {
		ev := waitEvent(t, teacher)
		msg, ok := ev.(core.ChannelMessage)
		if !ok {
			continue
		}
		if msg.Sender != "5" || msg.Payload.Content != "hello" {
			t.Errorf("channel message %+v", msg)
		}
		return
	}
}

func TestClientAttributeUpdatePushedToMembers(t *testing.T) {
	url := startServer(t)
	teacher := dialClient(t, url)
	student := dialClient(t, url)
	ctx := context.Background()

	for i, c := range []*Client{teacher, student} {
		uid := domain.UID([]string{"1", "5"}[i])
		if err := c.Login(ctx, "edu-test", uid, ""); err != nil {
			t.Fatal(err)
		}
		if err := c.Join(ctx, "room-1"); err != nil {
			t.Fatal(err)
		}
	}

	attrs := domain.User{UID: "1", Account: "ms-chen", Role: domain.RoleTeacher, Chat: true}.Attrs()
	if err := teacher.UpdateChannelAttrs(ctx, "room-1", domain.TeacherKey, attrs); err != nil {
		t.Fatal(err)
	}

	for {
		ev := waitEvent(t, student)
		update, ok := ev.(core.AttributesUpdated)
		if !ok {
			continue
		}
		if update.Snapshot.Teacher == nil || update.Snapshot.Teacher.Account != "ms-chen" {
			t.Errorf("snapshot %+v", update.Snapshot)
		}
		return
	}
}

func TestClientRemoteLoginEvictsPreviousSession(t *testing.T) {
	url := startServer(t)
	first := dialClient(t, url)
	ctx := context.Background()
	if err := first.Login(ctx, "edu-test", "5", ""); err != nil {
		t.Fatal(err)
	}

	second := dialClient(t, url)
	if err := second.Login(ctx, "edu-test", "5", ""); err != nil {
		t.Fatal(err)
	}

	// The evicted session sees the forced-disconnect reason, or at minimum
	// its event stream closing as the server drops the connection.
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-first.Events():
			if !ok {
				return
			}
			if state, isState := ev.(core.ConnectionStateChanged); isState {
				if state.Reason != core.ReasonRemoteLogin {
					t.Errorf("reason=%q", state.Reason)
				}
				return
			}
		case <-deadline:
			t.Fatal("evicted session saw neither the event nor the disconnect")
		}
	}
}

func TestDecodeEvent(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		msgType string
		data    string
		want    core.Event
	}{
		{
			name:    "connection state",
			msgType: protocol.EvtConnectionState,
			data:    `{"type":"connection_state","state":"DISCONNECTED","reason":"REMOTE_LOGIN"}`,
			want:    core.ConnectionStateChanged{NewState: "DISCONNECTED", Reason: core.ReasonRemoteLogin},
		},
		{
			name:    "peer message",
			msgType: protocol.EvtPeerMessage,
			data:    `{"type":"peer_message","from":"5","cmd":9}`,
			want:    core.PeerMessage{PeerID: "5", Cmd: domain.CmdApplyCoVideo},
		},
		{
			name:    "member count",
			msgType: protocol.EvtMemberCount,
			data:    `{"type":"member_count_updated","count":7}`,
			want:    core.MemberCountUpdated{Count: 7},
		},
		{
			name:    "channel message",
			msgType: protocol.EvtChannelMessage,
			data:    `{"type":"channel_message_event","from":"5","payload":{"account":"li-lei","content":"hi"}}`,
			want:    core.ChannelMessage{Sender: "5", Payload: domain.ChatPayload{Account: "li-lei", Content: "hi"}},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := decodeEvent(tt.msgType, []byte(tt.data))
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}

	if _, err := decodeEvent("bogus", []byte(`{}`)); err == nil {
		t.Error("unknown frame type decoded")
	}
}
