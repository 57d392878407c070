package core

import (
	"context"

	"github.com/CosmosZhu/eEducation/internal/domain"
)

// OnlineStatus summarizes channel presence for the admission check.
type OnlineStatus struct {
	TeacherPresent bool
	TotalCount     int
}

// Connection change reasons surfaced by the signaling transport.
const (
	ReasonLoginFailure = "LOGIN_FAILURE"
	ReasonRemoteLogin  = "REMOTE_LOGIN"
	StateAborted       = "ABORTED"
)

// Event is the tagged union of everything the signaling transport can
// deliver. Each variant carries its full payload; handlers switch on the
// concrete type.
type Event interface{ isEvent() }

type ConnectionStateChanged struct {
	NewState string
	Reason   string
}

type PeerMessage struct {
	Cmd    domain.Command
	PeerID domain.UID
}

type AttributesUpdated struct {
	Snapshot domain.ChannelSnapshot
}

type MemberCountUpdated struct {
	Count int
}

type ChannelMessage struct {
	Sender  domain.UID
	Payload domain.ChatPayload
}

func (ConnectionStateChanged) isEvent() {}
func (PeerMessage) isEvent()            {}
func (AttributesUpdated) isEvent()      {}
func (MemberCountUpdated) isEvent()     {}
func (ChannelMessage) isEvent()         {}

// SignalClient is the messaging transport boundary. Implementations own the
// wire; the application never sees transport frames, only Events.
type SignalClient interface {
	Login(ctx context.Context, appID string, uid domain.UID, token string) error
	Logout(ctx context.Context) error
	LoggedIn() bool
	Join(ctx context.Context, channel domain.ChannelID) error
	// Exit leaves the channel and logs out; safe to call when not joined.
	Exit(ctx context.Context) error

	SendPeerMessage(ctx context.Context, to domain.UID, cmd domain.Command) error
	SendChannelMessage(ctx context.Context, p domain.ChatPayload) error

	ChannelMemberCount(ctx context.Context, channels []domain.ChannelID) (map[domain.ChannelID]int, error)
	ChannelAttributes(ctx context.Context, channel domain.ChannelID) (domain.ChannelSnapshot, error)
	QueryOnlineStatus(ctx context.Context, accounts []domain.UserAttrs) (OnlineStatus, error)
	UpdateChannelAttrs(ctx context.Context, channel domain.ChannelID, key string, attrs domain.UserAttrs) error

	// Events yields transport events until the client closes. The channel is
	// drained by a single dispatch goroutine.
	Events() <-chan Event
}

// MediaClient is the audio/video transport boundary; this module only ever
// tears it down.
type MediaClient interface {
	Exit(ctx context.Context) error
}

// RoomRecord is the persisted snapshot used to resume a session.
type RoomRecord struct {
	Self        domain.User       `json:"self"`
	Course      domain.Course     `json:"course"`
	MediaDevice MediaDeviceConfig `json:"media_device"`
	Tokens      Tokens            `json:"tokens"`
	HomePage    string            `json:"home_page"`
}

// SnapshotStorage persists the resume record and the UI language under two
// fixed keys; Clear removes both.
type SnapshotStorage interface {
	SaveRoom(rec RoomRecord) error
	LoadRoom() (RoomRecord, bool, error)
	SaveLanguage(lang string) error
	LoadLanguage() (string, bool, error)
	Clear() error
}

// Notice kinds mirror the UI toast categories.
const (
	NoticeToast   = "toast"
	NoticeNotice  = "notice"
	NoticeCoVideo = "co-video"
)

type Notice struct {
	Kind string
	Text string
}

// Notifier receives user-facing notices. The store never decides messaging;
// callers raise notices explicitly.
type Notifier interface {
	Notify(Notice)
}

// NopNotifier drops every notice; useful for tests and headless runs.
type NopNotifier struct{}

func (NopNotifier) Notify(Notice) {}
