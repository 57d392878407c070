package app

import (
	"context"
	"sync"

	"github.com/CosmosZhu/eEducation/internal/core"
	"github.com/CosmosZhu/eEducation/internal/domain"
)

// fakeSignal records every transport interaction and serves canned query
// results; error fields fail the matching call.
type fakeSignal struct {
	mu sync.Mutex

	loggedIn bool
	joined   domain.ChannelID

	loginErr  error
	joinErr   error
	exitErr   error
	updateErr error

	logoutCalls int
	exitCalls   int

	counts   map[domain.ChannelID]int
	snapshot domain.ChannelSnapshot
	status   core.OnlineStatus

	peerMsgs   []sentPeerMsg
	chanMsgs   []domain.ChatPayload
	attrWrites []attrWrite

	events chan core.Event
}

type sentPeerMsg struct {
	To  domain.UID
	Cmd domain.Command
}

type attrWrite struct {
	Channel domain.ChannelID
	Key     string
	Attrs   domain.UserAttrs
}

func newFakeSignal() *fakeSignal {
	return &fakeSignal{
		counts: make(map[domain.ChannelID]int),
		events: make(chan core.Event, 16),
	}
}

func (f *fakeSignal) Login(ctx context.Context, appID string, uid domain.UID, token string) error {
	if f.loginErr != nil {
		return f.loginErr
	}
	f.mu.Lock()
	f.loggedIn = true
	f.mu.Unlock()
	return nil
}

func (f *fakeSignal) Logout(ctx context.Context) error {
	f.mu.Lock()
	f.logoutCalls++
	f.loggedIn = false
	f.mu.Unlock()
	return nil
}

func (f *fakeSignal) LoggedIn() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loggedIn
}

func (f *fakeSignal) Join(ctx context.Context, channel domain.ChannelID) error {
	if f.joinErr != nil {
		return f.joinErr
	}
	f.mu.Lock()
	f.joined = channel
	f.mu.Unlock()
	return nil
}

func (f *fakeSignal) Exit(ctx context.Context) error {
	f.mu.Lock()
	f.exitCalls++
	f.joined = ""
	f.loggedIn = false
	f.mu.Unlock()
	return f.exitErr
}

func (f *fakeSignal) SendPeerMessage(ctx context.Context, to domain.UID, cmd domain.Command) error {
	f.mu.Lock()
	f.peerMsgs = append(f.peerMsgs, sentPeerMsg{To: to, Cmd: cmd})
	f.mu.Unlock()
	return nil
}

func (f *fakeSignal) SendChannelMessage(ctx context.Context, p domain.ChatPayload) error {
	f.mu.Lock()
	f.chanMsgs = append(f.chanMsgs, p)
	f.mu.Unlock()
	return nil
}

func (f *fakeSignal) ChannelMemberCount(ctx context.Context, channels []domain.ChannelID) (map[domain.ChannelID]int, error) {
	out := make(map[domain.ChannelID]int, len(channels))
	for _, ch := range channels {
		out[ch] = f.counts[ch]
	}
	return out, nil
}

func (f *fakeSignal) ChannelAttributes(ctx context.Context, channel domain.ChannelID) (domain.ChannelSnapshot, error) {
	return f.snapshot, nil
}

func (f *fakeSignal) QueryOnlineStatus(ctx context.Context, accounts []domain.UserAttrs) (core.OnlineStatus, error) {
	return f.status, nil
}

func (f *fakeSignal) UpdateChannelAttrs(ctx context.Context, channel domain.ChannelID, key string, attrs domain.UserAttrs) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.mu.Lock()
	f.attrWrites = append(f.attrWrites, attrWrite{Channel: channel, Key: key, Attrs: attrs})
	f.mu.Unlock()
	return nil
}

func (f *fakeSignal) Events() <-chan core.Event { return f.events }

func (f *fakeSignal) lastAttrWrite() (attrWrite, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.attrWrites) == 0 {
		return attrWrite{}, false
	}
	return f.attrWrites[len(f.attrWrites)-1], true
}

// fakeStorage is an in-memory core.SnapshotStorage.
type fakeStorage struct {
	mu       sync.Mutex
	room     *core.RoomRecord
	language *string
	clearErr error
	saves    int
	clears   int
}

func (f *fakeStorage) SaveRoom(rec core.RoomRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.room = &rec
	f.saves++
	return nil
}

func (f *fakeStorage) LoadRoom() (core.RoomRecord, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.room == nil {
		return core.RoomRecord{}, false, nil
	}
	return *f.room, true, nil
}

func (f *fakeStorage) SaveLanguage(lang string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.language = &lang
	return nil
}

func (f *fakeStorage) LoadLanguage() (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.language == nil {
		return "", false, nil
	}
	return *f.language, true, nil
}

func (f *fakeStorage) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	if f.clearErr != nil {
		return f.clearErr
	}
	f.room = nil
	f.language = nil
	return nil
}

// recordingNotifier captures raised notices.
type recordingNotifier struct {
	mu      sync.Mutex
	notices []core.Notice
}

func (n *recordingNotifier) Notify(notice core.Notice) {
	n.mu.Lock()
	n.notices = append(n.notices, notice)
	n.mu.Unlock()
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.notices)
}

// seedClassroom installs a teacher, two students and a course into a fresh
// store, with self selected by uid.
func seedClassroom(store *core.Store, selfUID domain.UID) {
	teacher := domain.User{
		UID: "1", Account: "ms-chen", Role: domain.RoleTeacher,
		Audio: true, Video: true, Chat: true, GrantBoard: true, BoardID: "board-1",
	}
	s5 := domain.User{
		UID: "5", Account: "li-lei", Role: domain.RoleStudent,
		Audio: true, Video: true, Chat: true,
	}
	s7 := domain.User{
		UID: "7", Account: "han-mei", Role: domain.RoleStudent,
		Audio: true, Video: true, Chat: true,
	}
	members := map[domain.UID]domain.User{"1": teacher, "5": s5, "7": s7}

	store.Apply(func(s *core.Session) {
		s.Members = members
		s.Course = domain.Course{
			ChannelID: "room-1",
			Name:      "algebra",
			Type:      domain.RoomSmallClass,
			TeacherID: "1",
			BoardID:   "board-1",
		}
		s.Self = members[selfUID]
		s.Connection.SignalJoined = true
	})
}
