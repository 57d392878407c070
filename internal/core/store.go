package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/CosmosZhu/eEducation/internal/domain"
)

// Observer receives every snapshot published after subscription.
type Observer func(Session)

// Store is the exclusive owner of the Session. Every named operation builds
// a fresh snapshot, replaces the current one and publishes it synchronously
// to all subscribers. Construct one per session and inject it; there is no
// package-level instance.
type Store struct {
	mu      sync.RWMutex
	state   Session
	subs    map[int]Observer
	nextSub int
}

func NewStore() *Store {
	return &Store{
		state: defaultSession(),
		subs:  make(map[int]Observer),
	}
}

// Snapshot returns a copy safe to read concurrently with later mutations.
func (st *Store) Snapshot() Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.state.clone()
}

// Subscribe registers fn for every subsequent snapshot and returns its
// unsubscribe function. Subscribing never resets state; multiple observers
// are supported.
func (st *Store) Subscribe(fn Observer) (unsubscribe func()) {
	st.mu.Lock()
	id := st.nextSub
	st.nextSub++
	st.subs[id] = fn
	st.mu.Unlock()
	return func() {
		st.mu.Lock()
		delete(st.subs, id)
		st.mu.Unlock()
	}
}

// Apply runs mutate against a clone of the current snapshot, installs the
// result and publishes it. Composite transitions that touch several fields
// go through here so observers never see a partial application.
func (st *Store) Apply(mutate func(*Session)) Session {
	st.mu.Lock()
	next := st.state.clone()
	mutate(&next)
	st.state = next
	observers := make([]Observer, 0, len(st.subs))
	for _, fn := range st.subs {
		observers = append(observers, fn)
	}
	st.mu.Unlock()

	published := next.clone()
	for _, fn := range observers {
		fn(published)
	}
	return published
}

func (st *Store) SetSelf(u domain.User) {
	st.Apply(func(s *Session) { s.Self = u })
}

func (st *Store) SetMembership(members map[domain.UID]domain.User) {
	st.Apply(func(s *Session) {
		s.Members = make(map[domain.UID]domain.User, len(members))
		for uid, u := range members {
			s.Members[uid] = u
		}
	})
}

func (st *Store) SetCourse(c domain.Course) {
	st.Apply(func(s *Session) { s.Course = c })
}

func (st *Store) SetCoVideo(slot CoVideoSlot) {
	st.Apply(func(s *Session) { s.CoVideo = slot })
}

func (st *Store) AppendMessage(m domain.ChatMessage) {
	st.Apply(func(s *Session) { s.Messages = append(s.Messages, m) })
}

func (st *Store) SetConnectionState(cs ConnectionState) {
	st.Apply(func(s *Session) { s.Connection = cs })
}

func (st *Store) SetMemberCount(n int) {
	st.Apply(func(s *Session) { s.Connection.MemberCount = n })
}

func (st *Store) UpdateMediaDevice(cfg MediaDeviceConfig) {
	st.Apply(func(s *Session) { s.MediaDevice = cfg })
}

func (st *Store) SetTokens(t Tokens) {
	st.Apply(func(s *Session) { s.Tokens = t })
}

func (st *Store) SetLanguage(lang string) {
	st.Apply(func(s *Session) { s.Language = lang })
}

// Reset restores the defaults, keeping subscribers attached.
func (st *Store) Reset() {
	log.Debug().Str("module", "core.store").Msg("reset to defaults")
	st.Apply(func(s *Session) { *s = defaultSession() })
}
