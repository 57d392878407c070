// Package core owns the canonical session state and the interfaces through
// which the surrounding application observes and mutates it.
package core

import "github.com/CosmosZhu/eEducation/internal/domain"

// ConnectionState tracks transport membership, not media health.
type ConnectionState struct {
	SignalJoined bool
	MediaJoined  bool
	MemberCount  int
}

// MediaDeviceConfig mirrors the locally selected capture/playback devices.
type MediaDeviceConfig struct {
	MicrophoneID  string
	SpeakerID     string
	CameraID      string
	SpeakerVolume int
	Camera        int
	Microphone    int
	Speaker       int
}

// Tokens carries the credentials needed to resume a session.
type Tokens struct {
	AppID       string
	SignalToken string
	MediaToken  string
}

// Session is the whole client-side room state. It is exclusively owned by
// the Store and always replaced wholesale; a snapshot handed to an observer
// is never mutated afterwards.
type Session struct {
	Self        domain.User
	Course      domain.Course
	Members     map[domain.UID]domain.User
	CoVideo     CoVideoSlot
	Messages    []domain.ChatMessage
	MediaDevice MediaDeviceConfig
	Connection  ConnectionState
	Tokens      Tokens
	HomePage    string
	Language    string
}

func defaultSession() Session {
	return Session{
		Self: domain.User{
			Audio: true,
			Video: true,
			Chat:  true,
		},
		Members:     make(map[domain.UID]domain.User),
		MediaDevice: MediaDeviceConfig{SpeakerVolume: 100},
	}
}

// clone deep-copies the mutable containers so the previous snapshot stays
// valid for readers.
func (s Session) clone() Session {
	members := make(map[domain.UID]domain.User, len(s.Members))
	for uid, u := range s.Members {
		members[uid] = u
	}
	s.Members = members
	if s.Messages != nil {
		msgs := make([]domain.ChatMessage, len(s.Messages))
		copy(msgs, s.Messages)
		s.Messages = msgs
	}
	return s
}

// Member looks up a participant in the membership snapshot.
func (s Session) Member(uid domain.UID) (domain.User, bool) {
	u, ok := s.Members[uid]
	return u, ok
}

// IsTeacher reports whether uid is the room's authoritative teacher.
func (s Session) IsTeacher(uid domain.UID) bool {
	return uid != "" && uid == s.Course.TeacherID
}
