package domain

// Channel attribute records as stored by the messaging transport. Records
// are keyed per identity: the teacher writes under the reserved "teacher"
// key, everyone else under their own uid. Toggles travel as 0/1 integers.

// TeacherKey is the reserved channel-attribute key for the teacher's record.
const TeacherKey = "teacher"

// UserAttrs is one identity's full attribute record. The teacher's record
// additionally carries the room-wide fields (mute_chat, class_state and the
// shared stream/board slots double as the room configuration).
type UserAttrs struct {
	UID        string `json:"uid"`
	Account    string `json:"account"`
	Role       string `json:"role"`
	Video      int    `json:"video"`
	Audio      int    `json:"audio"`
	Chat       int    `json:"chat"`
	BoardID    string `json:"whiteboard_uid"`
	SharedID   uint32 `json:"shared_uid"`
	LinkID     uint32 `json:"link_uid"`
	LockBoard  int    `json:"lock_board"`
	GrantBoard int    `json:"grant_board"`
	MuteChat   int    `json:"mute_chat,omitempty"`
	ClassState int    `json:"class_state,omitempty"`
}

// RoomAttrs is the merged room-level view derived from the teacher record.
type RoomAttrs struct {
	TeacherID  string `json:"uid"`
	BoardID    string `json:"whiteboard_uid"`
	SharedID   uint32 `json:"shared_uid"`
	LinkID     uint32 `json:"link_uid"`
	LockBoard  int    `json:"lock_board"`
	ClassState int    `json:"class_state"`
	MuteChat   int    `json:"mute_chat"`
}

// ChannelSnapshot is a freshly fetched full view of the channel attributes:
// the teacher record (if any teacher is present), every per-identity record,
// and the merged room view.
type ChannelSnapshot struct {
	Teacher  *UserAttrs  `json:"teacher,omitempty"`
	Accounts []UserAttrs `json:"accounts"`
	Room     RoomAttrs   `json:"room"`
}

// AttrKey returns the channel-attribute key an identity writes under.
func AttrKey(uid UID, role Role) string {
	if role == RoleTeacher {
		return TeacherKey
	}
	return string(uid)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Attrs flattens a user into its wire attribute record. Room-level fields of
// a teacher record are folded in by the caller, which owns the course state.
func (u User) Attrs() UserAttrs {
	return UserAttrs{
		UID:        string(u.UID),
		Account:    u.Account,
		Role:       string(u.Role),
		Video:      boolToInt(u.Video),
		Audio:      boolToInt(u.Audio),
		Chat:       boolToInt(u.Chat),
		BoardID:    u.BoardID,
		SharedID:   u.SharedID,
		LinkID:     u.LinkID,
		LockBoard:  boolToInt(u.LockBoard),
		GrantBoard: boolToInt(u.GrantBoard),
	}
}

// User rebuilds the domain user from a wire record. Unknown roles are kept
// verbatim so a stale record cannot silently become a student.
func (a UserAttrs) User() User {
	return User{
		UID:        UID(a.UID),
		Account:    a.Account,
		Role:       Role(a.Role),
		Audio:      a.Audio != 0,
		Video:      a.Video != 0,
		Chat:       a.Chat != 0,
		BoardID:    a.BoardID,
		SharedID:   a.SharedID,
		LinkID:     a.LinkID,
		GrantBoard: a.GrantBoard != 0,
		LockBoard:  a.LockBoard != 0,
	}
}

// ApplyPatch overlays the non-nil patch fields onto a wire record. A partial
// update must never drop fields absent from the payload, so the receiver is
// the existing full record.
func (a UserAttrs) ApplyPatch(p UserPatch) UserAttrs {
	if p.Account != nil {
		a.Account = *p.Account
	}
	if p.Audio != nil {
		a.Audio = boolToInt(*p.Audio)
	}
	if p.Video != nil {
		a.Video = boolToInt(*p.Video)
	}
	if p.Chat != nil {
		a.Chat = boolToInt(*p.Chat)
	}
	if p.BoardID != nil {
		a.BoardID = *p.BoardID
	}
	if p.SharedID != nil {
		a.SharedID = *p.SharedID
	}
	if p.LinkID != nil {
		a.LinkID = *p.LinkID
	}
	if p.GrantBoard != nil {
		a.GrantBoard = boolToInt(*p.GrantBoard)
	}
	if p.LockBoard != nil {
		a.LockBoard = boolToInt(*p.LockBoard)
	}
	return a
}

// Course rebuilds the shared room configuration from the merged room view.
// ChannelID, Name and Type are session-scoped and supplied by the caller.
func (r RoomAttrs) Course(base Course) Course {
	base.TeacherID = UID(r.TeacherID)
	base.BoardID = r.BoardID
	base.SharedID = r.SharedID
	base.LinkID = r.LinkID
	base.LockBoard = r.LockBoard != 0
	base.State = CourseState(r.ClassState)
	base.MuteChat = r.MuteChat != 0
	return base
}
