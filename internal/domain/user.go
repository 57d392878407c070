// Package domain contains classroom value types without behaviour beyond
// validation and conversion.
package domain

import "errors"

const MaxAccountLen = 36

var (
	ErrAccountEmpty   = errors.New("account empty")
	ErrAccountTooLong = errors.New("account too long")
	ErrUnknownRole    = errors.New("unknown role")
)

type UID string

type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleTeacher, RoleStudent:
		return Role(s), nil
	}
	return "", ErrUnknownRole
}

// User is one room participant as seen by the local client. Audio, Video,
// Chat and GrantBoard are the control-permission flags a teacher sets for
// others, or a user sets for self.
type User struct {
	UID        UID
	Account    string
	Role       Role
	Audio      bool
	Video      bool
	Chat       bool
	BoardID    string
	SharedID   uint32
	LinkID     uint32
	GrantBoard bool
	LockBoard  bool
}

// NewUser validates account and role; toggles start enabled, the state a
// participant carries before any teacher intervention.
func NewUser(uid UID, account string, role Role) (*User, error) {
	if account == "" {
		return nil, ErrAccountEmpty
	}
	if len(account) > MaxAccountLen {
		return nil, ErrAccountTooLong
	}
	if _, err := ParseRole(string(role)); err != nil {
		return nil, err
	}
	return &User{
		UID:     uid,
		Account: account,
		Role:    role,
		Audio:   true,
		Video:   true,
		Chat:    true,
	}, nil
}

// UserPatch is a partial update; nil fields are left untouched wherever the
// patch is applied.
type UserPatch struct {
	Account    *string
	Audio      *bool
	Video      *bool
	Chat       *bool
	BoardID    *string
	SharedID   *uint32
	LinkID     *uint32
	GrantBoard *bool
	LockBoard  *bool
}

// Apply returns a copy of u with the non-nil patch fields overlaid.
func (p UserPatch) Apply(u User) User {
	if p.Account != nil {
		u.Account = *p.Account
	}
	if p.Audio != nil {
		u.Audio = *p.Audio
	}
	if p.Video != nil {
		u.Video = *p.Video
	}
	if p.Chat != nil {
		u.Chat = *p.Chat
	}
	if p.BoardID != nil {
		u.BoardID = *p.BoardID
	}
	if p.SharedID != nil {
		u.SharedID = *p.SharedID
	}
	if p.LinkID != nil {
		u.LinkID = *p.LinkID
	}
	if p.GrantBoard != nil {
		u.GrantBoard = *p.GrantBoard
	}
	if p.LockBoard != nil {
		u.LockBoard = *p.LockBoard
	}
	return u
}

// Pointer constructors for building patches inline.
func BoolPtr(b bool) *bool       { return &b }
func StringPtr(s string) *string { return &s }
func Uint32Ptr(v uint32) *uint32 { return &v }
