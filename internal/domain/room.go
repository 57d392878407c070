package domain

type (
	RoomName  string
	ChannelID string
)

// RoomType selects the capacity tier of a classroom.
type RoomType int

const (
	RoomOneToOne   RoomType = iota // teacher + one student
	RoomSmallClass                 // teacher + 16 students
	RoomBigClass                   // teacher + 31 students
)

var roomCapacity = map[RoomType]int{
	RoomOneToOne:   2,
	RoomSmallClass: 17,
	RoomBigClass:   32,
}

// Capacity returns the hard member limit for the room type, 0 for an
// unknown type.
func (t RoomType) Capacity() int { return roomCapacity[t] }

// CourseState is the teacher-controlled lesson phase.
type CourseState int

const (
	CourseNotStarted CourseState = iota
	CourseInProgress
	CourseEnded
)

// Course is the shared room configuration mirrored from the teacher's
// channel attribute record. TeacherID is the source of truth for who holds
// the teacher role in the room.
type Course struct {
	ChannelID ChannelID
	Name      RoomName
	Type      RoomType
	TeacherID UID
	BoardID   string
	SharedID  uint32
	LinkID    uint32
	LockBoard bool
	State     CourseState
	MuteChat  bool
}
