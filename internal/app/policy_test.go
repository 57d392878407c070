package app

import (
	"testing"

	"github.com/CosmosZhu/eEducation/internal/core"
	"github.com/CosmosZhu/eEducation/internal/domain"
)

func TestCanJoinStudentCapacityProperty(t *testing.T) {
	t.Parallel()
	// A student is admitted iff n+1 fits the capacity of the room type.
	for _, roomType := range []domain.RoomType{domain.RoomOneToOne, domain.RoomSmallClass, domain.RoomBigClass} {
		capacity := roomType.Capacity()
		for n := 0; n <= capacity+2; n++ {
			got := CanJoin(JoinRequest{
				Status:       core.OnlineStatus{TotalCount: n},
				ChannelCount: n,
				RoomType:     roomType,
				Role:         domain.RoleStudent,
			})
			want := n+1 <= capacity
			if got.Permitted != want {
				t.Errorf("roomType=%d n=%d: permitted=%v, want %v (reason %q)",
					roomType, n, got.Permitted, want, got.Reason)
			}
		}
	}
}

func TestCanJoinSecondTeacherDenied(t *testing.T) {
	t.Parallel()
	// A second teacher is denied regardless of member count.
	for n := 0; n < 5; n++ {
		got := CanJoin(JoinRequest{
			Status:       core.OnlineStatus{TeacherPresent: true, TotalCount: n},
			ChannelCount: n,
			RoomType:     domain.RoomBigClass,
			Role:         domain.RoleTeacher,
		})
		if got.Permitted {
			t.Errorf("n=%d: second teacher admitted", n)
		}
		if got.Reason != DenyTeacherAlreadyPresent {
			t.Errorf("n=%d: reason=%q, want %q", n, got.Reason, DenyTeacherAlreadyPresent)
		}
	}
}

func TestCanJoinTable(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		req       JoinRequest
		permitted bool
		reason    DenyReason
	}{
		{
			name: "empty one-to-one admits teacher",
			req: JoinRequest{
				RoomType: domain.RoomOneToOne,
				Role:     domain.RoleTeacher,
			},
			permitted: true,
		},
		{
			name: "full channel denies everyone",
			req: JoinRequest{
				Status:       core.OnlineStatus{TotalCount: 2},
				ChannelCount: 2,
				RoomType:     domain.RoomOneToOne,
				Role:         domain.RoleStudent,
			},
			reason: DenyCapacityExceeded,
		},
		{
			name: "small class with teacher and 16 students denies the 17th student",
			req: JoinRequest{
				Status:       core.OnlineStatus{TeacherPresent: true, TotalCount: 17},
				ChannelCount: 16,
				RoomType:     domain.RoomSmallClass,
				Role:         domain.RoleStudent,
			},
			reason: DenyStudentCapacityExceeded,
		},
		{
			name: "big class admits the 31st student",
			req: JoinRequest{
				Status:       core.OnlineStatus{TeacherPresent: true, TotalCount: 30},
				ChannelCount: 30,
				RoomType:     domain.RoomBigClass,
				Role:         domain.RoleStudent,
			},
			permitted: true,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := CanJoin(tt.req)
			if got.Permitted != tt.permitted {
				t.Fatalf("permitted=%v, want %v (reason %q)", got.Permitted, tt.permitted, got.Reason)
			}
			if got.Reason != tt.reason {
				t.Errorf("reason=%q, want %q", got.Reason, tt.reason)
			}
		})
	}
}

func TestCanJoinIsPure(t *testing.T) {
	t.Parallel()
	req := JoinRequest{
		Status:       core.OnlineStatus{TeacherPresent: true, TotalCount: 10},
		ChannelCount: 11,
		RoomType:     domain.RoomSmallClass,
		Role:         domain.RoleStudent,
	}
	first := CanJoin(req)
	for i := 0; i < 100; i++ {
		if got := CanJoin(req); got != first {
			t.Fatalf("call %d: %+v != %+v", i, got, first)
		}
	}
}
