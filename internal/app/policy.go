// Package app wires the session store, the admission rules and the control
// message reconciler into the client-side room controller.
package app

import (
	"github.com/CosmosZhu/eEducation/internal/core"
	"github.com/CosmosZhu/eEducation/internal/domain"
)

// DenyReason explains a refused join.
type DenyReason string

const (
	DenyCapacityExceeded        DenyReason = "capacity_exceeded"
	DenyTeacherAlreadyPresent   DenyReason = "teacher_already_present"
	DenyStudentCapacityExceeded DenyReason = "student_capacity_exceeded"
)

// JoinRequest is everything the admission check looks at. ChannelCount is
// the transport's channel member count; Status summarizes the per-identity
// presence query.
type JoinRequest struct {
	Status       core.OnlineStatus
	ChannelCount int
	RoomType     domain.RoomType
	Role         domain.Role
}

type JoinDecision struct {
	Permitted bool
	Reason    DenyReason
}

// CanJoin decides admission against the fixed capacity table. It is
// advisory: the transport's join call is the final arbiter, this check only
// prevents a doomed attempt. Pure function, no side effects.
func CanJoin(req JoinRequest) JoinDecision {
	capacity := req.RoomType.Capacity()
	if req.ChannelCount >= capacity {
		return JoinDecision{Reason: DenyCapacityExceeded}
	}
	if req.Role == domain.RoleTeacher && req.Status.TeacherPresent {
		return JoinDecision{Reason: DenyTeacherAlreadyPresent}
	}
	if req.Role == domain.RoleStudent && req.Status.TotalCount+1 > capacity {
		return JoinDecision{Reason: DenyStudentCapacityExceeded}
	}
	return JoinDecision{Permitted: true}
}

// AdmissionError carries the denial reason to the caller; the join is
// aborted and any partial login rolled back before it propagates.
type AdmissionError struct {
	Reason DenyReason
}

func (e *AdmissionError) Error() string {
	return "admission denied: " + string(e.Reason)
}
