package core

import (
	"errors"

	"github.com/CosmosZhu/eEducation/internal/domain"
)

var (
	ErrSlotOccupied = errors.New("co-video slot occupied")
	ErrNotOccupant  = errors.New("not the co-video occupant")
	ErrNotPending   = errors.New("no pending co-video request")
)

// SlotPhase is the occupancy phase of the single interactive slot.
type SlotPhase int

const (
	SlotEmpty SlotPhase = iota
	SlotPending
	SlotGranted
)

// CoVideoSlot holds at most one occupant. Only the teacher assigns or
// clears it; the current occupant may voluntarily release it. Transitions
// return a new value, never mutate the receiver.
type CoVideoSlot struct {
	Phase SlotPhase
	UID   domain.UID
}

func (s CoVideoSlot) Occupied() bool { return s.Phase != SlotEmpty }

// Apply records a raise-hand request. First writer wins: any occupancy,
// pending or granted, rejects the request.
func (s CoVideoSlot) Apply(uid domain.UID) (CoVideoSlot, error) {
	if s.Occupied() {
		return s, ErrSlotOccupied
	}
	return CoVideoSlot{Phase: SlotPending, UID: uid}, nil
}

// Grant promotes the pending request to granted. The uid must match the
// pending requester; there is no retroactive correction of a lost race.
func (s CoVideoSlot) Grant(uid domain.UID) (CoVideoSlot, error) {
	if s.Phase != SlotPending || s.UID != uid {
		return s, ErrNotPending
	}
	return CoVideoSlot{Phase: SlotGranted, UID: uid}, nil
}

// Release clears the slot on behalf of uid; honored only for the current
// occupant, whether pending or granted.
func (s CoVideoSlot) Release(uid domain.UID) (CoVideoSlot, error) {
	if !s.Occupied() || s.UID != uid {
		return s, ErrNotOccupant
	}
	return CoVideoSlot{}, nil
}

// Revoke is the teacher's unconditional clear.
func (s CoVideoSlot) Revoke() CoVideoSlot { return CoVideoSlot{} }
