package app

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/CosmosZhu/eEducation/internal/domain"
)

var ErrUnknownUser = errors.New("unknown user")

// Attribute-write composition. A write starts from the identity's existing
// full record so a partial update never clobbers fields absent from the
// payload; the teacher's record additionally folds in the room-level shared
// fields, keeping the single authoritative attribute slot complete.

// UpdateAttrsBy writes uid's channel attributes with patch overlaid on the
// existing record.
func (r *Reconciler) UpdateAttrsBy(ctx context.Context, uid domain.UID, patch domain.UserPatch) error {
	snap := r.store.Snapshot()
	user, ok := snap.Member(uid)
	if !ok {
		if uid != snap.Self.UID {
			return ErrUnknownUser
		}
		user = snap.Self
	}

	attrs := user.Attrs()
	if user.Role == domain.RoleTeacher {
		attrs = foldCourse(attrs, snap.Course)
	}
	attrs = attrs.ApplyPatch(patch)

	key := domain.AttrKey(user.UID, user.Role)
	return r.signal.UpdateChannelAttrs(ctx, snap.Course.ChannelID, key, attrs)
}

// UpdateSelf applies the patch to the local self snapshot and publishes the
// resulting full record under the self key.
func (r *Reconciler) UpdateSelf(ctx context.Context, patch domain.UserPatch) error {
	snap := r.store.Snapshot()
	self := patch.Apply(snap.Self)
	r.store.SetSelf(self)

	attrs := self.Attrs()
	if self.Role == domain.RoleTeacher {
		// Shared fields mirror the course unless this very patch moves them.
		folded := foldCourse(attrs, snap.Course)
		if patch.BoardID != nil {
			folded.BoardID = attrs.BoardID
		}
		if patch.LinkID != nil {
			folded.LinkID = attrs.LinkID
		}
		if patch.SharedID != nil {
			folded.SharedID = attrs.SharedID
		}
		if patch.LockBoard != nil {
			folded.LockBoard = attrs.LockBoard
		}
		attrs = folded
	}

	key := domain.AttrKey(self.UID, self.Role)
	return r.signal.UpdateChannelAttrs(ctx, snap.Course.ChannelID, key, attrs)
}

// UpdateCourseLink writes the co-video slot assignment into the teacher's
// attribute record. link 0 clears the slot.
func (r *Reconciler) UpdateCourseLink(ctx context.Context, link uint32) error {
	snap := r.store.Snapshot()
	if err := r.UpdateAttrsBy(ctx, snap.Self.UID, domain.UserPatch{LinkID: domain.Uint32Ptr(link)}); err != nil {
		return err
	}
	if link == 0 {
		r.store.SetCoVideo(snap.CoVideo.Revoke())
		return nil
	}
	occupant := domain.UIDFromStream(link)
	next, err := snap.CoVideo.Grant(occupant)
	if err != nil {
		// No matching pending request; the authoritative attribute update
		// will converge the local slot.
		log.Debug().Err(err).Str("module", "app.reconciler").
			Str("occupant", string(occupant)).Msg("grant without pending request")
		return nil
	}
	r.store.SetCoVideo(next)
	return nil
}

// UpdateWhiteboard publishes the whiteboard binding for self.
func (r *Reconciler) UpdateWhiteboard(ctx context.Context, boardID string) error {
	snap := r.store.Snapshot()
	return r.UpdateAttrsBy(ctx, snap.Self.UID, domain.UserPatch{BoardID: domain.StringPtr(boardID)})
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// foldCourse overlays the room-level shared fields onto a teacher record.
func foldCourse(attrs domain.UserAttrs, course domain.Course) domain.UserAttrs {
	attrs.MuteChat = boolToInt(course.MuteChat)
	attrs.ClassState = int(course.State)
	attrs.BoardID = course.BoardID
	attrs.LinkID = course.LinkID
	attrs.SharedID = course.SharedID
	attrs.LockBoard = boolToInt(course.LockBoard)
	return attrs
}
