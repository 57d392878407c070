package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/CosmosZhu/eEducation/internal/core"
	"github.com/CosmosZhu/eEducation/internal/domain"
)

// Reconciler interprets inbound peer messages and channel-attribute
// snapshots against the current session snapshot and applies the resulting
// transitions. It never raises a user-visible failure: inapplicable or
// unknown messages are logged and dropped.
type Reconciler struct {
	store    *core.Store
	signal   core.SignalClient
	notifier core.Notifier
}

func NewReconciler(store *core.Store, signal core.SignalClient, notifier core.Notifier) *Reconciler {
	if notifier == nil {
		notifier = core.NopNotifier{}
	}
	return &Reconciler{store: store, signal: signal, notifier: notifier}
}

// HandlePeerMessage dispatches on (command, sender role relative to self).
// Teacher-to-teacher and student-to-student pairs are not defined by the
// protocol and are ignored, never misapplied.
func (r *Reconciler) HandlePeerMessage(ctx context.Context, cmd domain.Command, peerID domain.UID) {
	if peerID == "" {
		log.Warn().Str("module", "app.reconciler").Msg("peer message without sender")
		return
	}
	snap := r.store.Snapshot()
	selfIsTeacher := snap.IsTeacher(snap.Self.UID)
	peerIsTeacher := snap.IsTeacher(peerID)

	switch {
	case !selfIsTeacher && peerIsTeacher:
		r.applyTeacherCommand(ctx, cmd)
	case selfIsTeacher && !peerIsTeacher:
		r.applyStudentCommand(ctx, snap, cmd, peerID)
	default:
		log.Debug().Str("module", "app.reconciler").
			Str("cmd", cmd.String()).Str("peer", string(peerID)).
			Msg("ignoring message for undefined role pair")
	}
}

// applyTeacherCommand follows the teacher's control message on the local
// student state.
func (r *Reconciler) applyTeacherCommand(ctx context.Context, cmd domain.Command) {
	switch cmd {
	case domain.CmdMuteAudio:
		r.updateSelfLogged(ctx, domain.UserPatch{Audio: domain.BoolPtr(false)})
	case domain.CmdMuteVideo:
		r.updateSelfLogged(ctx, domain.UserPatch{Video: domain.BoolPtr(false)})
	case domain.CmdMuteChat:
		r.updateSelfLogged(ctx, domain.UserPatch{Chat: domain.BoolPtr(false)})
	case domain.CmdUnmuteAudio:
		r.updateSelfLogged(ctx, domain.UserPatch{Audio: domain.BoolPtr(true)})
	case domain.CmdUnmuteVideo:
		r.updateSelfLogged(ctx, domain.UserPatch{Video: domain.BoolPtr(true)})
	case domain.CmdUnmuteChat:
		r.updateSelfLogged(ctx, domain.UserPatch{Chat: domain.BoolPtr(true)})
	case domain.CmdMuteBoard:
		r.notifier.Notify(core.Notice{Kind: core.NoticeNotice, Text: "teacher revoked the whiteboard"})
		r.updateSelfLogged(ctx, domain.UserPatch{GrantBoard: domain.BoolPtr(false)})
	case domain.CmdUnmuteBoard:
		r.notifier.Notify(core.Notice{Kind: core.NoticeNotice, Text: "teacher granted the whiteboard"})
		r.updateSelfLogged(ctx, domain.UserPatch{GrantBoard: domain.BoolPtr(true)})
	case domain.CmdAcceptCoVideo:
		r.notifier.Notify(core.Notice{Kind: core.NoticeCoVideo, Text: "teacher accepted your co-video request"})
	case domain.CmdRejectCoVideo:
		r.notifier.Notify(core.Notice{Kind: core.NoticeCoVideo, Text: "teacher rejected your co-video request"})
	case domain.CmdCancelCoVideo:
		r.notifier.Notify(core.Notice{Kind: core.NoticeCoVideo, Text: "teacher ended the co-video session"})
	default:
		log.Debug().Str("module", "app.reconciler").Str("cmd", cmd.String()).Msg("unrecognized teacher command")
	}
}

// applyStudentCommand handles the raise-hand lifecycle on the teacher side.
func (r *Reconciler) applyStudentCommand(ctx context.Context, snap core.Session, cmd domain.Command, peerID domain.UID) {
	switch cmd {
	case domain.CmdApplyCoVideo:
		if snap.CoVideo.Occupied() {
			// First accepted request wins; losers are dropped without
			// retroactive correction.
			log.Warn().Str("module", "app.reconciler").
				Str("peer", string(peerID)).Str("occupant", string(snap.CoVideo.UID)).
				Msg("co-video apply ignored, slot occupied")
			return
		}
		applicant, ok := snap.Member(peerID)
		if !ok {
			log.Warn().Str("module", "app.reconciler").Str("peer", string(peerID)).Msg("co-video apply from unknown member")
			return
		}
		next, err := snap.CoVideo.Apply(peerID)
		if err != nil {
			log.Warn().Err(err).Str("module", "app.reconciler").Msg("co-video apply rejected")
			return
		}
		r.store.SetCoVideo(next)
		r.notifier.Notify(core.Notice{Kind: core.NoticeNotice, Text: applicant.Account + " raised a hand"})
	case domain.CmdCancelCoVideo:
		wasGranted := snap.CoVideo.Phase == core.SlotGranted
		next, err := snap.CoVideo.Release(peerID)
		if err != nil {
			log.Warn().Err(err).Str("module", "app.reconciler").
				Str("peer", string(peerID)).Msg("co-video cancel from non-occupant")
			return
		}
		r.store.SetCoVideo(next)
		if wasGranted {
			if err := r.UpdateCourseLink(ctx, 0); err != nil {
				log.Warn().Err(err).Str("module", "app.reconciler").Msg("clear course link")
			}
		}
		r.notifier.Notify(core.Notice{Kind: core.NoticeCoVideo, Text: "student left the co-video session"})
	default:
		log.Debug().Str("module", "app.reconciler").Str("cmd", cmd.String()).Msg("unrecognized student command")
	}
}

func (r *Reconciler) updateSelfLogged(ctx context.Context, patch domain.UserPatch) {
	if err := r.UpdateSelf(ctx, patch); err != nil {
		log.Warn().Err(err).Str("module", "app.reconciler").Msg("self attribute update")
	}
}

// UpdateRoomAttrs reconciles a freshly fetched channel snapshot: membership
// is rebuilt from scratch (last fetch wins), self is overlaid from the
// fetched self record, a teacher self additionally mirrors the room fields,
// and the course is rebuilt strictly from the room view. Re-applying the
// same snapshot is a no-op beyond republishing.
func (r *Reconciler) UpdateRoomAttrs(snap domain.ChannelSnapshot) {
	r.store.Apply(func(s *core.Session) {
		members := make(map[domain.UID]domain.User, len(snap.Accounts))
		for _, rec := range snap.Accounts {
			members[domain.UID(rec.UID)] = rec.User()
		}
		s.Members = members

		if rec, ok := members[s.Self.UID]; ok {
			s.Self = rec
		}
		if s.Self.Role == domain.RoleTeacher {
			s.Self.LinkID = snap.Room.LinkID
			s.Self.BoardID = snap.Room.BoardID
			s.Self.LockBoard = snap.Room.LockBoard != 0
		}

		s.Course = snap.Room.Course(s.Course)

		// The room's link slot is authoritative for a granted occupant; a
		// locally pending request survives until the teacher resolves it.
		if occupant := domain.UIDFromStream(snap.Room.LinkID); occupant != "" {
			s.CoVideo = core.CoVideoSlot{Phase: core.SlotGranted, UID: occupant}
		} else if s.CoVideo.Phase == core.SlotGranted {
			s.CoVideo = core.CoVideoSlot{}
		}
	})
}
