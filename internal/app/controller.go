package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/CosmosZhu/eEducation/internal/core"
	"github.com/CosmosZhu/eEducation/internal/domain"
)

var ErrNotPermitted = errors.New("not permitted")

// ToggleKind names a control-permission flag for Mute/Unmute.
type ToggleKind string

const (
	ToggleAudio ToggleKind = "audio"
	ToggleVideo ToggleKind = "video"
	ToggleChat  ToggleKind = "chat"
	ToggleBoard ToggleKind = "grantBoard"
)

// LoginParams is everything needed to enter a room.
type LoginParams struct {
	AppID       string
	UID         domain.UID
	Account     string
	Role        domain.Role
	Channel     domain.ChannelID
	RoomName    domain.RoomName
	RoomType    domain.RoomType
	SignalToken string
	MediaToken  string
	BoardID     string
	HomePage    string
}

// Controller owns the session lifecycle: login/join, the event dispatch
// loop, teacher/student control actions and teardown. One instance per
// logged-in client process; all collaborators are injected.
type Controller struct {
	store    *core.Store
	signal   core.SignalClient
	media    core.MediaClient
	storage  core.SnapshotStorage
	notifier core.Notifier
	rec      *Reconciler

	// onForcedExit is invoked when the transport kicks this client; state
	// is not wiped, the UI decides where to navigate.
	onForcedExit func(reason string)

	unsubscribe func()
}

func NewController(store *core.Store, signal core.SignalClient, media core.MediaClient, storage core.SnapshotStorage, notifier core.Notifier) *Controller {
	if notifier == nil {
		notifier = core.NopNotifier{}
	}
	c := &Controller{
		store:    store,
		signal:   signal,
		media:    media,
		storage:  storage,
		notifier: notifier,
		rec:      NewReconciler(store, signal, notifier),
	}
	c.hydrate()
	// Persist the resume record on every published snapshot of a live
	// session. ExitAll resets Self first, so teardown does not re-save.
	c.unsubscribe = store.Subscribe(func(s core.Session) {
		if s.Self.UID == "" {
			return
		}
		rec := core.RoomRecord{
			Self:        s.Self,
			Course:      s.Course,
			MediaDevice: s.MediaDevice,
			Tokens:      s.Tokens,
			HomePage:    s.HomePage,
		}
		if err := c.storage.SaveRoom(rec); err != nil {
			log.Warn().Err(err).Str("module", "app.controller").Msg("persist snapshot")
		}
	})
	return c
}

// SetForcedExitHandler registers the navigate-back hook for forced
// disconnects.
func (c *Controller) SetForcedExitHandler(fn func(reason string)) { c.onForcedExit = fn }

// Reconciler exposes the attribute/message reconciler for callers that act
// on transport events directly.
func (c *Controller) Reconciler() *Reconciler { return c.rec }

// Close detaches the persistence observer; transport teardown is ExitAll.
func (c *Controller) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
}

// hydrate seeds the store from a persisted resume record, if any.
func (c *Controller) hydrate() {
	rec, ok, err := c.storage.LoadRoom()
	if err != nil {
		log.Warn().Err(err).Str("module", "app.controller").Msg("load persisted snapshot")
		return
	}
	if !ok {
		return
	}
	c.store.Apply(func(s *core.Session) {
		s.Self = rec.Self
		s.Course = rec.Course
		s.MediaDevice = rec.MediaDevice
		s.Tokens = rec.Tokens
		s.HomePage = rec.HomePage
	})
	if lang, ok, err := c.storage.LoadLanguage(); err == nil && ok {
		c.store.SetLanguage(lang)
	}
	log.Info().Str("module", "app.controller").Str("uid", string(rec.Self.UID)).Msg("session hydrated from storage")
}

// Run drains transport events until ctx is done or the transport closes.
// It is the single logical dispatch thread: each event's handler runs to
// completion before the next event is taken.
func (c *Controller) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-c.signal.Events():
			if !ok {
				log.Info().Str("module", "app.controller").Msg("event stream closed")
				return
			}
			c.dispatch(ctx, ev)
		}
	}
}

func (c *Controller) dispatch(ctx context.Context, ev core.Event) {
	switch e := ev.(type) {
	case core.ConnectionStateChanged:
		c.onConnectionChange(e)
	case core.PeerMessage:
		c.rec.HandlePeerMessage(ctx, e.Cmd, e.PeerID)
	case core.AttributesUpdated:
		c.rec.UpdateRoomAttrs(e.Snapshot)
	case core.MemberCountUpdated:
		c.store.SetMemberCount(e.Count)
	case core.ChannelMessage:
		c.store.AppendMessage(domain.NewChatMessage(e.Sender, e.Payload, time.Now().UnixMilli()))
	default:
		log.Debug().Str("module", "app.controller").Msg("unhandled transport event")
	}
}

// onConnectionChange surfaces forced disconnects. State is deliberately not
// wiped here; the exit handler decides what happens next.
func (c *Controller) onConnectionChange(e core.ConnectionStateChanged) {
	log.Info().Str("module", "app.controller").
		Str("state", e.NewState).Str("reason", e.Reason).Msg("connection state changed")
	switch {
	case e.Reason == core.ReasonLoginFailure:
		c.notifier.Notify(core.Notice{Kind: core.NoticeToast, Text: "login failed"})
	case e.Reason == core.ReasonRemoteLogin || e.NewState == core.StateAborted:
		c.notifier.Notify(core.Notice{Kind: core.NoticeToast, Text: "you were signed in elsewhere"})
	default:
		return
	}
	if c.onForcedExit != nil {
		c.onForcedExit(e.Reason)
	}
}

// LoginAndJoin logs into the transport, runs the advisory admission check
// (unless pass allows privileged re-entry, e.g. session resume), joins the
// channel and seeds the session. Any failure after a successful login rolls
// the login back before the error propagates.
func (c *Controller) LoginAndJoin(ctx context.Context, p LoginParams, pass bool) error {
	if err := c.signal.Login(ctx, p.AppID, p.UID, p.SignalToken); err != nil {
		return fmt.Errorf("signal login: %w", err)
	}

	if err := c.joinAfterLogin(ctx, p, pass); err != nil {
		if c.signal.LoggedIn() {
			if lerr := c.signal.Logout(ctx); lerr != nil {
				log.Warn().Err(lerr).Str("module", "app.controller").Msg("rollback logout")
			}
		}
		return err
	}
	return nil
}

func (c *Controller) joinAfterLogin(ctx context.Context, p LoginParams, pass bool) error {
	counts, err := c.signal.ChannelMemberCount(ctx, []domain.ChannelID{p.Channel})
	if err != nil {
		return fmt.Errorf("channel member count: %w", err)
	}
	attrs, err := c.signal.ChannelAttributes(ctx, p.Channel)
	if err != nil {
		return fmt.Errorf("channel attributes: %w", err)
	}
	status, err := c.signal.QueryOnlineStatus(ctx, attrs.Accounts)
	if err != nil {
		return fmt.Errorf("online status: %w", err)
	}

	if !pass {
		decision := CanJoin(JoinRequest{
			Status:       status,
			ChannelCount: counts[p.Channel],
			RoomType:     p.RoomType,
			Role:         p.Role,
		})
		if !decision.Permitted {
			return &AdmissionError{Reason: decision.Reason}
		}
	}

	if err := c.signal.Join(ctx, p.Channel); err != nil {
		return fmt.Errorf("channel join: %w", err)
	}

	c.store.Apply(func(s *core.Session) {
		s.Tokens = core.Tokens{AppID: p.AppID, SignalToken: p.SignalToken, MediaToken: p.MediaToken}
		s.Connection.SignalJoined = true
		s.HomePage = p.HomePage

		s.Self.UID = p.UID
		s.Self.Account = p.Account
		s.Self.Role = p.Role
		s.Self.BoardID = p.BoardID

		course := domain.Course{
			ChannelID: p.Channel,
			Name:      p.RoomName,
			Type:      p.RoomType,
		}
		if attrs.Teacher != nil {
			course = attrs.Room.Course(course)
			course.TeacherID = domain.UID(attrs.Teacher.UID)
		}
		if p.Role == domain.RoleTeacher {
			course.TeacherID = p.UID
		}
		s.Course = course
	})

	// Publish our own attribute record; only the teacher starts with the
	// whiteboard granted.
	grant := p.Role == domain.RoleTeacher
	if err := c.rec.UpdateSelf(ctx, domain.UserPatch{
		GrantBoard: domain.BoolPtr(grant),
		BoardID:    domain.StringPtr(p.BoardID),
	}); err != nil {
		return fmt.Errorf("publish self attributes: %w", err)
	}
	return nil
}

// Mute disables a permission flag: for self through an attribute write, for
// a peer only the teacher may act, through a peer control message.
func (c *Controller) Mute(ctx context.Context, uid domain.UID, kind ToggleKind) error {
	return c.toggle(ctx, uid, kind, false)
}

// Unmute re-enables a permission flag with the same authority rules.
func (c *Controller) Unmute(ctx context.Context, uid domain.UID, kind ToggleKind) error {
	return c.toggle(ctx, uid, kind, true)
}

var muteCmd = map[ToggleKind]domain.Command{
	ToggleAudio: domain.CmdMuteAudio,
	ToggleVideo: domain.CmdMuteVideo,
	ToggleChat:  domain.CmdMuteChat,
	ToggleBoard: domain.CmdMuteBoard,
}

var unmuteCmd = map[ToggleKind]domain.Command{
	ToggleAudio: domain.CmdUnmuteAudio,
	ToggleVideo: domain.CmdUnmuteVideo,
	ToggleChat:  domain.CmdUnmuteChat,
	ToggleBoard: domain.CmdUnmuteBoard,
}

func (c *Controller) toggle(ctx context.Context, uid domain.UID, kind ToggleKind, on bool) error {
	snap := c.store.Snapshot()
	if uid == snap.Self.UID {
		var patch domain.UserPatch
		switch kind {
		case ToggleAudio:
			patch.Audio = domain.BoolPtr(on)
		case ToggleVideo:
			patch.Video = domain.BoolPtr(on)
		case ToggleChat:
			patch.Chat = domain.BoolPtr(on)
		case ToggleBoard:
			// The whiteboard grant is teacher-issued, never self-served.
			return ErrNotPermitted
		}
		return c.rec.UpdateSelf(ctx, patch)
	}
	if snap.Self.Role != domain.RoleTeacher {
		return ErrNotPermitted
	}
	cmds := muteCmd
	if on {
		cmds = unmuteCmd
	}
	cmd, ok := cmds[kind]
	if !ok {
		return fmt.Errorf("unknown toggle %q", kind)
	}
	return c.signal.SendPeerMessage(ctx, uid, cmd)
}

// ApplyCoVideo raises the local student's hand with the teacher.
func (c *Controller) ApplyCoVideo(ctx context.Context) error {
	snap := c.store.Snapshot()
	if snap.Self.Role != domain.RoleStudent {
		return ErrNotPermitted
	}
	if snap.Course.TeacherID == "" {
		return errors.New("no teacher online")
	}
	return c.signal.SendPeerMessage(ctx, snap.Course.TeacherID, domain.CmdApplyCoVideo)
}

// CancelCoVideo withdraws the local student from the slot.
func (c *Controller) CancelCoVideo(ctx context.Context) error {
	snap := c.store.Snapshot()
	if snap.Course.TeacherID == "" {
		return errors.New("no teacher online")
	}
	return c.signal.SendPeerMessage(ctx, snap.Course.TeacherID, domain.CmdCancelCoVideo)
}

// AcceptCoVideo grants the pending request: the slot assignment is written
// into the teacher's attribute record and the student is notified.
func (c *Controller) AcceptCoVideo(ctx context.Context, uid domain.UID) error {
	snap := c.store.Snapshot()
	if snap.Self.Role != domain.RoleTeacher {
		return ErrNotPermitted
	}
	if err := c.rec.UpdateCourseLink(ctx, uid.StreamID()); err != nil {
		return err
	}
	return c.signal.SendPeerMessage(ctx, uid, domain.CmdAcceptCoVideo)
}

// RejectCoVideo declines the pending request and clears it locally.
func (c *Controller) RejectCoVideo(ctx context.Context, uid domain.UID) error {
	snap := c.store.Snapshot()
	if snap.Self.Role != domain.RoleTeacher {
		return ErrNotPermitted
	}
	if next, err := snap.CoVideo.Release(uid); err == nil {
		c.store.SetCoVideo(next)
	}
	return c.signal.SendPeerMessage(ctx, uid, domain.CmdRejectCoVideo)
}

// RevokeCoVideo is the teacher ending the current co-video session.
func (c *Controller) RevokeCoVideo(ctx context.Context) error {
	snap := c.store.Snapshot()
	if snap.Self.Role != domain.RoleTeacher {
		return ErrNotPermitted
	}
	occupant := snap.CoVideo.UID
	if err := c.rec.UpdateCourseLink(ctx, 0); err != nil {
		return err
	}
	if occupant != "" {
		return c.signal.SendPeerMessage(ctx, occupant, domain.CmdCancelCoVideo)
	}
	return nil
}

// SendChatMessage publishes a chat line to the channel and appends it to
// the local history; the transport does not echo own messages.
func (c *Controller) SendChatMessage(ctx context.Context, text, link string) error {
	snap := c.store.Snapshot()
	if !snap.Self.Chat || (snap.Course.MuteChat && snap.Self.Role != domain.RoleTeacher) {
		return ErrNotPermitted
	}
	payload := domain.ChatPayload{Account: snap.Self.Account, Content: text, Link: link}
	if err := c.signal.SendChannelMessage(ctx, payload); err != nil {
		return fmt.Errorf("send channel message: %w", err)
	}
	c.store.AppendMessage(domain.NewChatMessage(snap.Self.UID, payload, time.Now().UnixMilli()))
	return nil
}

// UpdateSessionInfo refreshes the resumable session fields: renewed tokens
// and the selected media devices. The persistence observer picks the new
// snapshot up.
func (c *Controller) UpdateSessionInfo(tokens core.Tokens, device core.MediaDeviceConfig) {
	c.store.Apply(func(s *core.Session) {
		s.Tokens = tokens
		s.MediaDevice = device
	})
}

// SetLanguage records the UI language and persists it alongside the room
// record.
func (c *Controller) SetLanguage(lang string) {
	c.store.SetLanguage(lang)
	if err := c.storage.SaveLanguage(lang); err != nil {
		log.Warn().Err(err).Str("module", "app.controller").Msg("persist language")
	}
}

// ExitAll tears the session down. Remote teardown failures are logged and
// swallowed: exit always completes, storage is cleared and local state
// resets to defaults.
func (c *Controller) ExitAll(ctx context.Context) {
	if err := c.signal.Exit(ctx); err != nil {
		log.Warn().Err(err).Str("module", "app.controller").Msg("signal exit")
	}
	if err := c.media.Exit(ctx); err != nil {
		log.Warn().Err(err).Str("module", "app.controller").Msg("media exit")
	}
	if err := c.storage.Clear(); err != nil {
		log.Warn().Err(err).Str("module", "app.controller").Msg("clear storage")
	}
	c.store.Reset()
}
