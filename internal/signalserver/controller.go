package signalserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/CosmosZhu/eEducation/internal/domain"
	"github.com/CosmosZhu/eEducation/internal/protocol"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Controller upgrades websocket sessions and dispatches protocol requests
// against the hub.
type Controller struct {
	Hub *Hub
}

func NewController(hub *Hub) *Controller {
	return &Controller{Hub: hub}
}

func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signalserver").Msg("ws upgrade")
		return
	}
	conn := &client{
		conn: ws,
		send: make(chan []byte, sendBuffer),
	}
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, conn)
}

func (ctl *Controller) writePump(ctx context.Context, c *client) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signalserver").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signalserver").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, c *client) {
	defer func() {
		ctl.onDisconnect(c)
		c.close()
	}()
	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "signalserver").Str("uid", string(c.uid)).Msg("readPump closing")
				return
			}
			ctl.handleFrame(c, data)
		}
	}
}

// onDisconnect releases membership and identity held by a dropped session.
func (ctl *Controller) onDisconnect(c *client) {
	if id, count, ok := ctl.Hub.leave(c); ok {
		ctl.broadcastCount(id, count)
	}
	ctl.Hub.unbind(c)
}

func (ctl *Controller) handleFrame(c *client, data []byte) {
	var head protocol.Head
	if err := json.Unmarshal(data, &head); err != nil {
		log.Error().Err(err).Str("module", "signalserver").Msg("bad json")
		return
	}

	switch head.Type {
	case protocol.MsgLogin:
		ctl.handleLogin(c, head, data)
	case protocol.MsgLogout:
		ctl.handleLogout(c, head)
	case protocol.MsgJoin:
		ctl.handleJoin(c, head, data)
	case protocol.MsgLeave:
		ctl.handleLeave(c, head)
	case protocol.MsgPeer:
		ctl.handlePeer(c, head, data)
	case protocol.MsgChannelMessage:
		ctl.handleChannelMessage(c, head, data)
	case protocol.MsgMemberCount:
		ctl.handleMemberCount(c, head, data)
	case protocol.MsgAttributes:
		ctl.handleAttributes(c, head, data)
	case protocol.MsgOnlineStatus:
		ctl.handleOnlineStatus(c, head, data)
	case protocol.MsgUpdateAttrs:
		ctl.handleUpdateAttrs(c, head, data)
	default:
		log.Warn().Str("module", "signalserver").Str("type", head.Type).Msg("unknown request")
		ctl.respondErr(c, head, "unknown request type")
	}
}

func (ctl *Controller) sendJSON(c *client, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signalserver").Msg("sendJSON marshal")
		return
	}
	if err := c.trySend(b); err != nil {
		log.Warn().Err(err).Str("module", "signalserver").Str("uid", string(c.uid)).Msg("send dropped")
	}
}

func (ctl *Controller) respondOK(c *client, head protocol.Head, data any) {
	resp := protocol.Response{Head: protocol.Head{Type: protocol.MsgResponse, ID: head.ID}}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			log.Error().Err(err).Str("module", "signalserver").Msg("respond marshal")
			return
		}
		resp.Data = raw
	}
	ctl.sendJSON(c, resp)
}

func (ctl *Controller) respondErr(c *client, head protocol.Head, msg string) {
	ctl.sendJSON(c, protocol.Response{
		Head:  protocol.Head{Type: protocol.MsgResponse, ID: head.ID},
		Error: msg,
	})
}

func (ctl *Controller) handleLogin(c *client, head protocol.Head, data []byte) {
	var req protocol.LoginRequest
	if err := json.Unmarshal(data, &req); err != nil || req.UID == "" {
		ctl.respondErr(c, head, "bad login payload")
		return
	}
	// Token is accepted as-is: the dev server authenticates nobody.
	previous := ctl.Hub.bind(domain.UID(req.UID), c)
	if previous != nil && previous != c {
		// Same identity signed in again elsewhere; evict the old session the
		// way the production transport does.
		ctl.sendJSON(previous, protocol.ConnectionStateEvent{
			Head:   protocol.Head{Type: protocol.EvtConnectionState},
			State:  "DISCONNECTED",
			Reason: "REMOTE_LOGIN",
		})
		if id, count, ok := ctl.Hub.leave(previous); ok {
			ctl.broadcastCount(id, count)
		}
		previous.close()
	}
	ctl.respondOK(c, head, nil)
}

func (ctl *Controller) handleLogout(c *client, head protocol.Head) {
	if id, count, ok := ctl.Hub.leave(c); ok {
		ctl.broadcastCount(id, count)
	}
	ctl.Hub.unbind(c)
	ctl.respondOK(c, head, nil)
}

func (ctl *Controller) handleJoin(c *client, head protocol.Head, data []byte) {
	if c.uid == "" {
		ctl.respondErr(c, head, "not logged in")
		return
	}
	var req protocol.JoinRequest
	if err := json.Unmarshal(data, &req); err != nil || req.Channel == "" {
		ctl.respondErr(c, head, "bad join payload")
		return
	}
	count := ctl.Hub.join(domain.ChannelID(req.Channel), c)
	log.Info().Str("module", "signalserver").Str("uid", string(c.uid)).Str("channel", req.Channel).Msg("join")
	ctl.respondOK(c, head, nil)
	ctl.broadcastCount(domain.ChannelID(req.Channel), count)
}

func (ctl *Controller) handleLeave(c *client, head protocol.Head) {
	id, count, ok := ctl.Hub.leave(c)
	ctl.respondOK(c, head, nil)
	if ok {
		ctl.broadcastCount(id, count)
	}
}

func (ctl *Controller) handlePeer(c *client, head protocol.Head, data []byte) {
	var req protocol.PeerRequest
	if err := json.Unmarshal(data, &req); err != nil || req.To == "" {
		ctl.respondErr(c, head, "bad peer payload")
		return
	}
	target, ok := ctl.Hub.lookup(domain.UID(req.To))
	if !ok {
		ctl.respondErr(c, head, "peer offline")
		return
	}
	ctl.sendJSON(target, protocol.PeerMessageEvent{
		Head: protocol.Head{Type: protocol.EvtPeerMessage},
		From: string(c.uid),
		Cmd:  req.Cmd,
	})
	ctl.respondOK(c, head, nil)
}

func (ctl *Controller) handleChannelMessage(c *client, head protocol.Head, data []byte) {
	if c.channel == "" {
		ctl.respondErr(c, head, "not in a channel")
		return
	}
	var req protocol.ChannelMessageRequest
	if err := json.Unmarshal(data, &req); err != nil {
		ctl.respondErr(c, head, "bad channel message payload")
		return
	}
	event := protocol.ChannelMessageEvent{
		Head:    protocol.Head{Type: protocol.EvtChannelMessage},
		From:    string(c.uid),
		Payload: req.Payload,
	}
	for _, m := range ctl.Hub.membersOf(c.channel) {
		if m == c {
			continue
		}
		ctl.sendJSON(m, event)
	}
	ctl.respondOK(c, head, nil)
}

func (ctl *Controller) handleMemberCount(c *client, head protocol.Head, data []byte) {
	var req protocol.MemberCountRequest
	if err := json.Unmarshal(data, &req); err != nil {
		ctl.respondErr(c, head, "bad member count payload")
		return
	}
	counts := make(protocol.MemberCountData, len(req.Channels))
	for _, name := range req.Channels {
		counts[name] = ctl.Hub.memberCount(domain.ChannelID(name))
	}
	ctl.respondOK(c, head, counts)
}

func (ctl *Controller) handleAttributes(c *client, head protocol.Head, data []byte) {
	var req protocol.AttributesRequest
	if err := json.Unmarshal(data, &req); err != nil || req.Channel == "" {
		ctl.respondErr(c, head, "bad attributes payload")
		return
	}
	ctl.respondOK(c, head, ctl.Hub.channelSnapshot(domain.ChannelID(req.Channel)))
}

func (ctl *Controller) handleOnlineStatus(c *client, head protocol.Head, data []byte) {
	var req protocol.OnlineStatusRequest
	if err := json.Unmarshal(data, &req); err != nil {
		ctl.respondErr(c, head, "bad online status payload")
		return
	}
	var status protocol.OnlineStatusData
	for _, acc := range req.Accounts {
		if !ctl.Hub.online(domain.UID(acc.UID)) {
			continue
		}
		status.TotalCount++
		if acc.Role == string(domain.RoleTeacher) {
			status.TeacherPresent = true
		}
	}
	ctl.respondOK(c, head, status)
}

func (ctl *Controller) handleUpdateAttrs(c *client, head protocol.Head, data []byte) {
	var req protocol.UpdateAttrsRequest
	if err := json.Unmarshal(data, &req); err != nil || req.Channel == "" || req.Key == "" {
		ctl.respondErr(c, head, "bad update attrs payload")
		return
	}
	snap := ctl.Hub.setAttrs(domain.ChannelID(req.Channel), req.Key, req.Attrs)
	ctl.respondOK(c, head, nil)
	event := protocol.AttributesUpdatedEvent{
		Head:     protocol.Head{Type: protocol.EvtAttributesUpdated},
		Snapshot: snap,
	}
	for _, m := range ctl.Hub.membersOf(domain.ChannelID(req.Channel)) {
		ctl.sendJSON(m, event)
	}
}

func (ctl *Controller) broadcastCount(id domain.ChannelID, count int) {
	event := protocol.MemberCountEvent{
		Head:  protocol.Head{Type: protocol.EvtMemberCount},
		Count: count,
	}
	for _, m := range ctl.Hub.membersOf(id) {
		ctl.sendJSON(m, event)
	}
}
