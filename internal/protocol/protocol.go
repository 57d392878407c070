// Package protocol defines the JSON envelopes exchanged between the
// signaling client and the dev signaling server. Every message is a flat
// object carrying its type; receivers dispatch on Head and then decode the
// full message.
package protocol

import (
	"encoding/json"

	"github.com/CosmosZhu/eEducation/internal/domain"
)

// Request types.
const (
	MsgLogin          = "login"
	MsgLogout         = "logout"
	MsgJoin           = "join"
	MsgLeave          = "leave"
	MsgPeer           = "peer"
	MsgChannelMessage = "channel_message"
	MsgMemberCount    = "member_count"
	MsgAttributes     = "attributes"
	MsgOnlineStatus   = "online_status"
	MsgUpdateAttrs    = "update_attrs"
)

// Server-to-client types.
const (
	MsgResponse          = "response"
	EvtConnectionState   = "connection_state"
	EvtPeerMessage       = "peer_message"
	EvtAttributesUpdated = "attributes_updated"
	EvtMemberCount       = "member_count_updated"
	EvtChannelMessage    = "channel_message_event"
)

// Head is the dispatch prefix shared by every message. ID correlates a
// request with its response; events carry no ID.
type Head struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
}

type LoginRequest struct {
	Head
	AppID string `json:"app_id"`
	UID   string `json:"uid"`
	Token string `json:"token"`
}

type LogoutRequest struct {
	Head
}

type JoinRequest struct {
	Head
	Channel string `json:"channel"`
}

type LeaveRequest struct {
	Head
	Channel string `json:"channel"`
}

type PeerRequest struct {
	Head
	To  string `json:"to"`
	Cmd int    `json:"cmd"`
}

type ChannelMessageRequest struct {
	Head
	Payload domain.ChatPayload `json:"payload"`
}

type MemberCountRequest struct {
	Head
	Channels []string `json:"channels"`
}

type AttributesRequest struct {
	Head
	Channel string `json:"channel"`
}

// Account identifies one presence query target.
type Account struct {
	UID  string `json:"uid"`
	Role string `json:"role"`
}

type OnlineStatusRequest struct {
	Head
	Accounts []Account `json:"accounts"`
}

type UpdateAttrsRequest struct {
	Head
	Channel string           `json:"channel"`
	Key     string           `json:"key"`
	Attrs   domain.UserAttrs `json:"attrs"`
}

// Response answers the request with the matching ID. Data holds the
// request-specific payload, absent on errors.
type Response struct {
	Head
	Error string          `json:"error,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type MemberCountData map[string]int

type OnlineStatusData struct {
	TeacherPresent bool `json:"teacher_present"`
	TotalCount     int  `json:"total_count"`
}

type ConnectionStateEvent struct {
	Head
	State  string `json:"state"`
	Reason string `json:"reason,omitempty"`
}

type PeerMessageEvent struct {
	Head
	From string `json:"from"`
	Cmd  int    `json:"cmd"`
}

type AttributesUpdatedEvent struct {
	Head
	Snapshot domain.ChannelSnapshot `json:"snapshot"`
}

type MemberCountEvent struct {
	Head
	Count int `json:"count"`
}

type ChannelMessageEvent struct {
	Head
	From    string             `json:"from"`
	Payload domain.ChatPayload `json:"payload"`
}
