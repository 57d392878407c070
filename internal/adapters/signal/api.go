package signal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/CosmosZhu/eEducation/internal/core"
	"github.com/CosmosZhu/eEducation/internal/domain"
	"github.com/CosmosZhu/eEducation/internal/protocol"
)

// core.SignalClient implementation.

func (c *Client) Login(ctx context.Context, appID string, uid domain.UID, token string) error {
	head := newHead(protocol.MsgLogin)
	err := c.call(ctx, head.ID, protocol.LoginRequest{
		Head:  head,
		AppID: appID,
		UID:   string(uid),
		Token: token,
	}, nil)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.loggedIn = true
	c.mu.Unlock()
	return nil
}

func (c *Client) Logout(ctx context.Context) error {
	head := newHead(protocol.MsgLogout)
	err := c.call(ctx, head.ID, protocol.LogoutRequest{Head: head}, nil)
	c.mu.Lock()
	c.loggedIn = false
	c.joined = ""
	c.mu.Unlock()
	return err
}

func (c *Client) LoggedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loggedIn
}

func (c *Client) Join(ctx context.Context, channel domain.ChannelID) error {
	head := newHead(protocol.MsgJoin)
	if err := c.call(ctx, head.ID, protocol.JoinRequest{Head: head, Channel: string(channel)}, nil); err != nil {
		return err
	}
	c.mu.Lock()
	c.joined = string(channel)
	c.mu.Unlock()
	return nil
}

// Exit leaves the joined channel, if any, and logs out. Either step failing
// still attempts the rest; the first error is returned.
func (c *Client) Exit(ctx context.Context) error {
	c.mu.Lock()
	joined := c.joined
	loggedIn := c.loggedIn
	c.mu.Unlock()

	var firstErr error
	if joined != "" {
		head := newHead(protocol.MsgLeave)
		if err := c.call(ctx, head.ID, protocol.LeaveRequest{Head: head, Channel: joined}, nil); err != nil {
			firstErr = fmt.Errorf("leave channel: %w", err)
		}
		c.mu.Lock()
		c.joined = ""
		c.mu.Unlock()
	}
	if loggedIn {
		if err := c.Logout(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("logout: %w", err)
		}
	}
	return firstErr
}

func (c *Client) SendPeerMessage(ctx context.Context, to domain.UID, cmd domain.Command) error {
	head := newHead(protocol.MsgPeer)
	return c.call(ctx, head.ID, protocol.PeerRequest{Head: head, To: string(to), Cmd: int(cmd)}, nil)
}

func (c *Client) SendChannelMessage(ctx context.Context, p domain.ChatPayload) error {
	head := newHead(protocol.MsgChannelMessage)
	return c.call(ctx, head.ID, protocol.ChannelMessageRequest{Head: head, Payload: p}, nil)
}

func (c *Client) ChannelMemberCount(ctx context.Context, channels []domain.ChannelID) (map[domain.ChannelID]int, error) {
	names := make([]string, 0, len(channels))
	for _, ch := range channels {
		names = append(names, string(ch))
	}
	head := newHead(protocol.MsgMemberCount)
	var data protocol.MemberCountData
	if err := c.call(ctx, head.ID, protocol.MemberCountRequest{Head: head, Channels: names}, &data); err != nil {
		return nil, err
	}
	out := make(map[domain.ChannelID]int, len(data))
	for name, count := range data {
		out[domain.ChannelID(name)] = count
	}
	return out, nil
}

func (c *Client) ChannelAttributes(ctx context.Context, channel domain.ChannelID) (domain.ChannelSnapshot, error) {
	head := newHead(protocol.MsgAttributes)
	var snap domain.ChannelSnapshot
	err := c.call(ctx, head.ID, protocol.AttributesRequest{Head: head, Channel: string(channel)}, &snap)
	return snap, err
}

func (c *Client) QueryOnlineStatus(ctx context.Context, accounts []domain.UserAttrs) (core.OnlineStatus, error) {
	targets := make([]protocol.Account, 0, len(accounts))
	for _, a := range accounts {
		targets = append(targets, protocol.Account{UID: a.UID, Role: a.Role})
	}
	head := newHead(protocol.MsgOnlineStatus)
	var data protocol.OnlineStatusData
	if err := c.call(ctx, head.ID, protocol.OnlineStatusRequest{Head: head, Accounts: targets}, &data); err != nil {
		return core.OnlineStatus{}, err
	}
	return core.OnlineStatus{TeacherPresent: data.TeacherPresent, TotalCount: data.TotalCount}, nil
}

func (c *Client) UpdateChannelAttrs(ctx context.Context, channel domain.ChannelID, key string, attrs domain.UserAttrs) error {
	head := newHead(protocol.MsgUpdateAttrs)
	return c.call(ctx, head.ID, protocol.UpdateAttrsRequest{
		Head:    head,
		Channel: string(channel),
		Key:     key,
		Attrs:   attrs,
	}, nil)
}

func (c *Client) Events() <-chan core.Event { return c.events }

// decodeEvent maps a server push frame to its core event.
func decodeEvent(msgType string, data []byte) (core.Event, error) {
	switch msgType {
	case protocol.EvtConnectionState:
		var e protocol.ConnectionStateEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return core.ConnectionStateChanged{NewState: e.State, Reason: e.Reason}, nil
	case protocol.EvtPeerMessage:
		var e protocol.PeerMessageEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return core.PeerMessage{Cmd: domain.Command(e.Cmd), PeerID: domain.UID(e.From)}, nil
	case protocol.EvtAttributesUpdated:
		var e protocol.AttributesUpdatedEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return core.AttributesUpdated{Snapshot: e.Snapshot}, nil
	case protocol.EvtMemberCount:
		var e protocol.MemberCountEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return core.MemberCountUpdated{Count: e.Count}, nil
	case protocol.EvtChannelMessage:
		var e protocol.ChannelMessageEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return core.ChannelMessage{Sender: domain.UID(e.From), Payload: e.Payload}, nil
	}
	return nil, fmt.Errorf("unknown frame type %q", msgType)
}
