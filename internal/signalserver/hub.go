// Package signalserver is a development signaling server implementing the
// wire protocol the client adapter speaks: peer message routing, channel
// membership, per-identity channel attributes and presence queries. It is a
// loopback stand-in for the production messaging service, not a broker.
package signalserver

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/CosmosZhu/eEducation/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

const sendBuffer = 32

// client is one websocket session. The hub owns membership; the connection
// owns its pumps and send queue.
type client struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool

	uid     domain.UID
	channel domain.ChannelID
}

func (c *client) trySend(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrBackpressure
	}
}

func (c *client) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// channelState holds the members and the per-identity attribute records of
// one channel. Attribute keys follow the protocol: "teacher" for the
// teacher, the uid for everyone else.
type channelState struct {
	members map[domain.UID]*client
	attrs   map[string]domain.UserAttrs
}

func newChannelState() *channelState {
	return &channelState{
		members: make(map[domain.UID]*client),
		attrs:   make(map[string]domain.UserAttrs),
	}
}

// snapshot builds the full channel-attribute view sent to clients.
func (ch *channelState) snapshot() domain.ChannelSnapshot {
	snap := domain.ChannelSnapshot{Accounts: make([]domain.UserAttrs, 0, len(ch.attrs))}
	for _, rec := range ch.attrs {
		snap.Accounts = append(snap.Accounts, rec)
	}
	if teacher, ok := ch.attrs[domain.TeacherKey]; ok {
		t := teacher
		snap.Teacher = &t
		snap.Room = domain.RoomAttrs{
			TeacherID:  t.UID,
			BoardID:    t.BoardID,
			SharedID:   t.SharedID,
			LinkID:     t.LinkID,
			LockBoard:  t.LockBoard,
			ClassState: t.ClassState,
			MuteChat:   t.MuteChat,
		}
	}
	return snap
}

// Hub tracks logged-in clients and channel state.
type Hub struct {
	mu       sync.RWMutex
	byUID    map[domain.UID]*client
	channels map[domain.ChannelID]*channelState
}

func NewHub() *Hub {
	return &Hub{
		byUID:    make(map[domain.UID]*client),
		channels: make(map[domain.ChannelID]*channelState),
	}
}

// bind registers a logged-in uid, returning the previous session if the
// identity was already online elsewhere.
func (h *Hub) bind(uid domain.UID, c *client) (previous *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	previous = h.byUID[uid]
	h.byUID[uid] = c
	c.uid = uid
	log.Info().Str("module", "signalserver").Str("uid", string(uid)).Msg("client logged in")
	return previous
}

func (h *Hub) unbind(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.byUID[c.uid] == c {
		delete(h.byUID, c.uid)
	}
	c.uid = ""
}

func (h *Hub) lookup(uid domain.UID) (*client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.byUID[uid]
	return c, ok
}

func (h *Hub) online(uid domain.UID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.byUID[uid]
	return ok
}

func (h *Hub) getOrCreate(id domain.ChannelID) *channelState {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch, ok := h.channels[id]
	if !ok {
		ch = newChannelState()
		h.channels[id] = ch
		log.Info().Str("module", "signalserver").Str("channel", string(id)).Msg("channel created")
	}
	return ch
}

func (h *Hub) join(id domain.ChannelID, c *client) int {
	ch := h.getOrCreate(id)
	h.mu.Lock()
	defer h.mu.Unlock()
	ch.members[c.uid] = c
	c.channel = id
	return len(ch.members)
}

// leave removes c from its channel and reports the remaining member count;
// ok is false when c was not in a channel.
func (h *Hub) leave(c *client) (id domain.ChannelID, count int, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.channel == "" {
		return "", 0, false
	}
	id = c.channel
	c.channel = ""
	ch, found := h.channels[id]
	if !found {
		return id, 0, false
	}
	if ch.members[c.uid] == c {
		delete(ch.members, c.uid)
	}
	return id, len(ch.members), true
}

func (h *Hub) memberCount(id domain.ChannelID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if ch, ok := h.channels[id]; ok {
		return len(ch.members)
	}
	return 0
}

// membersOf snapshots the member connections of a channel for fan-out.
func (h *Hub) membersOf(id domain.ChannelID) []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ch, ok := h.channels[id]
	if !ok {
		return nil
	}
	out := make([]*client, 0, len(ch.members))
	for _, m := range ch.members {
		out = append(out, m)
	}
	return out
}

// setAttrs stores a full attribute record under key and returns the updated
// snapshot for fan-out.
func (h *Hub) setAttrs(id domain.ChannelID, key string, attrs domain.UserAttrs) domain.ChannelSnapshot {
	ch := h.getOrCreate(id)
	h.mu.Lock()
	defer h.mu.Unlock()
	ch.attrs[key] = attrs
	return ch.snapshot()
}

func (h *Hub) channelSnapshot(id domain.ChannelID) domain.ChannelSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if ch, ok := h.channels[id]; ok {
		return ch.snapshot()
	}
	return domain.ChannelSnapshot{Accounts: []domain.UserAttrs{}}
}

// ChannelCounts lists member counts for the REST surface.
func (h *Hub) ChannelCounts() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]int, len(h.channels))
	for id, ch := range h.channels {
		out[string(id)] = len(ch.members)
	}
	return out
}
