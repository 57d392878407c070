// Package signal implements core.SignalClient over a websocket connection
// to the signaling server.
package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/CosmosZhu/eEducation/internal/core"
	"github.com/CosmosZhu/eEducation/internal/protocol"
)

var (
	ErrClosed       = errors.New("signal client closed")
	ErrBackpressure = errors.New("backpressure")
)

const (
	sendBuffer   = 32
	writeTimeout = 5 * time.Second
)

// Client is a request/response websocket client; unsolicited server frames
// become core.Events on the Events channel.
type Client struct {
	conn *websocket.Conn
	send chan []byte

	mu       sync.Mutex
	pending  map[string]chan protocol.Response
	loggedIn bool
	joined   string
	closed   bool

	events chan core.Event
	done   chan struct{}
}

// Dial connects to the signaling server and starts the IO pumps.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial signal server: %w", err)
	}
	c := &Client{
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		pending: make(map[string]chan protocol.Response),
		events:  make(chan core.Event, sendBuffer),
		done:    make(chan struct{}),
	}
	go c.writePump()
	go c.readPump()
	return c, nil
}

// Close tears the connection down and fails every in-flight call.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()
	close(c.done)
	_ = c.conn.Close()
}

func (c *Client) trySend(data []byte) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrBackpressure
	}
}

func (c *Client) writePump() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				log.Error().Err(err).Str("module", "signal.client").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal.client").Msg("writePump write error")
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.Close()
		close(c.events)
	}()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				log.Warn().Err(err).Str("module", "signal.client").Msg("readPump read error")
			}
			return
		}
		c.handleFrame(data)
	}
}

func (c *Client) handleFrame(data []byte) {
	var head protocol.Head
	if err := json.Unmarshal(data, &head); err != nil {
		log.Error().Err(err).Str("module", "signal.client").Msg("bad json frame")
		return
	}

	if head.Type == protocol.MsgResponse {
		var resp protocol.Response
		if err := json.Unmarshal(data, &resp); err != nil {
			log.Error().Err(err).Str("module", "signal.client").Msg("bad response frame")
			return
		}
		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.mu.Unlock()
		if ok {
			ch <- resp
			close(ch)
		}
		return
	}

	ev, err := decodeEvent(head.Type, data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal.client").Str("type", head.Type).Msg("dropping frame")
		return
	}
	select {
	case c.events <- ev:
	default:
		log.Warn().Str("module", "signal.client").Str("type", head.Type).Msg("event buffer full, dropping")
	}
}

// call sends a request and blocks until its response, ctx expiry or client
// close. The request's ID must already be set.
func (c *Client) call(ctx context.Context, id string, req any, out any) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	ch := make(chan protocol.Response, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.trySend(data); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return err
	}

	select {
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return ctx.Err()
	case resp, ok := <-ch:
		if !ok {
			return ErrClosed
		}
		if resp.Error != "" {
			return errors.New(resp.Error)
		}
		if out != nil {
			if err := json.Unmarshal(resp.Data, out); err != nil {
				return fmt.Errorf("unmarshal response: %w", err)
			}
		}
		return nil
	}
}

func newHead(msgType string) protocol.Head {
	return protocol.Head{Type: msgType, ID: uuid.NewString()}
}
