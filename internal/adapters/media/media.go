// Package media satisfies the audio/video transport boundary. The session
// core only ever tears the media client down; the real engine lives in a
// separate process layer.
package media

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Client tracks join state and releases it on Exit.
type Client struct {
	mu     sync.Mutex
	joined bool
}

func NewClient() *Client { return &Client{} }

// SetJoined records the media join state reported by the engine.
func (c *Client) SetJoined(joined bool) {
	c.mu.Lock()
	c.joined = joined
	c.mu.Unlock()
}

func (c *Client) Joined() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joined
}

func (c *Client) Exit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.joined {
		return nil
	}
	c.joined = false
	log.Info().Str("module", "media").Msg("media session closed")
	return nil
}
