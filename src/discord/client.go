// Package discord is the bot side of the review service: role grants, direct messages and
// log-channel posts over a discordgo session.
package discord

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/stake-plus/mod-review/src/logging"
)

// Config holds the bot identity and the guild it manages.
type Config struct {
	Token   string
	GuildID string
	RoleID  string
	Logger  *zap.Logger
}

// Client is safe for concurrent use.
type Client struct {
	session Session
	guildID string
	roleID  string
	conn    *Connection
	connect singleflight.Group
	log     *zap.Logger
}

// New creates a bot session. Nothing connects until EnsureReady.
func New(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, errors.New("discord: token is required")
	}
	s, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds
	return NewWithSession(s, cfg), nil
}

// NewWithSession wraps an existing session.
func NewWithSession(s Session, cfg Config) *Client {
	c := &Client{
		session: s,
		guildID: cfg.GuildID,
		roleID:  cfg.RoleID,
		conn:    &Connection{},
		log:     logging.OrNop(cfg.Logger),
	}
	s.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		id := ""
		if r.User != nil {
			id = r.User.ID
		}
		c.conn.set(true, id)
		c.log.Info("discord session ready", zap.String("bot_id", id))
	})
	s.AddHandler(func(_ *discordgo.Session, _ *discordgo.Resumed) {
		c.conn.set(true, "")
		c.log.Info("discord session resumed")
	})
	s.AddHandler(func(_ *discordgo.Session, _ *discordgo.Disconnect) {
		c.conn.set(false, "")
		c.log.Warn("discord session disconnected")
	})
	return c
}

// Connection exposes the gateway state.
func (c *Client) Connection() *Connection { return c.conn }

// IsConnected reports the last known gateway state.
func (c *Client) IsConnected() bool { return c.conn.Connected() }

// EnsureReady opens the gateway when it is down. Concurrent callers share one attempt;
// a caller whose ctx ends first gets ErrUnavailable while the attempt carries on.
func (c *Client) EnsureReady(ctx context.Context) error {
	if c.conn.Connected() {
		return nil
	}
	ch := c.connect.DoChan("open", func() (interface{}, error) {
		if c.conn.Connected() {
			return nil, nil
		}
		err := c.session.Open()
		if err != nil && !errors.Is(err, discordgo.ErrWSAlreadyOpen) {
			c.log.Warn("discord connect failed", zap.Error(err))
			return nil, err
		}
		c.conn.set(true, "")
		return nil, nil
	})
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return fmt.Errorf("%w: %w", ErrUnavailable, res.Err)
		}
		return nil
	}
}

// Close shuts the gateway connection.
func (c *Client) Close() error {
	c.conn.set(false, "")
	return c.session.Close()
}

// botID returns the bot's own user id, asking the API when no Ready event carried it.
func (c *Client) botID(ctx context.Context) (string, error) {
	if id := c.conn.BotID(); id != "" {
		return id, nil
	}
	u, err := c.session.User("@me", discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("discord: resolve bot user: %w", err)
	}
	c.conn.set(c.conn.Connected(), u.ID)
	return u.ID, nil
}
