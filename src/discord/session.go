package discord

import (
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Session is the part of *discordgo.Session the client uses.
type Session interface {
	Open() error
	Close() error
	AddHandler(handler interface{}) func()
	User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error)
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Connection tracks gateway state as reported by session events.
type Connection struct {
	mu        sync.RWMutex
	connected bool
	botID     string
	changed   time.Time
}

func (c *Connection) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *Connection) BotID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.botID
}

// Since returns when the state last flipped.
func (c *Connection) Since() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.changed
}

func (c *Connection) set(connected bool, botID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected != connected {
		c.changed = time.Now()
	}
	c.connected = connected
	if botID != "" {
		c.botID = botID
	}
}
