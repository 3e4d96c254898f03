package discord

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// no pings from bot-authored review traffic
var noMentions = &discordgo.MessageAllowedMentions{Parse: []discordgo.AllowedMentionType{}}

// SendDirectMessage opens a DM channel with the user and posts one embed.
func (c *Client) SendDirectMessage(ctx context.Context, userID, title, body string, color int) error {
	if err := c.EnsureReady(ctx); err != nil {
		return err
	}
	ch, err := c.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("open DM with %s: %w", userID, classify(err))
	}
	msg := &discordgo.MessageSend{
		Embeds:          []*discordgo.MessageEmbed{Embed(title, body, color)},
		AllowedMentions: noMentions,
	}
	if _, err := c.session.ChannelMessageSendComplex(ch.ID, msg, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send DM to %s: %w", userID, classify(err))
	}
	return nil
}

// PostLog posts content and embeds to a guild channel.
func (c *Client) PostLog(ctx context.Context, channelID, content string, embeds ...*discordgo.MessageEmbed) error {
	if err := c.EnsureReady(ctx); err != nil {
		return err
	}
	msg := &discordgo.MessageSend{
		Content:         truncateForDiscord(WrapURLsNoEmbed(content), MaxDiscordMessageLen),
		Embeds:          embeds,
		AllowedMentions: noMentions,
	}
	if _, err := c.session.ChannelMessageSendComplex(channelID, msg, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("post to channel %s: %w", channelID, classify(err))
	}
	return nil
}

// ExecuteWebhook posts through a webhook URL. Webhooks need no gateway connection.
func (c *Client) ExecuteWebhook(ctx context.Context, webhookURL, content string, embeds ...*discordgo.MessageEmbed) error {
	id, token, err := ParseWebhookURL(webhookURL)
	if err != nil {
		return err
	}
	params := &discordgo.WebhookParams{
		Content:         truncateForDiscord(WrapURLsNoEmbed(content), MaxDiscordMessageLen),
		Embeds:          embeds,
		AllowedMentions: noMentions,
	}
	if _, err := c.session.WebhookExecute(id, token, false, params, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("execute webhook %s: %w", id, classify(err))
	}
	return nil
}

// ParseWebhookURL splits https://discord.com/api/webhooks/{id}/{token}.
func ParseWebhookURL(raw string) (id, token string, err error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", "", ErrBadWebhookURL
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", ErrBadWebhookURL
}
