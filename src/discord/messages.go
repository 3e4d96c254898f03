package discord

import (
	"time"

	"github.com/bwmarrin/discordgo"
)

// Discord limits.
const (
	MaxDiscordMessageLen = 2000
	maxEmbedTitle        = 256
	maxEmbedDescription  = 4096
	maxFieldName         = 256
	maxFieldValue        = 1024
	maxEmbedFields       = 25
)

// Embed builds a single-embed message body, trimmed to Discord's limits.
func Embed(title, body string, color int) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       truncateForDiscord(title, maxEmbedTitle),
		Description: truncateForDiscord(body, maxEmbedDescription),
		Color:       color,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
}

// AddField appends an inline field unless the embed is full or value is blank.
func AddField(e *discordgo.MessageEmbed, name, value string, inline bool) {
	if value == "" || len(e.Fields) >= maxEmbedFields {
		return
	}
	e.Fields = append(e.Fields, &discordgo.MessageEmbedField{
		Name:   truncateForDiscord(name, maxFieldName),
		Value:  truncateForDiscord(value, maxFieldValue),
		Inline: inline,
	})
}

func truncateForDiscord(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	if limit <= 1 {
		return string(runes[:limit])
	}
	return string(runes[:limit-1]) + "…"
}
