// Package audit mirrors review transitions to Discord and redis.
package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/redis/go-redis/v9"

	"github.com/stake-plus/mod-review/src/data"
	"github.com/stake-plus/mod-review/src/discord"
	"github.com/stake-plus/mod-review/src/types"
)

// Poster is the Discord client surface used by the sinks.
type Poster interface {
	PostLog(ctx context.Context, channelID, content string, embeds ...*discordgo.MessageEmbed) error
	ExecuteWebhook(ctx context.Context, webhookURL, content string, embeds ...*discordgo.MessageEmbed) error
}

// DiscordChannel posts one embed per transition to a log channel.
type DiscordChannel struct {
	Poster    Poster
	ChannelID string
}

func (d DiscordChannel) Emit(ctx context.Context, ev types.TransitionEvent) error {
	return d.Poster.PostLog(ctx, d.ChannelID, Summary(ev), Embed(ev))
}

// Webhook posts through a Discord webhook URL.
type Webhook struct {
	Poster Poster
	URL    string
}

func (w Webhook) Emit(ctx context.Context, ev types.TransitionEvent) error {
	return w.Poster.ExecuteWebhook(ctx, w.URL, Summary(ev), Embed(ev))
}

// Stream appends events to the review redis stream.
type Stream struct {
	Redis  *redis.Client
	MaxLen int64
}

func (s Stream) Emit(ctx context.Context, ev types.TransitionEvent) error {
	if _, err := data.PublishTransition(ctx, s.Redis, s.MaxLen, ev); err != nil {
		return fmt.Errorf("publish transition: %w", err)
	}
	return nil
}

// Sink matches review.Sink.
type Sink interface {
	Emit(ctx context.Context, ev types.TransitionEvent) error
}

// Multi emits to every sink and joins the failures.
type Multi []Sink

func (m Multi) Emit(ctx context.Context, ev types.TransitionEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop drops events.
type Nop struct{}

func (Nop) Emit(context.Context, types.TransitionEvent) error { return nil }

// Summary is the plain-text line posted alongside the embed.
func Summary(ev types.TransitionEvent) string {
	verb := "accepted"
	if ev.Action == types.ActionReject {
		verb = "rejected"
	}
	s := fmt.Sprintf("Application %s (%s) %s by %s", ev.ApplicationID, ev.DiscordUsername, verb, ev.Reviewer)
	if !ev.Committed {
		s += " - status NOT saved"
	}
	return s
}

const (
	colorAccepted = 0x57F287
	colorRejected = 0xED4245
	colorFailed   = 0xFEE75C
)

// Embed renders the event for a log channel.
func Embed(ev types.TransitionEvent) *discordgo.MessageEmbed {
	color := colorAccepted
	if ev.Action == types.ActionReject {
		color = colorRejected
	}
	if !ev.Committed || ev.Error != "" {
		color = colorFailed
	}
	e := discord.Embed("Application "+string(ev.ApplicationID)+" "+string(ev.Action), "", color)
	if !ev.At.IsZero() {
		e.Timestamp = ev.At.UTC().Format(time.RFC3339)
	}
	discord.AddField(e, "Applicant", fmt.Sprintf("%s (<@%s>)", ev.DiscordUsername, ev.DiscordID), true)
	discord.AddField(e, "Reviewer", ev.Reviewer, true)
	if ev.Action == types.ActionAccept {
		role := yesNo(ev.RoleAssigned)
		if ev.AlreadyHadRole {
			role = "already held"
		}
		discord.AddField(e, "Role", role, true)
	}
	discord.AddField(e, "DM", yesNo(ev.DMSent), true)
	if ev.IsTestIdentity {
		discord.AddField(e, "Test identity", "yes", true)
	}
	discord.AddField(e, "Saved", yesNo(ev.Committed), true)
	discord.AddField(e, "Reason", ev.Reason, false)
	discord.AddField(e, "Problems", ev.Error, false)
	return e
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
