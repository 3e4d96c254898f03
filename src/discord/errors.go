package discord

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

var (
	ErrUnavailable        = errors.New("discord unavailable")
	ErrMemberNotFound     = errors.New("member not found in guild")
	ErrRoleNotFound       = errors.New("role not found in guild")
	ErrHierarchy          = errors.New("bot role is not above the target role")
	ErrMissingPermissions = errors.New("bot lacks permission")
	ErrDMUndeliverable    = errors.New("user does not accept direct messages")
	ErrBadWebhookURL      = errors.New("invalid discord webhook url")
)

// classify maps Discord JSON error codes onto the package sentinels, keeping the original
// error in the chain.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) || rest.Message == nil {
		return err
	}
	switch rest.Message.Code {
	case discordgo.ErrCodeUnknownMember, discordgo.ErrCodeUnknownUser:
		return fmt.Errorf("%w: %w", ErrMemberNotFound, err)
	case discordgo.ErrCodeUnknownRole:
		return fmt.Errorf("%w: %w", ErrRoleNotFound, err)
	case discordgo.ErrCodeMissingPermissions, discordgo.ErrCodeMissingAccess:
		return fmt.Errorf("%w: %w", ErrMissingPermissions, err)
	case discordgo.ErrCodeCannotSendMessagesToThisUser:
		return fmt.Errorf("%w: %w", ErrDMUndeliverable, err)
	}
	return err
}
