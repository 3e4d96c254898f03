package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// ResolveMember fetches a guild member.
func (c *Client) ResolveMember(ctx context.Context, userID string) (*discordgo.Member, error) {
	m, err := c.session.GuildMember(c.guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("resolve member %s: %w", userID, classify(err))
	}
	return m, nil
}

// ResolveRole fetches a guild role by id.
func (c *Client) ResolveRole(ctx context.Context, roleID string) (*discordgo.Role, error) {
	roles, err := c.session.GuildRoles(c.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", classify(err))
	}
	if r := findRole(roles, roleID); r != nil {
		return r, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrRoleNotFound, roleID)
}

func findRole(roles []*discordgo.Role, id string) *discordgo.Role {
	for _, r := range roles {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// GrantRole adds the configured role to a member. It reports alreadyHad when the member
// holds the role and nothing was changed.
func (c *Client) GrantRole(ctx context.Context, userID string) (alreadyHad bool, err error) {
	if err := c.EnsureReady(ctx); err != nil {
		return false, err
	}
	member, err := c.ResolveMember(ctx, userID)
	if err != nil {
		return false, err
	}
	if hasRole(member, c.roleID) {
		return true, nil
	}

	roles, err := c.session.GuildRoles(c.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("list roles: %w", classify(err))
	}
	role := findRole(roles, c.roleID)
	if role == nil {
		return false, fmt.Errorf("%w: %s", ErrRoleNotFound, c.roleID)
	}
	if role.Managed {
		return false, fmt.Errorf("%w: role %s is managed by an integration", ErrHierarchy, role.Name)
	}
	if err := c.checkHierarchy(ctx, roles, role); err != nil {
		return false, err
	}

	if err := c.session.GuildMemberRoleAdd(c.guildID, userID, c.roleID, discordgo.WithContext(ctx)); err != nil {
		return false, fmt.Errorf("add role %s to %s: %w", c.roleID, userID, classify(err))
	}
	c.log.Info("role granted", zap.String("discord_id", userID), zap.String("role_id", c.roleID))
	return false, nil
}

// checkHierarchy verifies the bot's highest role sits above target.
func (c *Client) checkHierarchy(ctx context.Context, roles []*discordgo.Role, target *discordgo.Role) error {
	botID, err := c.botID(ctx)
	if err != nil {
		return err
	}
	bot, err := c.ResolveMember(ctx, botID)
	if err != nil {
		return err
	}
	positions := make(map[string]int, len(roles))
	for _, r := range roles {
		positions[r.ID] = r.Position
	}
	top := 0
	for _, id := range bot.Roles {
		if p := positions[id]; p > top {
			top = p
		}
	}
	if top <= target.Position {
		return fmt.Errorf("%w: bot top position %d, %s at %d", ErrHierarchy, top, target.Name, target.Position)
	}
	return nil
}

// HasRole checks whether a user has a role in the guild. An empty roleID is never held.
func (c *Client) HasRole(ctx context.Context, userID, roleID string) (bool, error) {
	if roleID == "" {
		return false, nil
	}
	m, err := c.ResolveMember(ctx, userID)
	if err != nil {
		return false, err
	}
	return hasRole(m, roleID), nil
}

func hasRole(m *discordgo.Member, roleID string) bool {
	for _, role := range m.Roles {
		if role == roleID {
			return true
		}
	}
	return false
}
