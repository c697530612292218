// Package platform defines the boundary with the external chat platform:
// member lookup, role mutation, and channel replies. Implementations are
// network clients with their own failure modes; callers treat every error
// as a best-effort failure, never as a reason to unwind a ledger mutation.
package platform

import (
	"context"
	"errors"
)

// ErrMemberNotFound reports that the user is not (or no longer) a member
// of the guild.
var ErrMemberNotFound = errors.New("platform: member not found")

// Member is a guild member snapshot as returned by the platform.
type Member struct {
	ID    string   `json:"id"`
	Roles []string `json:"roles"`
}

// Directory resolves user ids to guild members.
type Directory interface {
	Member(ctx context.Context, guildID, userID string) (*Member, error)
}

// RoleClient mutates and inspects role membership.
type RoleClient interface {
	HasRole(ctx context.Context, guildID, userID, roleID string) (bool, error)
	GrantRole(ctx context.Context, guildID, userID, roleID string) error
	RevokeRole(ctx context.Context, guildID, userID, roleID string) error
}

// Notifier posts a reply into a channel, referencing the message that
// triggered it. Used for the user-visible capacity notice.
type Notifier interface {
	Notify(ctx context.Context, channelID, replyToMessageID, text string) error
}
