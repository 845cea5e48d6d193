package interfaces

import (
	"context"

	"gamechannels/domain/entities"
	"gamechannels/domain/events"
)

// RegistryService is the shared mutation surface over a guild's
// subcommunity registry. Explicit commands and the reconciliation loop are
// its two callers; every mutating operation serializes against other
// mutations for the same guild.
type RegistryService interface {
	// Settings returns the guild's settings document, created from defaults
	// on first access.
	Settings(ctx context.Context, guildID int64) (*entities.GuildSettings, error)

	// Find resolves a keyword to a subcommunity by name, alias, or the
	// normalized-channel-name form of its channel. Returns ErrNotFound when
	// nothing matches.
	Find(ctx context.Context, guildID int64, keyword string) (*entities.Subcommunity, error)

	// Create allocates a fresh role and channel for the named game and
	// persists the record. Returns ErrAlreadyExists when the name or an
	// alias is already claimed by a live subcommunity.
	Create(ctx context.Context, guildID int64, name string) (*entities.Subcommunity, error)

	// Remove resolves a subcommunity by keyword, or by the invoking channel
	// when keyword is empty, and deletes its role, channel, and record in
	// that order.
	Remove(ctx context.Context, guildID int64, keyword string, contextChannelID int64) error

	// Join grants the caller membership of the matched subcommunity and
	// clears any exclusion. Granting to an existing holder is a no-op.
	Join(ctx context.Context, guildID int64, keyword string, userID int64) error

	// Leave revokes membership and records the user on the exclusion list
	// so reconciliation will not re-enroll them. When keyword is empty the
	// target is resolved from the invoking channel. Returns ErrNotMember
	// when the user does not hold the subcommunity role.
	Leave(ctx context.Context, guildID, userID, contextChannelID int64, keyword string) error

	// SetEnabled toggles automatic reconciliation for the guild. Returns
	// false when the guild was already in the requested state.
	SetEnabled(ctx context.Context, guildID int64, enabled bool) (bool, error)

	// SetThreshold updates the player threshold. Values below 1 are
	// rejected with ErrInvalidInput.
	SetThreshold(ctx context.Context, guildID int64, threshold int) error

	// SetRequiredRole restricts privileged commands to holders of the role,
	// which must exist in the guild.
	SetRequiredRole(ctx context.Context, guildID, roleID int64) error

	// UpdateInfoMessage rewrites the instructions message with the current
	// game list, initializing the instructions channel on first use.
	UpdateInfoMessage(ctx context.Context, guildID int64) error

	// InfoText renders the current game list with live member counts, the
	// same text UpdateInfoMessage writes to the instructions channel.
	InfoText(ctx context.Context, guildID int64) (string, error)
}

// Reconciler runs one reconciliation pass for a guild: snapshot presence,
// create subcommunities crossing the threshold, and auto-enroll eligible
// members. Disabled guilds are skipped without side effects.
type Reconciler interface {
	ReconcileGuild(ctx context.Context, guildID int64) error
}

// PlatformGateway is the narrow surface over the Discord API that the
// domain depends on. Every method returns an explicit error wrapping the
// failed operation; callers decide at each site whether a failure aborts
// the operation or is logged and skipped.
type PlatformGateway interface {
	CreateRole(ctx context.Context, guildID int64, name string) (int64, error)
	DeleteRole(ctx context.Context, guildID, roleID int64) error
	RoleExists(ctx context.Context, guildID, roleID int64) (bool, error)

	CreateCategory(ctx context.Context, guildID int64, name string) (int64, error)
	CreateChannel(ctx context.Context, guildID int64, name string, categoryID int64) (int64, error)
	DeleteChannel(ctx context.Context, guildID, channelID int64) error
	ChannelName(ctx context.Context, guildID, channelID int64) (string, error)

	// RestrictChannel hides the channel from @everyone and grants read
	// access to holders of the role.
	RestrictChannel(ctx context.Context, guildID, channelID, roleID int64) error

	GrantRole(ctx context.Context, guildID, userID, roleID int64) error
	RevokeRole(ctx context.Context, guildID, userID, roleID int64) error
	MemberHasRole(ctx context.Context, guildID, userID, roleID int64) (bool, error)
	CountRoleMembers(ctx context.Context, guildID, roleID int64) (int, error)

	SendMessage(ctx context.Context, channelID int64, content string) (int64, error)
	EditMessage(ctx context.Context, channelID, messageID int64, content string) error

	// SnapshotPresences returns the current activity snapshot of the
	// guild's members.
	SnapshotPresences(ctx context.Context, guildID int64) ([]entities.MemberPresence, error)

	GuildRoles(ctx context.Context, guildID int64) ([]entities.RoleInfo, error)
	GuildChannels(ctx context.Context, guildID int64) ([]entities.ChannelInfo, error)
}

// EventPublisher defines the interface for publishing lifecycle events.
type EventPublisher interface {
	Publish(event events.Event) error
}
