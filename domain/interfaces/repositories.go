package interfaces

import (
	"context"

	"gamechannels/domain/entities"
)

// GuildSettingsRepository defines the interface for the per-guild settings
// document store. The document is read and replaced whole; serialization of
// concurrent read-modify-write cycles is the caller's responsibility (the
// registry holds a per-guild lock across the full span).
type GuildSettingsRepository interface {
	// GetOrCreateGuildSettings retrieves the guild's settings document,
	// materializing it from the default template if none exists yet.
	// Documents written by an older schema version are migrated on load.
	GetOrCreateGuildSettings(ctx context.Context, guildID int64) (*entities.GuildSettings, error)

	// UpdateGuildSettings replaces the guild's settings document atomically.
	UpdateGuildSettings(ctx context.Context, settings *entities.GuildSettings) error
}
