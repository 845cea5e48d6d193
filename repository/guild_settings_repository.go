package repository

import (
	"context"
	"fmt"

	"gamechannels/database"
	"gamechannels/domain/entities"

	"github.com/jackc/pgx/v5"
)

// GuildSettingsRepository stores one settings document per guild as a jsonb
// row. The document is read and replaced whole; a replace is a single
// UPDATE, so a crash mid-write can never leave a truncated document.
type GuildSettingsRepository struct {
	db *database.DB
}

// NewGuildSettingsRepository creates a new guild settings repository
func NewGuildSettingsRepository(db *database.DB) *GuildSettingsRepository {
	return &GuildSettingsRepository{db: db}
}

// GetOrCreateGuildSettings retrieves the guild's settings document,
// materializing it from the default template if none exists yet. Documents
// written by an older schema version are migrated on load and written back.
func (r *GuildSettingsRepository) GetOrCreateGuildSettings(ctx context.Context, guildID int64) (*entities.GuildSettings, error) {
	query := `
		SELECT document
		FROM guild_settings
		WHERE guild_id = $1
	`

	var raw []byte
	err := r.db.Pool.QueryRow(ctx, query, guildID).Scan(&raw)

	if err == nil {
		settings, migrated, err := decodeDocument(guildID, raw)
		if err != nil {
			return nil, err
		}
		if migrated {
			// Persist the migrated form so the legacy shape is read at
			// most once.
			if err := r.UpdateGuildSettings(ctx, settings); err != nil {
				return nil, fmt.Errorf("failed to persist migrated settings for guild %d: %w", guildID, err)
			}
		}
		return settings, nil
	}

	if err != pgx.ErrNoRows {
		return nil, fmt.Errorf("failed to get guild settings for guild %d: %w", guildID, err)
	}

	// If not found, create default settings
	settings := entities.NewGuildSettings(guildID)
	raw, encErr := encodeDocument(settings)
	if encErr != nil {
		return nil, encErr
	}

	insertQuery := `
		INSERT INTO guild_settings (guild_id, document)
		VALUES ($1, $2)
		ON CONFLICT (guild_id) DO NOTHING
	`
	if _, err := r.db.Pool.Exec(ctx, insertQuery, guildID, raw); err != nil {
		return nil, fmt.Errorf("failed to create guild settings for guild %d: %w", guildID, err)
	}

	return settings, nil
}

// UpdateGuildSettings replaces the guild's settings document.
func (r *GuildSettingsRepository) UpdateGuildSettings(ctx context.Context, settings *entities.GuildSettings) error {
	raw, err := encodeDocument(settings)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO guild_settings (guild_id, document)
		VALUES ($1, $2)
		ON CONFLICT (guild_id)
		DO UPDATE SET document = EXCLUDED.document, updated_at = now()
	`

	if _, err := r.db.Pool.Exec(ctx, query, settings.GuildID, raw); err != nil {
		return fmt.Errorf("failed to update guild settings for guild %d: %w", settings.GuildID, err)
	}

	return nil
}
