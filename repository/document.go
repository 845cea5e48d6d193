package repository

import (
	"encoding/json"
	"fmt"
	"sort"

	"gamechannels/domain/entities"

	log "github.com/sirupsen/logrus"
)

// legacyDocument is the shape of settings documents written before the
// schema carried a version field: thresholds and the required role used
// unprefixed keys, and subcommunities were an object keyed by name with a
// redundant member list.
type legacyDocument struct {
	Enabled             bool                          `json:"enabled"`
	PlayerThreshold     int                           `json:"playerthreshold"`
	RequiredRole        int64                         `json:"requiredrole"`
	WrapperCategory     int64                         `json:"wrapper_category"`
	AdminChannelID      int64                         `json:"admin_channel_id"`
	InstructionsChannel int64                         `json:"instructions_channel"`
	InstructionsMessage int64                         `json:"instructions_message"`
	Announcement        string                        `json:"subcommunity_announcement"`
	Subcommunities      map[string]legacySubcommunity `json:"subcommunities"`
}

type legacySubcommunity struct {
	RoleID       int64    `json:"role_id"`
	ChannelID    int64    `json:"channel_id"`
	Games        []string `json:"games"`
	Users        []int64  `json:"users"`
	UsersWhoLeft []int64  `json:"users_who_left"`
}

// decodeDocument unmarshals a stored settings document, migrating documents
// written by an older schema version. Defaults are filled for fields the
// stored document omits. The second return value reports whether the
// document was migrated and should be written back.
func decodeDocument(guildID int64, raw []byte) (*entities.GuildSettings, bool, error) {
	var probe struct {
		SchemaVersion int `json:"schema_version"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, false, fmt.Errorf("failed to probe settings document for guild %d: %w", guildID, err)
	}

	switch probe.SchemaVersion {
	case entities.CurrentSchemaVersion:
		var settings entities.GuildSettings
		if err := json.Unmarshal(raw, &settings); err != nil {
			return nil, false, fmt.Errorf("failed to decode settings document for guild %d: %w", guildID, err)
		}
		settings.GuildID = guildID
		applyDefaults(&settings)
		return &settings, false, nil

	case 0:
		settings, err := migrateLegacyDocument(guildID, raw)
		return settings, err == nil, err

	default:
		return nil, false, fmt.Errorf("settings document for guild %d has unknown schema version %d", guildID, probe.SchemaVersion)
	}
}

// migrateLegacyDocument upgrades a version-0 document in place: games
// become aliases, users_who_left becomes the exclusion list, and the
// redundant member list is dropped (the role is the source of truth).
func migrateLegacyDocument(guildID int64, raw []byte) (*entities.GuildSettings, error) {
	var legacy legacyDocument
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return nil, fmt.Errorf("failed to decode legacy settings document for guild %d: %w", guildID, err)
	}

	settings := entities.NewGuildSettings(guildID)
	settings.Enabled = legacy.Enabled
	if legacy.PlayerThreshold >= 1 {
		settings.PlayerThreshold = legacy.PlayerThreshold
	}
	if legacy.RequiredRole != 0 {
		settings.RequiredRoleID = &legacy.RequiredRole
	}
	if legacy.WrapperCategory != 0 {
		settings.CategoryID = &legacy.WrapperCategory
	}
	if legacy.AdminChannelID != 0 {
		settings.AdminChannelID = &legacy.AdminChannelID
	}
	if legacy.InstructionsChannel != 0 {
		settings.InstructionsChannelID = &legacy.InstructionsChannel
	}
	if legacy.InstructionsMessage != 0 {
		settings.InstructionsMessageID = &legacy.InstructionsMessage
	}
	settings.AnnouncementTemplate = legacy.Announcement

	// Legacy documents stored subcommunities as an object, which carries no
	// order; sort by name so traversal order is stable after migration.
	names := make([]string, 0, len(legacy.Subcommunities))
	for name := range legacy.Subcommunities {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		sc := legacy.Subcommunities[name]
		aliases := sc.Games
		if len(aliases) == 0 {
			aliases = []string{name}
		}
		settings.Subcommunities = append(settings.Subcommunities, &entities.Subcommunity{
			Name:          name,
			RoleID:        sc.RoleID,
			ChannelID:     sc.ChannelID,
			Aliases:       aliases,
			ExcludedUsers: sc.UsersWhoLeft,
		})
	}

	log.WithFields(log.Fields{
		"guild_id":       guildID,
		"subcommunities": len(settings.Subcommunities),
	}).Info("Migrated legacy settings document")

	return settings, nil
}

func applyDefaults(settings *entities.GuildSettings) {
	if settings.PlayerThreshold < 1 {
		settings.PlayerThreshold = entities.DefaultPlayerThreshold
	}
	if settings.Subcommunities == nil {
		settings.Subcommunities = []*entities.Subcommunity{}
	}
}

// encodeDocument marshals a settings document at the current schema version.
func encodeDocument(settings *entities.GuildSettings) ([]byte, error) {
	settings.SchemaVersion = entities.CurrentSchemaVersion
	raw, err := json.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to encode settings document for guild %d: %w", settings.GuildID, err)
	}
	return raw, nil
}
