package entities

import (
	"sort"
	"strings"
)

// CurrentSchemaVersion is the version written into every persisted guild
// settings document. Documents with an older version are migrated on load.
const CurrentSchemaVersion = 1

// DefaultPlayerThreshold is the number of members that must play the same
// game simultaneously before a subcommunity is created automatically.
const DefaultPlayerThreshold = 4

// DefaultAnnouncementTemplate is posted into a freshly created channel when
// no per-guild template is configured. ##game_name## is replaced with the
// game name.
const DefaultAnnouncementTemplate = "This channel for **##game_name##** was just created automatically, have fun! :)"

// GuildSettings is the per-guild settings document. One document exists per
// guild, created lazily from defaults on first access and never destroyed.
//
// Subcommunities is an ordered slice rather than a map: lookup by keyword
// walks it in insertion order, so the first-match rule of FindByKeyword is
// deterministic.
type GuildSettings struct {
	SchemaVersion         int             `json:"schema_version"`
	GuildID               int64           `json:"guild_id"`
	Enabled               bool            `json:"enabled"`
	PlayerThreshold       int             `json:"player_threshold"`
	RequiredRoleID        *int64          `json:"required_role_id,omitempty"`
	CategoryID            *int64          `json:"category_id,omitempty"`
	AdminChannelID        *int64          `json:"admin_channel_id,omitempty"`
	InstructionsChannelID *int64          `json:"instructions_channel_id,omitempty"`
	InstructionsMessageID *int64          `json:"instructions_message_id,omitempty"`
	WelcomeTemplate       string          `json:"welcome_template,omitempty"`
	AnnouncementTemplate  string          `json:"announcement_template,omitempty"`
	Subcommunities        []*Subcommunity `json:"subcommunities"`
}

// NewGuildSettings returns the default settings document for a guild.
func NewGuildSettings(guildID int64) *GuildSettings {
	return &GuildSettings{
		SchemaVersion:   CurrentSchemaVersion,
		GuildID:         guildID,
		Enabled:         false,
		PlayerThreshold: DefaultPlayerThreshold,
		Subcommunities:  []*Subcommunity{},
	}
}

// FindByKeyword returns the first subcommunity, in insertion order, whose
// name or alias matches the keyword case-insensitively. Overlapping aliases
// across two records are rejected at creation time; if a stale document
// contains one anyway, the earliest-inserted record wins.
func (gs *GuildSettings) FindByKeyword(keyword string) *Subcommunity {
	for _, sc := range gs.Subcommunities {
		if sc.Matches(keyword) {
			return sc
		}
	}
	return nil
}

// FindByChannelID returns the subcommunity owning the given channel, or nil.
func (gs *GuildSettings) FindByChannelID(channelID int64) *Subcommunity {
	for _, sc := range gs.Subcommunities {
		if sc.ChannelID == channelID {
			return sc
		}
	}
	return nil
}

// ClaimedBy returns the subcommunity whose name or alias already claims the
// given keyword, or nil. Used to guard creation against duplicate matches.
func (gs *GuildSettings) ClaimedBy(keyword string) *Subcommunity {
	return gs.FindByKeyword(keyword)
}

// Add appends a subcommunity. Returns false if its name or any alias is
// already claimed by a live record.
func (gs *GuildSettings) Add(sc *Subcommunity) bool {
	if gs.ClaimedBy(sc.Name) != nil {
		return false
	}
	for _, alias := range sc.Aliases {
		if gs.ClaimedBy(alias) != nil {
			return false
		}
	}
	gs.Subcommunities = append(gs.Subcommunities, sc)
	return true
}

// Remove deletes the subcommunity with the given name (case-insensitive).
// Returns true if a record was removed.
func (gs *GuildSettings) Remove(name string) bool {
	for i, sc := range gs.Subcommunities {
		if strings.EqualFold(sc.Name, name) {
			gs.Subcommunities = append(gs.Subcommunities[:i], gs.Subcommunities[i+1:]...)
			return true
		}
	}
	return false
}

// HasRequiredRole reports whether a caller holding the given roles may use
// privileged commands. When no required role is configured every caller
// passes.
func (gs *GuildSettings) HasRequiredRole(roleIDs []int64) bool {
	if gs.RequiredRoleID == nil || *gs.RequiredRoleID == 0 {
		return true
	}
	for _, id := range roleIDs {
		if id == *gs.RequiredRoleID {
			return true
		}
	}
	return false
}

// SortedNames returns subcommunity names ordered case-insensitively, for
// user-facing listings.
func (gs *GuildSettings) SortedNames() []string {
	names := make([]string, 0, len(gs.Subcommunities))
	for _, sc := range gs.Subcommunities {
		names = append(names, sc.Name)
	}
	sort.Slice(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})
	return names
}

// AnnouncementFor renders the announcement for a freshly created channel.
func (gs *GuildSettings) AnnouncementFor(gameName string) string {
	template := gs.AnnouncementTemplate
	if template == "" {
		template = DefaultAnnouncementTemplate
	}
	return strings.ReplaceAll(template, "##game_name##", gameName)
}

// WelcomeFor renders the message posted into a subcommunity's channel when a
// member joins explicitly. There is no default: guilds that have not
// configured a template get no welcome message, and the empty return signals
// that.
func (gs *GuildSettings) WelcomeFor(gameName string) string {
	if gs.WelcomeTemplate == "" {
		return ""
	}
	return strings.ReplaceAll(gs.WelcomeTemplate, "##game_name##", gameName)
}
