package entities

import "strings"

// Subcommunity is the paired (role, channel) entity representing one
// game-based community inside a guild. RoleID and ChannelID are assigned
// once at creation and never change for the lifetime of the record.
// Membership itself is not stored here; the Discord role is the source of
// truth. ExcludedUsers is a negative overlay: members who explicitly left
// and must not be auto-enrolled again.
type Subcommunity struct {
	Name          string   `json:"name"`
	RoleID        int64    `json:"role_id"`
	ChannelID     int64    `json:"channel_id"`
	Aliases       []string `json:"aliases"`
	ExcludedUsers []int64  `json:"excluded_users,omitempty"`
}

// Matches reports whether the keyword equals the subcommunity name or any
// of its aliases, case-insensitively.
func (sc *Subcommunity) Matches(keyword string) bool {
	if strings.EqualFold(keyword, sc.Name) {
		return true
	}
	for _, alias := range sc.Aliases {
		if strings.EqualFold(keyword, alias) {
			return true
		}
	}
	return false
}

// IsExcluded reports whether the user previously left this subcommunity
// and must not be auto-enrolled.
func (sc *Subcommunity) IsExcluded(userID int64) bool {
	for _, id := range sc.ExcludedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// AddExclusion adds the user to the exclusion list. Returns true if the
// list changed.
func (sc *Subcommunity) AddExclusion(userID int64) bool {
	if sc.IsExcluded(userID) {
		return false
	}
	sc.ExcludedUsers = append(sc.ExcludedUsers, userID)
	return true
}

// ClearExclusion removes the user from the exclusion list. Returns true if
// the list changed.
func (sc *Subcommunity) ClearExclusion(userID int64) bool {
	for i, id := range sc.ExcludedUsers {
		if id == userID {
			sc.ExcludedUsers = append(sc.ExcludedUsers[:i], sc.ExcludedUsers[i+1:]...)
			return true
		}
	}
	return false
}

// NormalizeChannelName converts an arbitrary game name into the form
// Discord uses for text channel names: lowercase, spaces as dashes, and
// only characters Discord accepts.
func NormalizeChannelName(s string) string {
	const allowed = "qwertyuiopasdfghjklzxcvbnm-_1234567890"
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "-")
	var b strings.Builder
	for _, c := range s {
		if strings.ContainsRune(allowed, c) {
			b.WriteRune(c)
		}
	}
	return b.String()
}
