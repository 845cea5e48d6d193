package entities

import "time"

// MemberPresence is one member's state in a presence snapshot: what they are
// playing right now, whether they are an automated account, and which roles
// they currently hold. Activity is empty when the member is not playing
// anything.
type MemberPresence struct {
	UserID   int64
	Bot      bool
	Activity string
	RoleIDs  []int64
}

// HasRole reports whether the snapshot shows the member holding the role.
func (mp *MemberPresence) HasRole(roleID int64) bool {
	for _, id := range mp.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// RoleInfo describes one guild role, for operator listings.
type RoleInfo struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// ChannelInfo describes one guild channel, for operator listings.
type ChannelInfo struct {
	ID       int64
	Name     string
	ParentID int64
}
