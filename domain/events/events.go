package events

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeSubcommunityCreated EventType = "subcommunity_created"
	EventTypeSubcommunityRemoved EventType = "subcommunity_removed"
	EventTypeMemberJoined        EventType = "member_joined"
	EventTypeMemberLeft          EventType = "member_left"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// SubcommunityCreatedEvent represents a subcommunity that was created,
// manually or by the reconciliation loop.
type SubcommunityCreatedEvent struct {
	GuildID   int64
	Name      string
	RoleID    int64
	ChannelID int64
	Automatic bool
}

func (e SubcommunityCreatedEvent) Type() EventType {
	return EventTypeSubcommunityCreated
}

// SubcommunityRemovedEvent represents a subcommunity that was removed.
type SubcommunityRemovedEvent struct {
	GuildID   int64
	Name      string
	RoleID    int64
	ChannelID int64
}

func (e SubcommunityRemovedEvent) Type() EventType {
	return EventTypeSubcommunityRemoved
}

// MemberJoinedEvent represents a member gaining subcommunity membership.
type MemberJoinedEvent struct {
	GuildID   int64
	UserID    int64
	Name      string
	RoleID    int64
	Automatic bool
}

func (e MemberJoinedEvent) Type() EventType {
	return EventTypeMemberJoined
}

// MemberLeftEvent represents a member explicitly leaving a subcommunity.
type MemberLeftEvent struct {
	GuildID int64
	UserID  int64
	Name    string
	RoleID  int64
}

func (e MemberLeftEvent) Type() EventType {
	return EventTypeMemberLeft
}
