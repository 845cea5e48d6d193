package bot

import (
	"context"
	"fmt"
	"strconv"

	"gamechannels/domain/entities"
	"gamechannels/domain/services"

	"github.com/bwmarrin/discordgo"
)

// Gateway implements interfaces.PlatformGateway on top of a discordgo
// session. Domain code works with int64 snowflakes; the string conversion
// happens here and nowhere else.
type Gateway struct {
	session *discordgo.Session
}

func NewGateway(session *discordgo.Session) *Gateway {
	return &Gateway{session: session}
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func parseID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

func platformErr(op string, err error) error {
	return &services.PlatformError{Op: op, Err: err}
}

func (g *Gateway) CreateRole(ctx context.Context, guildID int64, name string) (int64, error) {
	role, err := g.session.GuildRoleCreate(formatID(guildID), &discordgo.RoleParams{
		Name:        name,
		Mentionable: boolPtr(true),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return 0, platformErr("create_role", err)
	}
	roleID, err := parseID(role.ID)
	if err != nil {
		return 0, platformErr("create_role", fmt.Errorf("unparseable role ID %q: %w", role.ID, err))
	}
	return roleID, nil
}

func (g *Gateway) DeleteRole(ctx context.Context, guildID, roleID int64) error {
	if err := g.session.GuildRoleDelete(formatID(guildID), formatID(roleID), discordgo.WithContext(ctx)); err != nil {
		return platformErr("delete_role", err)
	}
	return nil
}

func (g *Gateway) RoleExists(ctx context.Context, guildID, roleID int64) (bool, error) {
	roles, err := g.session.GuildRoles(formatID(guildID), discordgo.WithContext(ctx))
	if err != nil {
		return false, platformErr("list_roles", err)
	}
	want := formatID(roleID)
	for _, role := range roles {
		if role.ID == want {
			return true, nil
		}
	}
	return false, nil
}

func (g *Gateway) CreateCategory(ctx context.Context, guildID int64, name string) (int64, error) {
	channel, err := g.session.GuildChannelCreateComplex(formatID(guildID), discordgo.GuildChannelCreateData{
		Name: name,
		Type: discordgo.ChannelTypeGuildCategory,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return 0, platformErr("create_category", err)
	}
	categoryID, err := parseID(channel.ID)
	if err != nil {
		return 0, platformErr("create_category", fmt.Errorf("unparseable channel ID %q: %w", channel.ID, err))
	}
	return categoryID, nil
}

func (g *Gateway) CreateChannel(ctx context.Context, guildID int64, name string, categoryID int64) (int64, error) {
	data := discordgo.GuildChannelCreateData{
		Name: name,
		Type: discordgo.ChannelTypeGuildText,
	}
	if categoryID != 0 {
		data.ParentID = formatID(categoryID)
	}
	channel, err := g.session.GuildChannelCreateComplex(formatID(guildID), data, discordgo.WithContext(ctx))
	if err != nil {
		return 0, platformErr("create_channel", err)
	}
	channelID, err := parseID(channel.ID)
	if err != nil {
		return 0, platformErr("create_channel", fmt.Errorf("unparseable channel ID %q: %w", channel.ID, err))
	}
	return channelID, nil
}

func (g *Gateway) DeleteChannel(ctx context.Context, guildID, channelID int64) error {
	if _, err := g.session.ChannelDelete(formatID(channelID), discordgo.WithContext(ctx)); err != nil {
		return platformErr("delete_channel", err)
	}
	return nil
}

func (g *Gateway) ChannelName(ctx context.Context, guildID, channelID int64) (string, error) {
	if channel, err := g.session.State.Channel(formatID(channelID)); err == nil {
		return channel.Name, nil
	}
	channel, err := g.session.Channel(formatID(channelID), discordgo.WithContext(ctx))
	if err != nil {
		return "", platformErr("resolve_channel", err)
	}
	return channel.Name, nil
}

// RestrictChannel hides a channel from @everyone and grants view access to
// holders of the given role. The @everyone role shares the guild's snowflake.
func (g *Gateway) RestrictChannel(ctx context.Context, guildID, channelID, roleID int64) error {
	channel := formatID(channelID)
	err := g.session.ChannelPermissionSet(channel, formatID(guildID), discordgo.PermissionOverwriteTypeRole,
		0, discordgo.PermissionViewChannel, discordgo.WithContext(ctx))
	if err != nil {
		return platformErr("restrict_channel", err)
	}
	err = g.session.ChannelPermissionSet(channel, formatID(roleID), discordgo.PermissionOverwriteTypeRole,
		discordgo.PermissionViewChannel, 0, discordgo.WithContext(ctx))
	if err != nil {
		return platformErr("restrict_channel", err)
	}
	return nil
}

func (g *Gateway) GrantRole(ctx context.Context, guildID, userID, roleID int64) error {
	err := g.session.GuildMemberRoleAdd(formatID(guildID), formatID(userID), formatID(roleID), discordgo.WithContext(ctx))
	if err != nil {
		return platformErr("grant_role", err)
	}
	return nil
}

func (g *Gateway) RevokeRole(ctx context.Context, guildID, userID, roleID int64) error {
	err := g.session.GuildMemberRoleRemove(formatID(guildID), formatID(userID), formatID(roleID), discordgo.WithContext(ctx))
	if err != nil {
		return platformErr("revoke_role", err)
	}
	return nil
}

func (g *Gateway) MemberHasRole(ctx context.Context, guildID, userID, roleID int64) (bool, error) {
	member, err := g.session.State.Member(formatID(guildID), formatID(userID))
	if err != nil {
		member, err = g.session.GuildMember(formatID(guildID), formatID(userID), discordgo.WithContext(ctx))
		if err != nil {
			return false, platformErr("resolve_member", err)
		}
	}
	want := formatID(roleID)
	for _, id := range member.Roles {
		if id == want {
			return true, nil
		}
	}
	return false, nil
}

func (g *Gateway) CountRoleMembers(ctx context.Context, guildID, roleID int64) (int, error) {
	members, err := g.guildMembers(ctx, guildID)
	if err != nil {
		return 0, err
	}
	want := formatID(roleID)
	count := 0
	for _, member := range members {
		for _, id := range member.Roles {
			if id == want {
				count++
				break
			}
		}
	}
	return count, nil
}

func (g *Gateway) SendMessage(ctx context.Context, channelID int64, content string) (int64, error) {
	message, err := g.session.ChannelMessageSend(formatID(channelID), content, discordgo.WithContext(ctx))
	if err != nil {
		return 0, platformErr("send_message", err)
	}
	messageID, err := parseID(message.ID)
	if err != nil {
		return 0, platformErr("send_message", fmt.Errorf("unparseable message ID %q: %w", message.ID, err))
	}
	return messageID, nil
}

func (g *Gateway) EditMessage(ctx context.Context, channelID, messageID int64, content string) error {
	_, err := g.session.ChannelMessageEdit(formatID(channelID), formatID(messageID), content, discordgo.WithContext(ctx))
	if err != nil {
		return platformErr("edit_message", err)
	}
	return nil
}

// SnapshotPresences builds the guild's current activity snapshot from gateway
// state. Members without a game activity are reported with an empty Activity.
func (g *Gateway) SnapshotPresences(ctx context.Context, guildID int64) ([]entities.MemberPresence, error) {
	guild, err := g.session.State.Guild(formatID(guildID))
	if err != nil {
		return nil, platformErr("snapshot_presences", err)
	}

	activities := make(map[string]string, len(guild.Presences))
	for _, presence := range guild.Presences {
		if presence.User == nil {
			continue
		}
		for _, activity := range presence.Activities {
			if activity.Type == discordgo.ActivityTypeGame && activity.Name != "" {
				activities[presence.User.ID] = activity.Name
				break
			}
		}
	}

	snapshot := make([]entities.MemberPresence, 0, len(guild.Members))
	for _, member := range guild.Members {
		if member.User == nil {
			continue
		}
		userID, err := parseID(member.User.ID)
		if err != nil {
			continue
		}
		roleIDs := make([]int64, 0, len(member.Roles))
		for _, id := range member.Roles {
			roleID, err := parseID(id)
			if err != nil {
				continue
			}
			roleIDs = append(roleIDs, roleID)
		}
		snapshot = append(snapshot, entities.MemberPresence{
			UserID:   userID,
			Bot:      member.User.Bot,
			Activity: activities[member.User.ID],
			RoleIDs:  roleIDs,
		})
	}
	return snapshot, nil
}

func (g *Gateway) GuildRoles(ctx context.Context, guildID int64) ([]entities.RoleInfo, error) {
	roles, err := g.session.GuildRoles(formatID(guildID), discordgo.WithContext(ctx))
	if err != nil {
		return nil, platformErr("list_roles", err)
	}
	infos := make([]entities.RoleInfo, 0, len(roles))
	for _, role := range roles {
		roleID, err := parseID(role.ID)
		if err != nil {
			continue
		}
		created, _ := discordgo.SnowflakeTimestamp(role.ID)
		infos = append(infos, entities.RoleInfo{
			ID:        roleID,
			Name:      role.Name,
			CreatedAt: created,
		})
	}
	return infos, nil
}

func (g *Gateway) GuildChannels(ctx context.Context, guildID int64) ([]entities.ChannelInfo, error) {
	channels, err := g.session.GuildChannels(formatID(guildID), discordgo.WithContext(ctx))
	if err != nil {
		return nil, platformErr("list_channels", err)
	}
	infos := make([]entities.ChannelInfo, 0, len(channels))
	for _, channel := range channels {
		channelID, err := parseID(channel.ID)
		if err != nil {
			continue
		}
		var parentID int64
		if channel.ParentID != "" {
			parentID, _ = parseID(channel.ParentID)
		}
		infos = append(infos, entities.ChannelInfo{
			ID:       channelID,
			Name:     channel.Name,
			ParentID: parentID,
		})
	}
	return infos, nil
}

// guildMembers returns the guild's member list from state, falling back to
// paginated REST fetches when the member cache is empty.
func (g *Gateway) guildMembers(ctx context.Context, guildID int64) ([]*discordgo.Member, error) {
	if guild, err := g.session.State.Guild(formatID(guildID)); err == nil && len(guild.Members) > 0 {
		return guild.Members, nil
	}

	var members []*discordgo.Member
	after := ""
	for {
		page, err := g.session.GuildMembers(formatID(guildID), after, 1000, discordgo.WithContext(ctx))
		if err != nil {
			return nil, platformErr("list_members", err)
		}
		members = append(members, page...)
		if len(page) < 1000 {
			return members, nil
		}
		after = page[len(page)-1].User.ID
	}
}

func boolPtr(v bool) *bool {
	return &v
}
