package bot

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gamechannels/bot/common"
	"gamechannels/domain/services"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// commandPrefix introduces every text command, e.g. "gc-join Rocket League".
const commandPrefix = "gc-"

// commandContext carries the parsed invocation a handler needs.
type commandContext struct {
	guildID   int64
	channelID int64
	userID    int64
	args      string // everything after the command name, trimmed
}

type commandHandler func(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, cmd commandContext) error

// command pairs a handler with its permission requirement. Privileged
// commands require the configured required role when one is set.
type command struct {
	handler    commandHandler
	privileged bool
}

func (b *Bot) commandTable() map[string]command {
	return map[string]command{
		"enable":            {handler: b.cmdEnable, privileged: true},
		"disable":           {handler: b.cmdDisable, privileged: true},
		"updateinfomessage": {handler: b.cmdUpdateInfoMessage, privileged: true},
		"listroles":         {handler: b.cmdListRoles, privileged: true},
		"listchannels":      {handler: b.cmdListChannels, privileged: true},
		"restrict":          {handler: b.cmdRestrict, privileged: true},
		"playerthreshold":   {handler: b.cmdPlayerThreshold, privileged: true},
		"new":               {handler: b.cmdNew, privileged: true},
		"remove":            {handler: b.cmdRemove, privileged: true},
		"ping":              {handler: b.cmdPing, privileged: true},
		"join":              {handler: b.cmdJoin},
		"leave":             {handler: b.cmdLeave},
		"list":              {handler: b.cmdList},
	}
}

// dispatchCommand parses a prefixed guild message and runs the matching
// handler. Every command yields exactly one success or failure reaction on
// the invoking message.
func (b *Bot) dispatchCommand(s *discordgo.Session, m *discordgo.MessageCreate) {
	content := strings.TrimSpace(m.Content)
	if !strings.HasPrefix(content, commandPrefix) {
		return
	}

	name, args, _ := strings.Cut(strings.TrimPrefix(content, commandPrefix), " ")
	name = strings.ToLower(name)
	cmd, ok := b.commands[name]
	if !ok {
		return
	}

	guildID, err := strconv.ParseInt(m.GuildID, 10, 64)
	if err != nil {
		log.Errorf("Failed to parse guild ID %s: %v", m.GuildID, err)
		return
	}
	channelID, err := strconv.ParseInt(m.ChannelID, 10, 64)
	if err != nil {
		log.Errorf("Failed to parse channel ID %s: %v", m.ChannelID, err)
		return
	}
	userID, err := strconv.ParseInt(m.Author.ID, 10, 64)
	if err != nil {
		log.Errorf("Failed to parse user ID %s: %v", m.Author.ID, err)
		return
	}

	ctx := context.Background()

	if cmd.privileged {
		allowed, err := b.callerMayUsePrivileged(ctx, guildID, m.Member)
		if err != nil {
			log.WithError(err).WithField("guild", guildID).Error("Failed to check command permission")
			common.React(s, m.ChannelID, m.ID, common.ReactFailure)
			return
		}
		if !allowed {
			common.React(s, m.ChannelID, m.ID, common.ReactFailure)
			common.SendChunked(s, m.ChannelID, common.UserMessage(services.ErrPermissionDenied))
			return
		}
	}

	invocation := commandContext{
		guildID:   guildID,
		channelID: channelID,
		userID:    userID,
		args:      strings.TrimSpace(args),
	}

	if err := cmd.handler(ctx, s, m, invocation); err != nil {
		log.WithFields(log.Fields{
			"guild":   guildID,
			"user":    userID,
			"command": name,
		}).WithError(err).Error("Command failed")
		common.React(s, m.ChannelID, m.ID, common.ReactFailure)
		common.SendChunked(s, m.ChannelID, common.UserMessage(err))
		return
	}
	common.React(s, m.ChannelID, m.ID, common.ReactSuccess)
}

// callerMayUsePrivileged checks the invoking member against the guild's
// required role. When no required role is configured, everyone passes.
func (b *Bot) callerMayUsePrivileged(ctx context.Context, guildID int64, member *discordgo.Member) (bool, error) {
	settings, err := b.registry.Settings(ctx, guildID)
	if err != nil {
		return false, err
	}
	if member == nil {
		return settings.HasRequiredRole(nil), nil
	}
	roleIDs := make([]int64, 0, len(member.Roles))
	for _, id := range member.Roles {
		roleID, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			continue
		}
		roleIDs = append(roleIDs, roleID)
	}
	return settings.HasRequiredRole(roleIDs), nil
}

func (b *Bot) cmdEnable(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, cmd commandContext) error {
	changed, err := b.registry.SetEnabled(ctx, cmd.guildID, true)
	if err != nil {
		return err
	}
	if !changed {
		common.SendChunked(s, m.ChannelID, "Automatic game channels are already enabled.")
		return nil
	}
	common.SendChunked(s, m.ChannelID, "Automatic game channels enabled.")
	return nil
}

func (b *Bot) cmdDisable(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, cmd commandContext) error {
	changed, err := b.registry.SetEnabled(ctx, cmd.guildID, false)
	if err != nil {
		return err
	}
	if !changed {
		common.SendChunked(s, m.ChannelID, "Automatic game channels are already disabled.")
		return nil
	}
	common.SendChunked(s, m.ChannelID, "Automatic game channels disabled.")
	return nil
}

func (b *Bot) cmdUpdateInfoMessage(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, cmd commandContext) error {
	return b.registry.UpdateInfoMessage(ctx, cmd.guildID)
}

func (b *Bot) cmdListRoles(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, cmd commandContext) error {
	if cmd.args != "" {
		return b.listMemberRoles(ctx, s, m, cmd)
	}

	roles, err := b.gateway.GuildRoles(ctx, cmd.guildID)
	if err != nil {
		return err
	}
	sort.Slice(roles, func(i, j int) bool {
		return strings.ToLower(roles[i].Name) < strings.ToLower(roles[j].Name)
	})

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("**%d roles:**\n", len(roles)))
	for _, role := range roles {
		sb.WriteString(fmt.Sprintf("%s  %s (`%d`)\n", role.CreatedAt.Format("2006-01-02"), role.Name, role.ID))
	}
	common.SendChunked(s, m.ChannelID, sb.String())
	return nil
}

func (b *Bot) listMemberRoles(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, cmd commandContext) error {
	userID, err := parseUserArg(cmd.args)
	if err != nil {
		return fmt.Errorf("%w: %v", services.ErrInvalidInput, err)
	}

	member, err := s.GuildMember(m.GuildID, strconv.FormatInt(userID, 10), discordgo.WithContext(ctx))
	if err != nil {
		return &services.PlatformError{Op: "resolve_member", Err: err}
	}

	names := make([]string, 0, len(member.Roles))
	for _, id := range member.Roles {
		if role, err := s.State.Role(m.GuildID, id); err == nil {
			names = append(names, role.Name)
		} else {
			names = append(names, id)
		}
	}
	sort.Strings(names)

	if len(names) == 0 {
		common.SendChunked(s, m.ChannelID, "That user has no roles.")
		return nil
	}
	common.SendChunked(s, m.ChannelID, fmt.Sprintf("**%d roles:** %s", len(names), strings.Join(names, ", ")))
	return nil
}

func (b *Bot) cmdListChannels(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, cmd commandContext) error {
	channels, err := b.gateway.GuildChannels(ctx, cmd.guildID)
	if err != nil {
		return err
	}

	filter := strings.ToLower(cmd.args)
	var lines []string
	for _, channel := range channels {
		if filter != "" && !strings.Contains(strings.ToLower(channel.Name), filter) {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s (`%d`)", channel.Name, channel.ID))
	}
	sort.Strings(lines)

	if len(lines) == 0 {
		common.SendChunked(s, m.ChannelID, "No channels matched.")
		return nil
	}
	common.SendChunked(s, m.ChannelID, fmt.Sprintf("**%d channels:**\n%s", len(lines), strings.Join(lines, "\n")))
	return nil
}

func (b *Bot) cmdRestrict(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, cmd commandContext) error {
	if cmd.args == "" {
		return fmt.Errorf("%w: restrict requires a role", services.ErrInvalidInput)
	}
	roleID, err := parseRoleArg(cmd.args)
	if err != nil {
		return fmt.Errorf("%w: %v", services.ErrInvalidInput, err)
	}
	return b.registry.SetRequiredRole(ctx, cmd.guildID, roleID)
}

func (b *Bot) cmdPlayerThreshold(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, cmd commandContext) error {
	threshold, err := strconv.Atoi(cmd.args)
	if err != nil {
		return fmt.Errorf("%w: threshold must be a positive integer", services.ErrInvalidInput)
	}
	if err := b.registry.SetThreshold(ctx, cmd.guildID, threshold); err != nil {
		return err
	}
	common.SendChunked(s, m.ChannelID, fmt.Sprintf("Player threshold set to %d.", threshold))
	return nil
}

func (b *Bot) cmdNew(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, cmd commandContext) error {
	sc, err := b.registry.Create(ctx, cmd.guildID, cmd.args)
	if err != nil {
		return err
	}
	common.SendChunked(s, m.ChannelID, fmt.Sprintf("Created **%s** with its role and channel.", sc.Name))
	return nil
}

func (b *Bot) cmdRemove(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, cmd commandContext) error {
	return b.registry.Remove(ctx, cmd.guildID, cmd.args, cmd.channelID)
}

func (b *Bot) cmdJoin(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, cmd commandContext) error {
	if cmd.args == "" {
		return fmt.Errorf("%w: join requires a game name", services.ErrInvalidInput)
	}
	return b.registry.Join(ctx, cmd.guildID, cmd.args, cmd.userID)
}

func (b *Bot) cmdLeave(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, cmd commandContext) error {
	return b.registry.Leave(ctx, cmd.guildID, cmd.userID, cmd.channelID, cmd.args)
}

func (b *Bot) cmdList(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, cmd commandContext) error {
	text, err := b.registry.InfoText(ctx, cmd.guildID)
	if err != nil {
		return err
	}
	common.SendChunked(s, m.ChannelID, text)
	return nil
}

func (b *Bot) cmdPing(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, cmd commandContext) error {
	common.SendChunked(s, m.ChannelID, "Pong!")
	return nil
}

// parseUserArg accepts a raw snowflake or a user mention (<@123>, <@!123>).
func parseUserArg(arg string) (int64, error) {
	arg = strings.TrimSuffix(strings.TrimPrefix(arg, "<@"), ">")
	arg = strings.TrimPrefix(arg, "!")
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("not a user ID or mention: %q", arg)
	}
	return id, nil
}

// parseRoleArg accepts a raw snowflake or a role mention (<@&123>).
func parseRoleArg(arg string) (int64, error) {
	arg = strings.TrimSuffix(strings.TrimPrefix(arg, "<@&"), ">")
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("not a role ID or mention: %q", arg)
	}
	return id, nil
}
