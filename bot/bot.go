package bot

import (
	"context"
	"fmt"
	"strconv"

	"gamechannels/domain/interfaces"
	"gamechannels/infrastructure"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// Config holds bot configuration
type Config struct {
	AdminID int64 // Discord user allowed to use the operator DM surface
}

// Bot owns the Discord session and routes prefixed text commands to the
// registry service.
type Bot struct {
	config   Config
	session  *discordgo.Session
	gateway  *Gateway
	registry interfaces.RegistryService
	commands map[string]command

	// Operator surface
	logs            *infrastructure.LogBuffer
	requestShutdown func()
}

// NewSession creates an unopened Discord session with the intents and state
// tracking the bot needs. It is separate from New so the platform gateway
// and registry can be built over the session before handlers attach.
func NewSession(token string) (*discordgo.Session, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("error creating discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildPresences |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent
	dg.StateEnabled = true
	dg.State.TrackPresences = true
	dg.State.TrackMembers = true
	return dg, nil
}

// New attaches the command handlers and opens the gateway connection.
func New(config Config, session *discordgo.Session, registry interfaces.RegistryService, logs *infrastructure.LogBuffer, requestShutdown func()) (*Bot, error) {
	bot := &Bot{
		config:          config,
		session:         session,
		gateway:         NewGateway(session),
		registry:        registry,
		logs:            logs,
		requestShutdown: requestShutdown,
	}
	bot.commands = bot.commandTable()

	session.AddHandler(bot.handleMessageCreate)
	session.AddHandler(bot.handleGuildCreate)

	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("error opening connection: %w", err)
	}

	return bot, nil
}

// GuildIDs lists the guilds the bot is currently connected to.
func (b *Bot) GuildIDs() []int64 {
	guilds := b.session.State.Guilds
	ids := make([]int64, 0, len(guilds))
	for _, guild := range guilds {
		id, err := strconv.ParseInt(guild.ID, 10, 64)
		if err != nil {
			log.Errorf("Failed to parse guild ID %s: %v", guild.ID, err)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// Close gracefully shuts down the bot
func (b *Bot) Close() error {
	return b.session.Close()
}

// handleGuildCreate materializes the settings document when the bot joins a
// guild, so the first command never races first-time setup.
func (b *Bot) handleGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	guildID, err := strconv.ParseInt(g.ID, 10, 64)
	if err != nil {
		log.Errorf("Failed to parse guild ID %s: %v", g.ID, err)
		return
	}

	settings, err := b.registry.Settings(context.Background(), guildID)
	if err != nil {
		log.Errorf("Failed to load settings for guild %s (%s): %v", g.Name, g.ID, err)
		return
	}

	log.Infof("Connected to guild: %s (ID: %d, enabled: %v, games: %d)",
		g.Name, guildID, settings.Enabled, len(settings.Subcommunities))
}

// handleMessageCreate routes guild messages to the command dispatcher and
// direct messages to the operator surface.
func (b *Bot) handleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == s.State.User.ID || m.Author.Bot {
		return
	}

	if m.GuildID == "" {
		b.handleOperatorMessage(s, m)
		return
	}

	b.dispatchCommand(s, m)
}
