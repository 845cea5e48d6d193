package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gamechannels/domain/entities"
	"gamechannels/domain/events"
	"gamechannels/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// platformCallTimeout bounds every Discord call made while a guild lock is
// held, so a hung platform call cannot stall that guild's serialization.
const platformCallTimeout = 15 * time.Second

const (
	rolePrefix              = "Plays: "
	categoryName            = "🎮 Games 🎮"
	instructionsChannelName = "games-list"
	instructionsSeedMessage = "This message will update itself automatically with a list of games that people in this server play."
)

// RegistryService owns a guild's subcommunity registry: lookup, creation,
// removal, membership changes, and the scalar settings fields. Explicit
// commands and the reconciliation loop both mutate through it; every
// mutating operation holds the guild's lock across its full
// read-mutate-persist span.
type RegistryService struct {
	repo      interfaces.GuildSettingsRepository
	gateway   interfaces.PlatformGateway
	publisher interfaces.EventPublisher
	locks     *guildLocks
}

// NewRegistryService creates a new registry service.
func NewRegistryService(repo interfaces.GuildSettingsRepository, gateway interfaces.PlatformGateway, publisher interfaces.EventPublisher) *RegistryService {
	return &RegistryService{
		repo:      repo,
		gateway:   gateway,
		publisher: publisher,
		locks:     newGuildLocks(),
	}
}

func platformCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, platformCallTimeout)
}

// Settings returns the guild's settings document, created from defaults on
// first access.
func (s *RegistryService) Settings(ctx context.Context, guildID int64) (*entities.GuildSettings, error) {
	settings, err := s.repo.GetOrCreateGuildSettings(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to get guild settings: %w", err)
	}
	return settings, nil
}

// Find resolves a keyword to a subcommunity by name, alias, or the
// normalized-channel-name form of its channel.
func (s *RegistryService) Find(ctx context.Context, guildID int64, keyword string) (*entities.Subcommunity, error) {
	settings, err := s.Settings(ctx, guildID)
	if err != nil {
		return nil, err
	}
	sc := s.findSubcommunity(ctx, settings, keyword)
	if sc == nil {
		return nil, fmt.Errorf("%w: no subcommunity matches %q", ErrNotFound, keyword)
	}
	return sc, nil
}

// findSubcommunity matches, in order: exact name, any alias, then the
// keyword's normalized-channel-name form against each record's live channel
// name. Records are walked in insertion order and the first match wins.
func (s *RegistryService) findSubcommunity(ctx context.Context, settings *entities.GuildSettings, keyword string) *entities.Subcommunity {
	if sc := settings.FindByKeyword(keyword); sc != nil {
		return sc
	}

	normalized := entities.NormalizeChannelName(keyword)
	if normalized == "" {
		return nil
	}
	for _, sc := range settings.Subcommunities {
		cctx, cancel := platformCtx(ctx)
		name, err := s.gateway.ChannelName(cctx, settings.GuildID, sc.ChannelID)
		cancel()
		if err != nil {
			log.WithFields(log.Fields{
				"guild_id":   settings.GuildID,
				"channel_id": sc.ChannelID,
			}).WithError(err).Debug("Could not resolve channel name during lookup")
			continue
		}
		if name == normalized {
			return sc
		}
	}
	return nil
}

// Create allocates a brand-new role and channel for the named game and
// persists the record. An existing role or channel is never reused, even if
// a structurally similar record was removed earlier.
func (s *RegistryService) Create(ctx context.Context, guildID int64, name string) (*entities.Subcommunity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: game name must not be empty", ErrInvalidInput)
	}

	unlock := s.locks.Lock(guildID)
	defer unlock()

	settings, err := s.Settings(ctx, guildID)
	if err != nil {
		return nil, err
	}
	return s.createSubcommunity(ctx, settings, name, false)
}

// createSubcommunity performs the creation sequence with the guild lock
// already held. The reconciler calls this directly from inside its pass.
func (s *RegistryService) createSubcommunity(ctx context.Context, settings *entities.GuildSettings, name string, automatic bool) (*entities.Subcommunity, error) {
	guildID := settings.GuildID

	if claimed := settings.ClaimedBy(name); claimed != nil {
		return nil, fmt.Errorf("%w: %q is already claimed by %q", ErrAlreadyExists, name, claimed.Name)
	}

	if err := s.ensureGuildInitialized(ctx, settings); err != nil {
		return nil, err
	}

	cctx, cancel := platformCtx(ctx)
	roleID, err := s.gateway.CreateRole(cctx, guildID, rolePrefix+name)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("failed to create role for %q: %w", name, err)
	}

	cctx, cancel = platformCtx(ctx)
	channelID, err := s.gateway.CreateChannel(cctx, guildID, entities.NormalizeChannelName(name), *settings.CategoryID)
	cancel()
	if err != nil {
		s.compensateRole(ctx, guildID, roleID)
		return nil, fmt.Errorf("failed to create channel for %q: %w", name, err)
	}

	cctx, cancel = platformCtx(ctx)
	err = s.gateway.RestrictChannel(cctx, guildID, channelID, roleID)
	cancel()
	if err != nil {
		// An unrestricted channel would be readable by everyone; undo both
		// halves and report the failure.
		s.compensateChannel(ctx, guildID, channelID)
		s.compensateRole(ctx, guildID, roleID)
		return nil, fmt.Errorf("failed to restrict channel for %q: %w", name, err)
	}

	sc := &entities.Subcommunity{
		Name:      name,
		RoleID:    roleID,
		ChannelID: channelID,
		Aliases:   []string{name},
	}
	settings.Add(sc)

	if err := s.repo.UpdateGuildSettings(ctx, settings); err != nil {
		s.compensateChannel(ctx, guildID, channelID)
		s.compensateRole(ctx, guildID, roleID)
		settings.Remove(name)
		return nil, fmt.Errorf("failed to persist subcommunity %q: %w", name, err)
	}

	cctx, cancel = platformCtx(ctx)
	_, err = s.gateway.SendMessage(cctx, channelID, settings.AnnouncementFor(name))
	cancel()
	if err != nil {
		log.WithFields(log.Fields{
			"guild_id": guildID,
			"name":     name,
		}).WithError(err).Warn("Failed to post announcement in new channel")
	}

	if err := s.publisher.Publish(events.SubcommunityCreatedEvent{
		GuildID:   guildID,
		Name:      name,
		RoleID:    roleID,
		ChannelID: channelID,
		Automatic: automatic,
	}); err != nil {
		log.WithError(err).Error("Failed to publish subcommunity created event")
	}

	log.WithFields(log.Fields{
		"guild_id":   guildID,
		"name":       name,
		"role_id":    roleID,
		"channel_id": channelID,
		"automatic":  automatic,
	}).Info("Subcommunity created")

	return sc, nil
}

// compensateRole best-effort deletes a role created during a failed
// creation sequence.
func (s *RegistryService) compensateRole(ctx context.Context, guildID, roleID int64) {
	cctx, cancel := platformCtx(ctx)
	defer cancel()
	if err := s.gateway.DeleteRole(cctx, guildID, roleID); err != nil {
		log.WithFields(log.Fields{
			"guild_id": guildID,
			"role_id":  roleID,
		}).WithError(err).Warn("Failed to delete role while unwinding failed creation")
	}
}

// compensateChannel best-effort deletes a channel created during a failed
// creation sequence.
func (s *RegistryService) compensateChannel(ctx context.Context, guildID, channelID int64) {
	cctx, cancel := platformCtx(ctx)
	defer cancel()
	if err := s.gateway.DeleteChannel(cctx, guildID, channelID); err != nil {
		log.WithFields(log.Fields{
			"guild_id":   guildID,
			"channel_id": channelID,
		}).WithError(err).Warn("Failed to delete channel while unwinding failed creation")
	}
}

// ensureGuildInitialized creates the wrapper category and the instructions
// channel with its seed message on first use. Persists immediately so the
// allocated IDs survive a later failure.
func (s *RegistryService) ensureGuildInitialized(ctx context.Context, settings *entities.GuildSettings) error {
	if settings.CategoryID != nil && settings.InstructionsChannelID != nil {
		return nil
	}
	guildID := settings.GuildID

	if settings.CategoryID == nil {
		cctx, cancel := platformCtx(ctx)
		categoryID, err := s.gateway.CreateCategory(cctx, guildID, categoryName)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to create wrapper category: %w", err)
		}
		settings.CategoryID = &categoryID
	}

	if settings.InstructionsChannelID == nil {
		cctx, cancel := platformCtx(ctx)
		channelID, err := s.gateway.CreateChannel(cctx, guildID, instructionsChannelName, *settings.CategoryID)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to create instructions channel: %w", err)
		}
		settings.InstructionsChannelID = &channelID

		cctx, cancel = platformCtx(ctx)
		messageID, err := s.gateway.SendMessage(cctx, channelID, instructionsSeedMessage)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to seed instructions message: %w", err)
		}
		settings.InstructionsMessageID = &messageID
	}

	if err := s.repo.UpdateGuildSettings(ctx, settings); err != nil {
		return fmt.Errorf("failed to persist guild initialization: %w", err)
	}

	log.WithField("guild_id", guildID).Info("Guild initialized with category and instructions channel")
	return nil
}

// Remove deletes the subcommunity's role, then its channel, then the
// persisted record. When keyword is empty the target is resolved from the
// invoking channel.
func (s *RegistryService) Remove(ctx context.Context, guildID int64, keyword string, contextChannelID int64) error {
	unlock := s.locks.Lock(guildID)
	defer unlock()

	settings, err := s.Settings(ctx, guildID)
	if err != nil {
		return err
	}

	var sc *entities.Subcommunity
	if keyword != "" {
		sc = s.findSubcommunity(ctx, settings, keyword)
	} else {
		sc = settings.FindByChannelID(contextChannelID)
	}
	if sc == nil {
		return fmt.Errorf("%w: nothing to remove", ErrNotFound)
	}

	return s.removeSubcommunity(ctx, settings, sc)
}

// removeSubcommunity performs the removal sequence with the guild lock
// already held. If the role or channel no longer resolves the record is
// presumed stale and left untouched.
func (s *RegistryService) removeSubcommunity(ctx context.Context, settings *entities.GuildSettings, sc *entities.Subcommunity) error {
	guildID := settings.GuildID

	cctx, cancel := platformCtx(ctx)
	roleExists, err := s.gateway.RoleExists(cctx, guildID, sc.RoleID)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to resolve role %d: %w", sc.RoleID, err)
	}
	if !roleExists {
		log.WithFields(log.Fields{
			"guild_id": guildID,
			"name":     sc.Name,
			"role_id":  sc.RoleID,
		}).Warn("Removal refused: role no longer exists on Discord")
		return fmt.Errorf("%w: role %d for %q no longer exists", ErrStaleRecord, sc.RoleID, sc.Name)
	}

	cctx, cancel = platformCtx(ctx)
	_, err = s.gateway.ChannelName(cctx, guildID, sc.ChannelID)
	cancel()
	if err != nil {
		log.WithFields(log.Fields{
			"guild_id":   guildID,
			"name":       sc.Name,
			"channel_id": sc.ChannelID,
		}).WithError(err).Warn("Removal refused: channel no longer resolves on Discord")
		return fmt.Errorf("%w: channel %d for %q does not resolve", ErrStaleRecord, sc.ChannelID, sc.Name)
	}

	cctx, cancel = platformCtx(ctx)
	err = s.gateway.DeleteRole(cctx, guildID, sc.RoleID)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to delete role for %q: %w", sc.Name, err)
	}

	cctx, cancel = platformCtx(ctx)
	err = s.gateway.DeleteChannel(cctx, guildID, sc.ChannelID)
	cancel()
	if err != nil {
		// The role is already gone; the record now dangles until the next
		// removal attempt succeeds.
		return fmt.Errorf("%w: role %d deleted but channel %d remains for %q: %v",
			ErrPartialRemoval, sc.RoleID, sc.ChannelID, sc.Name, err)
	}

	settings.Remove(sc.Name)
	if err := s.repo.UpdateGuildSettings(ctx, settings); err != nil {
		return fmt.Errorf("failed to persist removal of %q: %w", sc.Name, err)
	}

	if err := s.publisher.Publish(events.SubcommunityRemovedEvent{
		GuildID:   guildID,
		Name:      sc.Name,
		RoleID:    sc.RoleID,
		ChannelID: sc.ChannelID,
	}); err != nil {
		log.WithError(err).Error("Failed to publish subcommunity removed event")
	}

	log.WithFields(log.Fields{
		"guild_id": guildID,
		"name":     sc.Name,
	}).Info("Subcommunity removed")
	return nil
}

// Join grants the user membership of the matched subcommunity and clears
// any standing exclusion. Granting to an existing holder is a no-op.
func (s *RegistryService) Join(ctx context.Context, guildID int64, keyword string, userID int64) error {
	unlock := s.locks.Lock(guildID)
	defer unlock()

	settings, err := s.Settings(ctx, guildID)
	if err != nil {
		return err
	}

	sc := s.findSubcommunity(ctx, settings, keyword)
	if sc == nil {
		return fmt.Errorf("%w: no subcommunity matches %q", ErrNotFound, keyword)
	}

	cctx, cancel := platformCtx(ctx)
	roleExists, err := s.gateway.RoleExists(cctx, guildID, sc.RoleID)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to resolve role %d: %w", sc.RoleID, err)
	}
	if !roleExists {
		return fmt.Errorf("%w: role %d for %q no longer exists", ErrStaleRecord, sc.RoleID, sc.Name)
	}

	if sc.ClearExclusion(userID) {
		if err := s.repo.UpdateGuildSettings(ctx, settings); err != nil {
			return fmt.Errorf("failed to persist exclusion removal: %w", err)
		}
	}

	cctx, cancel = platformCtx(ctx)
	hasRole, err := s.gateway.MemberHasRole(cctx, guildID, userID, sc.RoleID)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to check membership of %q: %w", sc.Name, err)
	}
	if hasRole {
		return nil
	}

	cctx, cancel = platformCtx(ctx)
	err = s.gateway.GrantRole(cctx, guildID, userID, sc.RoleID)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to grant membership of %q: %w", sc.Name, err)
	}

	if welcome := settings.WelcomeFor(sc.Name); welcome != "" {
		cctx, cancel = platformCtx(ctx)
		_, err = s.gateway.SendMessage(cctx, sc.ChannelID, welcome)
		cancel()
		if err != nil {
			log.WithFields(log.Fields{
				"guild_id": guildID,
				"name":     sc.Name,
			}).WithError(err).Warn("Failed to post welcome message")
		}
	}

	if err := s.publisher.Publish(events.MemberJoinedEvent{
		GuildID: guildID,
		UserID:  userID,
		Name:    sc.Name,
		RoleID:  sc.RoleID,
	}); err != nil {
		log.WithError(err).Error("Failed to publish member joined event")
	}

	log.WithFields(log.Fields{
		"guild_id": guildID,
		"user_id":  userID,
		"name":     sc.Name,
	}).Info("Member joined subcommunity")
	return nil
}

// Leave revokes the user's membership and records them on the exclusion
// list so reconciliation will not re-enroll them. When keyword is empty the
// target is resolved from the invoking channel.
func (s *RegistryService) Leave(ctx context.Context, guildID, userID, contextChannelID int64, keyword string) error {
	unlock := s.locks.Lock(guildID)
	defer unlock()

	settings, err := s.Settings(ctx, guildID)
	if err != nil {
		return err
	}

	var sc *entities.Subcommunity
	if keyword != "" {
		sc = s.findSubcommunity(ctx, settings, keyword)
	} else {
		sc = settings.FindByChannelID(contextChannelID)
	}
	if sc == nil {
		return fmt.Errorf("%w: nothing to leave", ErrNotFound)
	}

	cctx, cancel := platformCtx(ctx)
	hasRole, err := s.gateway.MemberHasRole(cctx, guildID, userID, sc.RoleID)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to check membership of %q: %w", sc.Name, err)
	}
	if !hasRole {
		return fmt.Errorf("%w: %q", ErrNotMember, sc.Name)
	}

	// Exclusion is persisted before the role revocation: if the revocation
	// fails the next reconciliation pass must still not re-enroll the user.
	if sc.AddExclusion(userID) {
		if err := s.repo.UpdateGuildSettings(ctx, settings); err != nil {
			return fmt.Errorf("failed to persist exclusion: %w", err)
		}
	}

	cctx, cancel = platformCtx(ctx)
	err = s.gateway.RevokeRole(cctx, guildID, userID, sc.RoleID)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to revoke membership of %q: %w", sc.Name, err)
	}

	if err := s.publisher.Publish(events.MemberLeftEvent{
		GuildID: guildID,
		UserID:  userID,
		Name:    sc.Name,
		RoleID:  sc.RoleID,
	}); err != nil {
		log.WithError(err).Error("Failed to publish member left event")
	}

	log.WithFields(log.Fields{
		"guild_id": guildID,
		"user_id":  userID,
		"name":     sc.Name,
	}).Info("Member left subcommunity")
	return nil
}

// SetEnabled toggles automatic reconciliation for the guild. Returns false
// when the guild was already in the requested state.
func (s *RegistryService) SetEnabled(ctx context.Context, guildID int64, enabled bool) (bool, error) {
	unlock := s.locks.Lock(guildID)
	defer unlock()

	settings, err := s.Settings(ctx, guildID)
	if err != nil {
		return false, err
	}
	if settings.Enabled == enabled {
		return false, nil
	}
	settings.Enabled = enabled
	if err := s.repo.UpdateGuildSettings(ctx, settings); err != nil {
		return false, fmt.Errorf("failed to persist enabled state: %w", err)
	}
	log.WithFields(log.Fields{
		"guild_id": guildID,
		"enabled":  enabled,
	}).Info("Guild reconciliation toggled")
	return true, nil
}

// SetThreshold updates the player threshold. Values below 1 are rejected.
func (s *RegistryService) SetThreshold(ctx context.Context, guildID int64, threshold int) error {
	if threshold < 1 {
		return fmt.Errorf("%w: threshold must be a positive integer", ErrInvalidInput)
	}

	unlock := s.locks.Lock(guildID)
	defer unlock()

	settings, err := s.Settings(ctx, guildID)
	if err != nil {
		return err
	}
	settings.PlayerThreshold = threshold
	if err := s.repo.UpdateGuildSettings(ctx, settings); err != nil {
		return fmt.Errorf("failed to persist threshold: %w", err)
	}
	return nil
}

// SetRequiredRole restricts privileged commands to holders of the role,
// which must exist in the guild.
func (s *RegistryService) SetRequiredRole(ctx context.Context, guildID, roleID int64) error {
	cctx, cancel := platformCtx(ctx)
	roleExists, err := s.gateway.RoleExists(cctx, guildID, roleID)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to resolve role %d: %w", roleID, err)
	}
	if !roleExists {
		return fmt.Errorf("%w: role %d does not exist in this guild", ErrInvalidInput, roleID)
	}

	unlock := s.locks.Lock(guildID)
	defer unlock()

	settings, err := s.Settings(ctx, guildID)
	if err != nil {
		return err
	}
	settings.RequiredRoleID = &roleID
	if err := s.repo.UpdateGuildSettings(ctx, settings); err != nil {
		return fmt.Errorf("failed to persist required role: %w", err)
	}
	return nil
}

// UpdateInfoMessage rewrites the instructions message with the current game
// list, initializing the instructions channel on first use.
func (s *RegistryService) UpdateInfoMessage(ctx context.Context, guildID int64) error {
	unlock := s.locks.Lock(guildID)
	defer unlock()

	settings, err := s.Settings(ctx, guildID)
	if err != nil {
		return err
	}
	if err := s.ensureGuildInitialized(ctx, settings); err != nil {
		return err
	}

	text := s.buildInfoText(ctx, settings)

	cctx, cancel := platformCtx(ctx)
	defer cancel()
	if err := s.gateway.EditMessage(cctx, *settings.InstructionsChannelID, *settings.InstructionsMessageID, text); err != nil {
		return fmt.Errorf("failed to edit instructions message: %w", err)
	}
	return nil
}

// InfoText renders the current game listing shown by the list command and
// the instructions message.
func (s *RegistryService) InfoText(ctx context.Context, guildID int64) (string, error) {
	settings, err := s.Settings(ctx, guildID)
	if err != nil {
		return "", err
	}
	return s.buildInfoText(ctx, settings), nil
}

func (s *RegistryService) buildInfoText(ctx context.Context, settings *entities.GuildSettings) string {
	var b strings.Builder
	b.WriteString("This server has channels for the following games:\n\n")
	for _, name := range settings.SortedNames() {
		sc := settings.FindByKeyword(name)
		count := 0
		cctx, cancel := platformCtx(ctx)
		n, err := s.gateway.CountRoleMembers(cctx, settings.GuildID, sc.RoleID)
		cancel()
		if err != nil {
			log.WithFields(log.Fields{
				"guild_id": settings.GuildID,
				"name":     name,
			}).WithError(err).Debug("Could not count role members for listing")
		} else {
			count = n
		}
		fmt.Fprintf(&b, "• **%s**  (%d)\n", name, count)
	}
	b.WriteString("\n")
	b.WriteString("Use `gc-join Game Name` to join one of them. You will also automatically join them when Discord detects you playing that game.\n")
	fmt.Fprintf(&b, "These channels are created automatically when %d or more people in this server play that game.", settings.PlayerThreshold)
	return b.String()
}
