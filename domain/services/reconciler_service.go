package services

import (
	"context"
	"fmt"
	"sort"

	"gamechannels/domain/entities"
	"gamechannels/domain/events"
	"gamechannels/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// ReconcilerService runs reconciliation passes: it compares observed member
// activity against the guild's registry, creates subcommunities whose
// player count crosses the threshold, and auto-enrolls eligible members.
// It shares the registry's per-guild locks, so a pass never interleaves
// with an explicit command mutating the same guild.
type ReconcilerService struct {
	registry *RegistryService
	repo     interfaces.GuildSettingsRepository
	gateway  interfaces.PlatformGateway
}

// NewReconcilerService creates a new reconciler service.
func NewReconcilerService(registry *RegistryService, repo interfaces.GuildSettingsRepository, gateway interfaces.PlatformGateway) *ReconcilerService {
	return &ReconcilerService{
		registry: registry,
		repo:     repo,
		gateway:  gateway,
	}
}

// ReconcileGuild runs one reconciliation pass for the guild. Disabled
// guilds are skipped with no side effects. A platform failure for one
// activity or one member is logged and does not abort the rest of the pass.
func (r *ReconcilerService) ReconcileGuild(ctx context.Context, guildID int64) error {
	unlock := r.registry.locks.Lock(guildID)
	defer unlock()

	settings, err := r.repo.GetOrCreateGuildSettings(ctx, guildID)
	if err != nil {
		return fmt.Errorf("failed to get guild settings: %w", err)
	}
	if !settings.Enabled {
		return nil
	}

	cctx, cancel := platformCtx(ctx)
	presences, err := r.gateway.SnapshotPresences(cctx, guildID)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to snapshot presences: %w", err)
	}

	candidates := AggregateActivities(presences)

	// Role membership comes from the snapshot, so auto-join does not need a
	// gateway round-trip per member.
	byUser := make(map[int64]*entities.MemberPresence, len(presences))
	for i := range presences {
		byUser[presences[i].UserID] = &presences[i]
	}

	// Deterministic order across the pass; map iteration order is not.
	names := make([]string, 0, len(candidates))
	for name := range candidates {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		members := candidates[name]
		if len(members) < settings.PlayerThreshold {
			// Existing records below threshold are deliberately left
			// untouched; communities persist even when activity drops.
			continue
		}

		sc := r.registry.findSubcommunity(ctx, settings, name)
		if sc == nil {
			sc, err = r.registry.createSubcommunity(ctx, settings, name, true)
			if err != nil {
				log.WithFields(log.Fields{
					"guild_id": guildID,
					"activity": name,
				}).WithError(err).Error("Failed to create subcommunity during reconciliation")
				continue
			}
		}

		for _, userID := range members {
			if sc.IsExcluded(userID) {
				continue
			}
			if p := byUser[userID]; p != nil && p.HasRole(sc.RoleID) {
				continue
			}

			cctx, cancel := platformCtx(ctx)
			err := r.gateway.GrantRole(cctx, guildID, userID, sc.RoleID)
			cancel()
			if err != nil {
				log.WithFields(log.Fields{
					"guild_id": guildID,
					"user_id":  userID,
					"activity": name,
				}).WithError(err).Error("Failed to auto-join member during reconciliation")
				continue
			}

			if err := r.registry.publisher.Publish(events.MemberJoinedEvent{
				GuildID:   guildID,
				UserID:    userID,
				Name:      sc.Name,
				RoleID:    sc.RoleID,
				Automatic: true,
			}); err != nil {
				log.WithError(err).Error("Failed to publish member joined event")
			}

			log.WithFields(log.Fields{
				"guild_id": guildID,
				"user_id":  userID,
				"name":     sc.Name,
			}).Info("Member auto-joined subcommunity")
		}
	}

	return nil
}
