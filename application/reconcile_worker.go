package application

import (
	"context"
	"sync"
	"time"

	"gamechannels/domain/interfaces"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// GuildLister reports the guilds the bot is currently a member of.
type GuildLister interface {
	GuildIDs() []int64
}

// ReconcileWorker periodically scans member presences across all guilds and
// drives them through the reconciler.
type ReconcileWorker struct {
	reconciler interfaces.Reconciler
	guilds     GuildLister
	interval   time.Duration
}

func NewReconcileWorker(reconciler interfaces.Reconciler, guilds GuildLister, interval time.Duration) *ReconcileWorker {
	return &ReconcileWorker{
		reconciler: reconciler,
		guilds:     guilds,
		interval:   interval,
	}
}

// Start launches the background reconciliation loop. The first pass runs
// immediately. Returns a cleanup function that stops the worker and blocks
// until any in-flight pass has finished, so callers can tear down the
// session and database behind it.
func (w *ReconcileWorker) Start(ctx context.Context) func() {
	ticker := time.NewTicker(w.interval)
	stopChan := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		log.Infof("Reconcile worker started with interval %v", w.interval)

		// Run immediately on startup
		w.runPass(ctx)

		for {
			select {
			case <-ctx.Done():
				log.Info("Reconcile worker shutting down (context cancelled)...")
				return
			case <-stopChan:
				log.Info("Reconcile worker shutting down (stop requested)...")
				return
			case <-ticker.C:
				w.runPass(ctx)
			}
		}
	}()

	return func() {
		ticker.Stop()
		close(stopChan)
		<-done
	}
}

// runPass reconciles every guild concurrently. Each guild is independent:
// a failure in one never blocks or aborts the others.
func (w *ReconcileWorker) runPass(ctx context.Context) {
	passID := uuid.New().String()[:8]
	guildIDs := w.guilds.GuildIDs()

	log.WithFields(log.Fields{
		"pass":   passID,
		"guilds": len(guildIDs),
	}).Debug("Starting reconciliation pass")

	start := time.Now()
	var wg sync.WaitGroup
	for _, guildID := range guildIDs {
		wg.Add(1)
		go func(guildID int64) {
			defer wg.Done()
			if err := w.reconciler.ReconcileGuild(ctx, guildID); err != nil {
				log.WithFields(log.Fields{
					"pass":  passID,
					"guild": guildID,
				}).WithError(err).Error("Reconciliation pass failed for guild")
			}
		}(guildID)
	}
	wg.Wait()

	log.WithFields(log.Fields{
		"pass":     passID,
		"guilds":   len(guildIDs),
		"duration": time.Since(start).Round(time.Millisecond),
	}).Debug("Reconciliation pass complete")
}
