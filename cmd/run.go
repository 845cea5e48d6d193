package cmd

import (
	"context"
	"fmt"
	"time"

	"gamechannels/application"
	"gamechannels/bot"
	"gamechannels/config"
	"gamechannels/database"
	"gamechannels/domain/interfaces"
	"gamechannels/domain/services"
	"gamechannels/infrastructure"
	"gamechannels/repository"

	log "github.com/sirupsen/logrus"
)

// Size of the in-memory log ring served by the operator "log" command.
const logBufferSize = 500

// Run initializes and starts the application
func Run(ctx context.Context, cancel context.CancelFunc) error {
	log.Info("Starting gamechannels bot...")

	// Load configuration
	cfg := config.Get()

	// Keep a tail of recent log lines for the operator surface
	logBuffer := infrastructure.NewLogBuffer(logBufferSize)
	log.AddHook(logBuffer)

	// Initialize database connection
	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("Database connection established successfully")

	// Initialize event publisher
	var publisher interfaces.EventPublisher
	var natsClient *infrastructure.NATSClient
	if cfg.NATSServers != "" {
		log.Infof("Connecting to NATS at %s...", cfg.NATSServers)
		natsClient = infrastructure.NewNATSClient(cfg.NATSServers)
		if err := natsClient.Connect(); err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		publisher = infrastructure.NewNATSEventPublisher(natsClient)
		log.Info("NATS connection established successfully")
	} else {
		log.Info("NATS not configured, lifecycle events will not be published")
		publisher = infrastructure.NewNoopEventPublisher()
	}

	// Initialize repository and services
	repo := repository.NewGuildSettingsRepository(db)

	// Initialize Discord bot
	log.Info("Initializing Discord bot...")
	session, err := bot.NewSession(cfg.DiscordToken)
	if err != nil {
		return fmt.Errorf("failed to create Discord session: %w", err)
	}
	gateway := bot.NewGateway(session)
	registry := services.NewRegistryService(repo, gateway, publisher)
	reconciler := services.NewReconcilerService(registry, repo, gateway)

	botConfig := bot.Config{
		AdminID: cfg.AdminID,
	}
	discordBot, err := bot.New(botConfig, session, registry, logBuffer, cancel)
	if err != nil {
		return fmt.Errorf("failed to initialize Discord bot: %w", err)
	}
	log.Info("Discord bot initialized successfully")

	// Start the background reconciliation worker
	worker := application.NewReconcileWorker(reconciler, discordBot, cfg.BackgroundInterval)
	stopWorker := worker.Start(ctx)
	log.Info("Background workers started")

	// Wait for context cancellation
	log.Infof("Bot is running in %s mode...", cfg.Environment)
	<-ctx.Done()

	// Cleanup resources
	log.Info("Shutting down bot...")
	stopWorker()

	if err := discordBot.Close(); err != nil {
		log.Errorf("Error closing Discord bot: %v", err)
	}

	if natsClient != nil {
		natsClient.Close()
	}

	// Give cleanup operations time to complete
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	log.Info("Closing database connection...")
	db.Close()

	select {
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout exceeded")
	case <-time.After(1 * time.Second):
		log.Info("Shutdown completed")
	}

	return nil
}
