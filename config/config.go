package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gamechannels/database"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Discord configuration
	DiscordToken string

	// Database configuration
	DatabaseURL  string
	DatabaseName string

	// Reconciliation configuration
	BackgroundInterval time.Duration // Interval between presence reconciliation passes

	// Operator configuration
	AdminID int64 // Discord user ID allowed to use the operator DM surface

	// NATS configuration
	NATSServers string // NATS server addresses (comma-separated), empty disables publishing

	// Environment
	Environment string // "development" or "production"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g., by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			// In test environment, use a default test config instead of panicking
			if os.Getenv("GO_TEST") == "1" || os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
				instance.DiscordToken = "test-token"
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// load loads configuration from environment variables
func load() (*Config, error) {
	// Load a local .env if present; real environment variables take precedence
	_ = godotenv.Load()

	config := &Config{
		// Discord
		DiscordToken: os.Getenv("DISCORD_TOKEN"),

		// Database
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabaseName: os.Getenv("DATABASE_NAME"),

		// Reconciliation
		BackgroundInterval: 60 * time.Second,

		// NATS, empty means event publishing is disabled
		NATSServers: os.Getenv("NATS_SERVERS"),

		// Environment
		Environment: os.Getenv("ENVIRONMENT"),
	}

	// Override defaults if environment variables are set
	if interval := os.Getenv("BACKGROUND_INTERVAL"); interval != "" {
		seconds, err := strconv.Atoi(interval)
		if err != nil || seconds < 1 {
			return nil, fmt.Errorf("BACKGROUND_INTERVAL must be a positive number of seconds, got %q", interval)
		}
		config.BackgroundInterval = time.Duration(seconds) * time.Second
	}
	if adminID := os.Getenv("ADMIN_ID"); adminID != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(adminID), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ADMIN_ID must be a Discord user ID, got %q", adminID)
		}
		config.AdminID = id
	}

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Environment != "test" {
		// Validate required configuration
		if config.DiscordToken == "" {
			return nil, fmt.Errorf("DISCORD_TOKEN is required")
		}
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
		// If DatabaseName is provided, ensure it's not empty
		if config.DatabaseName != "" && strings.TrimSpace(config.DatabaseName) == "" {
			return nil, fmt.Errorf("DATABASE_NAME cannot be empty when provided")
		}
	}

	return config, nil
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
// This should only be called from test files
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
// This should only be called from test files
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Environment:        "test",
		BackgroundInterval: 60 * time.Second,
		AdminID:            999999,
	}
}
