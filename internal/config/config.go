package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	// Sources
	SourceUFCStatsEnabled bool          `envconfig:"SOURCE_UFCSTATS_ENABLED" default:"true"`
	SourceUFCStatsURL     string        `envconfig:"SOURCE_UFCSTATS_URL" default:"http://ufcstats.com"`
	SourceFetchLimit      int           `envconfig:"SOURCE_FETCH_LIMIT" default:"3"`
	SourceTimeout         time.Duration `envconfig:"SOURCE_TIMEOUT" default:"30s"`

	// Database
	DatabaseHost     string `envconfig:"DATABASE_HOST" default:"localhost"`
	DatabasePort     int    `envconfig:"DATABASE_PORT" default:"5432"`
	DatabaseName     string `envconfig:"DATABASE_NAME" default:"fightsync"`
	DatabaseUser     string `envconfig:"DATABASE_USER" default:"fightsync_user"`
	DatabasePassword string `envconfig:"DATABASE_PASSWORD" required:"true"`
	DatabaseSSLMode  string `envconfig:"DATABASE_SSL_MODE" default:"disable"`

	// Redis (only used when LEDGER_BACKEND=redis)
	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Strike ledger
	LedgerBackend        string `envconfig:"LEDGER_BACKEND" default:"file"`
	LedgerFilePath       string `envconfig:"LEDGER_FILE_PATH" default:"data/strike_ledger.json"`
	EventCancelThreshold int    `envconfig:"EVENT_CANCEL_THRESHOLD" default:"3"`
	FightCancelThreshold int    `envconfig:"FIGHT_CANCEL_THRESHOLD" default:"2"`

	// Reconciliation
	ReconcileCron     string        `envconfig:"RECONCILE_CRON" default:"0 */6 * * *"`
	FighterBatchSize  int           `envconfig:"FIGHTER_BATCH_SIZE" default:"10"`
	FighterBatchPause time.Duration `envconfig:"FIGHTER_BATCH_PAUSE" default:"250ms"`

	// Application
	AppEnv   string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Monitoring
	EnableMetrics bool `envconfig:"ENABLE_METRICS" default:"true"`
	MetricsPort   int  `envconfig:"METRICS_PORT" default:"9090"`
}

// Load loads configuration from environment variables
// It first attempts to load from .env file if in development mode
func Load() (*Config, error) {
	// Try to load .env file (ignore error if doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.DatabasePassword == "" {
		return fmt.Errorf("DATABASE_PASSWORD is required")
	}

	if c.LedgerBackend != "file" && c.LedgerBackend != "redis" {
		return fmt.Errorf("LEDGER_BACKEND must be \"file\" or \"redis\", got %q", c.LedgerBackend)
	}

	if c.LedgerBackend == "file" && c.LedgerFilePath == "" {
		return fmt.Errorf("LEDGER_FILE_PATH is required when LEDGER_BACKEND=file")
	}

	if c.EventCancelThreshold < 1 || c.FightCancelThreshold < 1 {
		return fmt.Errorf("cancel thresholds must be at least 1")
	}

	if c.SourceFetchLimit < 1 {
		return fmt.Errorf("SOURCE_FETCH_LIMIT must be at least 1")
	}

	return nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DatabaseHost,
		c.DatabasePort,
		c.DatabaseUser,
		c.DatabasePassword,
		c.DatabaseName,
		c.DatabaseSSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// MustLoad loads configuration or panics on error
// Use this in main() where we want to fail fast
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}
