// Package config handles process configuration from environment variables
// and the feed graph file.
package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
)

// Cache backends.
const (
	BackendSQLite = "sqlite"
	BackendFiles  = "files"
)

// Config holds the process configuration.
type Config struct {
	GraphPath    string        `env:"CONFIG" envDefault:"feeds.yaml"`
	LogLevel     string        `env:"LOG_LEVEL" envDefault:"info"`
	BaseURL      string        `env:"BASE_URL" envDefault:"http://localhost:8080"`
	OutputDir    string        `env:"OUTPUT_DIR" envDefault:"./data/output"`
	Tick         time.Duration `env:"TICK" envDefault:"1m"`
	DelayMin     time.Duration `env:"DELAY_MIN" envDefault:"2s"`
	DelayMax     time.Duration `env:"DELAY_MAX" envDefault:"4s"`
	DatabasePath string        `env:"DATABASE_PATH" envDefault:"./data/cache.db"`
	MetricsAddr  string        `env:"METRICS_ADDR"`
	AllowedUsers []int64       `env:"ALLOWED_USERS"`

	Cache    Cache    `envPrefix:"CACHE_"`
	Telegram Telegram `envPrefix:"TELEGRAM_"`
	AI       AI       `envPrefix:"AI_"`
}

// Cache configures the document cache.
type Cache struct {
	Backend string `env:"BACKEND" envDefault:"sqlite"`
	Dir     string `env:"DIR" envDefault:"./data/cache"`
	LRUSize int    `env:"LRU_SIZE" envDefault:"512"`
}

// Telegram configures the operator bot.
type Telegram struct {
	BotToken string `env:"BOT_TOKEN"`
}

// AI configures the completion client used by ai_filter feeds.
type AI struct {
	Provider    string        `env:"PROVIDER" envDefault:"claude"`
	BaseURL     string        `env:"BASE_URL"`
	APIKey      string        `env:"API_KEY"`
	Model       string        `env:"MODEL"`
	MinInterval time.Duration `env:"MIN_INTERVAL" envDefault:"1s"`
}

// Load reads configuration from RSSGLUE_* environment variables.
func Load() (*Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](env.Options{
		Prefix: "RSSGLUE_",
	})
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if !slices.Contains([]string{BackendSQLite, BackendFiles}, c.Cache.Backend) {
		return fmt.Errorf("unknown cache backend %q (valid: %s, %s)", c.Cache.Backend, BackendSQLite, BackendFiles)
	}
	if c.DelayMin < 0 || c.DelayMax < c.DelayMin {
		return fmt.Errorf("invalid delay range [%s, %s)", c.DelayMin, c.DelayMax)
	}
	if c.Tick <= 0 {
		return fmt.Errorf("tick must be positive, got %s", c.Tick)
	}
	return nil
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	return slices.Contains(c.AllowedUsers, userID)
}
