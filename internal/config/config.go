// Package config loads runtime configuration from the environment, with a
// local .env file for development.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/inconshreveable/log15"
	"github.com/joho/godotenv"
)

var logger = log.New("module", "config")

// Config is the process configuration.
type Config struct {
	// DiscordToken authenticates the gateway session. Required.
	DiscordToken string
	// DatabaseURL is a postgres URL or a sqlite file path.
	DatabaseURL string
	// GeminiAPIKey enables /search when set.
	GeminiAPIKey string
	// RedisURL enables the search cooldown when set.
	RedisURL string
	// HTTPAddr is the ops server listen address.
	HTTPAddr string
	// MultiGuild stamps the origin guild on new applications.
	MultiGuild bool
	// StaleDays is the /todo staleness threshold.
	StaleDays int
	// SearchCooldown is the per-user gap between /search calls.
	SearchCooldown time.Duration
}

// Load reads .env when present and builds the config from the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file loaded", "err", err)
	}

	cfg := &Config{
		DiscordToken:   os.Getenv("DISCORD_TOKEN"),
		DatabaseURL:    envDefault("DATABASE_URL", "jobs.db"),
		GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
		RedisURL:       os.Getenv("REDIS_URL"),
		HTTPAddr:       envDefault("HTTP_ADDR", ":8080"),
		MultiGuild:     strings.EqualFold(os.Getenv("MULTI_GUILD_SUPPORT"), "true"),
		StaleDays:      envInt("STALE_DAYS", 7),
		SearchCooldown: time.Duration(envInt("SEARCH_COOLDOWN_SECONDS", 30)) * time.Second,
	}

	if cfg.DiscordToken == "" {
		return nil, errors.New("Load: DISCORD_TOKEN environment variable not set")
	}
	return cfg, nil
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Warn("invalid integer in environment, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return n
}
