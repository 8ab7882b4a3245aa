package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DISCORD_TOKEN", "DATABASE_URL", "GEMINI_API_KEY", "REDIS_URL",
		"HTTP_ADDR", "MULTI_GUILD_SUPPORT", "STALE_DAYS", "SEARCH_COOLDOWN_SECONDS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadRequiresToken(t *testing.T) {
	clearEnv(t)
	if _, err := Load(); err == nil {
		t.Fatal("Load succeeded without DISCORD_TOKEN")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISCORD_TOKEN", "token")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DatabaseURL != "jobs.db" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.MultiGuild {
		t.Error("MultiGuild should default to false")
	}
	if cfg.StaleDays != 7 {
		t.Errorf("StaleDays = %d", cfg.StaleDays)
	}
	if cfg.SearchCooldown != 30*time.Second {
		t.Errorf("SearchCooldown = %v", cfg.SearchCooldown)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("DATABASE_URL", "postgres://db/hiretrack")
	t.Setenv("MULTI_GUILD_SUPPORT", "TRUE")
	t.Setenv("STALE_DAYS", "14")
	t.Setenv("SEARCH_COOLDOWN_SECONDS", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DatabaseURL != "postgres://db/hiretrack" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if !cfg.MultiGuild {
		t.Error("MULTI_GUILD_SUPPORT=TRUE should enable MultiGuild")
	}
	if cfg.StaleDays != 14 {
		t.Errorf("StaleDays = %d", cfg.StaleDays)
	}
	if cfg.SearchCooldown != 5*time.Second {
		t.Errorf("SearchCooldown = %v", cfg.SearchCooldown)
	}
}

func TestLoadBadIntegerFallsBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("STALE_DAYS", "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StaleDays != 7 {
		t.Errorf("StaleDays = %d, want default 7", cfg.StaleDays)
	}
}
