package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("WHATSAPP_TOKEN", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
	if cfg.WhatsAppToken != "" {
		t.Fatalf("expected empty WHATSAPP_TOKEN when unset, got %q", cfg.WhatsAppToken)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("BCRYPT_COST", "")
	t.Setenv("ACCESS_TOKEN_TTL_HOURS", "")
	t.Setenv("TIMEZONE", "")
	t.Setenv("APP_ENV", "")
	t.Setenv("LOG_FORMAT", "")

	cfg := Load()
	assert.Equal(t, ":8080", cfg.Address())
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.Equal(t, 7*24*time.Hour, cfg.AccessTokenTTL())
	assert.Equal(t, 10*time.Minute, cfg.OTPTTL())
	assert.True(t, cfg.RunMigrations)
	assert.Equal(t, "Asia/Kolkata", cfg.Timezone)
	assert.Equal(t, "console", cfg.LogFormat)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "Production")
	t.Setenv("PORT", "9090")
	t.Setenv("NOTIFY_WORKERS", "-1")
	t.Setenv("RUN_MIGRATIONS", "false")
	t.Setenv("LOG_FORMAT", "")

	cfg := Load()
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, ":9090", cfg.Address())
	assert.Equal(t, 4, cfg.NotifyWorkers)
	assert.False(t, cfg.RunMigrations)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLocationFallsBackToUTC(t *testing.T) {
	assert.Equal(t, time.UTC, Config{Timezone: "Mars/Olympus"}.Location())
	assert.Equal(t, time.UTC, Config{}.Location())
}
