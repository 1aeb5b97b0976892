package configs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("GO_ENV", "test")
	t.Setenv("APP_PORT", "")
	t.Setenv("DB_PORT", "not-a-number")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("JWT_TTL_HOURS", "")

	cfg := LoadConfig()

	assert.Equal(t, 3004, cfg.AppPort)
	assert.Equal(t, 5432, cfg.DBPort)
	assert.Equal(t, 168*time.Hour, cfg.JWTTTL)
	assert.Equal(t, devSecret, cfg.JWTSecret)
	assert.Equal(t, "@every 5m", cfg.RecentCron)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("GO_ENV", "production")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("CACHE_TTL_SECONDS", "60")

	cfg := LoadConfig()

	assert.Equal(t, 8080, cfg.AppPort)
	assert.Empty(t, cfg.JWTSecret, "production must not fall back to the dev secret")
	assert.Equal(t, time.Minute, cfg.CacheTTL)
	assert.False(t, cfg.IsDevelopment())
}
