package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDevelopmentDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, defaultAppName, cfg.AppName)
	assert.Equal(t, ":8080", cfg.Address())
	assert.Equal(t, devJWTSecret, cfg.JWTSecret)
	assert.Equal(t, defaultRecoveryTTL, cfg.RecoverySessionTTL)
	assert.Equal(t, defaultBcryptCost, cfg.BcryptCost)
	assert.True(t, cfg.IsDev())
}

func TestLoadParsesDurationsAndLevels(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("SESSION_TTL", "45m")
	t.Setenv("RECOVERY_SESSION_TTL", "90s")
	t.Setenv("PORT", ":9000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 45*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 90*time.Second, cfg.RecoverySessionTTL)
	assert.Equal(t, ":9000", cfg.Address())
}

func TestLoadProductionRequiresBackends(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoadProductionRejectsShortSecret(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://localhost/trustid")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("JWT_SECRET", "short")
	t.Setenv("ADMIN_API_KEY", "admin")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadRejectsThresholdOutOfRange(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("FACE_MATCH_THRESHOLD", "1.5")

	_, err := Load()
	require.Error(t, err)
}
