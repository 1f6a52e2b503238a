package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("PORT", "")
	t.Setenv("SESSION_TTL", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "test-key", cfg.AIAPIKey)
	assert.Equal(t, 50, cfg.MaxPages)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
	assert.Equal(t, []string{"*"}, cfg.CorsAllowedOrigins)
	assert.False(t, cfg.ArchiveEnabled())
}

func TestLoadConfigRequiresAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("X_DURATION", "90s")
	assert.Equal(t, 90*time.Second, getEnvDuration("X_DURATION", time.Second))

	t.Setenv("X_DURATION", "15")
	assert.Equal(t, 15*time.Second, getEnvDuration("X_DURATION", time.Second))

	t.Setenv("X_DURATION", "soon")
	assert.Equal(t, time.Second, getEnvDuration("X_DURATION", time.Second))
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("X_LIST", " https://a.example, ,https://b.example ")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, getEnvList("X_LIST", nil))
}
