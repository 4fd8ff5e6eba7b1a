package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 0.35, cfg.Focus.WeightStability)
	assert.Equal(t, 0.30, cfg.Focus.WeightEngagement)
	assert.Equal(t, 10*time.Minute, cfg.Focus.IdleMinDuration)
	assert.Equal(t, 5*time.Minute, cfg.Focus.DurationTolerance)
	assert.Equal(t, 100000, cfg.Focus.MaxCount)
	assert.Equal(t, 720*time.Hour, cfg.Analytics.DefaultWindow)
	assert.True(t, cfg.Analytics.CacheEnabled)
	assert.Equal(t, 30, cfg.Attendance.HistoryLimit)
	assert.Nil(t, cfg.CORS.AllowedOrigins)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ENV", EnvProduction)
	t.Setenv("FOCUS_WEIGHT_STABILITY", "0.5")
	t.Setenv("FOCUS_WEIGHT_STILLNESS", "0.25")
	t.Setenv("FOCUS_WEIGHT_ENGAGEMENT", "0.25")
	t.Setenv("FOCUS_IDLE_MIN_DURATION", "15m")
	t.Setenv("ANALYTICS_CACHE_TTL", "not-a-duration")
	t.Setenv("ENABLE_ANALYTICS_CACHE", "false")
	t.Setenv("ALLOWED_ORIGINS", "https://a.test, ,https://b.test")
	t.Setenv("ATTENDANCE_TIMEZONE", "Asia/Jakarta")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvProduction, cfg.Env)
	assert.Equal(t, 0.5, cfg.Focus.WeightStability)
	assert.Equal(t, 15*time.Minute, cfg.Focus.IdleMinDuration)
	assert.Equal(t, 10*time.Minute, cfg.Analytics.CacheTTL)
	assert.False(t, cfg.Analytics.CacheEnabled)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "Asia/Jakarta", cfg.Attendance.Timezone)
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, time.Second, parseDuration("", time.Second))
	assert.Equal(t, time.Second, parseDuration("soon", time.Second))
	assert.Equal(t, 90*time.Second, parseDuration("1m30s", time.Second))
}
