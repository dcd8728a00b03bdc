package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, 5.0, cfg.Webhook.RatePerSecond)
	assert.Equal(t, 8, cfg.Jobs.DailyHour)
	assert.Equal(t, 3, cfg.Jobs.ContractNoticeDays)
}

func TestLoadExpandsEnv(t *testing.T) {
	os.Setenv("TEST_WEBHOOK_TOKEN", "s3cret")
	defer os.Unsetenv("TEST_WEBHOOK_TOKEN")

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  port: "9001"
webhook:
  url: https://hooks.example.com/rental
  token: ${TEST_WEBHOOK_TOKEN}
jobs:
  daily_hour: 7
  daily_minute: 30
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9001", cfg.Server.Port)
	assert.Equal(t, "s3cret", cfg.Webhook.Token)
	assert.Equal(t, 7, cfg.Jobs.DailyHour)
	assert.Equal(t, 30, cfg.Jobs.DailyMinute)
	// unset fields still defaulted
	assert.Equal(t, 10, cfg.Webhook.Burst)
}
