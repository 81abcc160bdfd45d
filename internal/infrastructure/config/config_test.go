package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "anthropic/claude-sonnet-4", cfg.AI.DefaultModel)
	assert.Equal(t, 10, cfg.Chat.BackupEvery)
	assert.Equal(t, 5, cfg.Chat.BackupRetain)
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)
	require.NoError(t, validateConfig(cfg))
}

func TestLoadFromFileWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keladiary.toml")
	require.NoError(t, WriteDefaultFile(path, false))

	t.Setenv("SERVER_PORT", "9100")
	t.Setenv("STORAGE_BACKEND", "memory")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, 168*time.Hour, cfg.JWT.ExpiresIn)
}

func TestWriteDefaultFileRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keladiary.toml")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	assert.Error(t, WriteDefaultFile(path, false))
	require.NoError(t, WriteDefaultFile(path, true))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, toml.Unmarshal(data, &doc))
	assert.Contains(t, doc, "storage")
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "etcd" }},
		{"unknown provider", func(c *Config) { c.AI.Provider = "acme" }},
		{"default secret in production", func(c *Config) { c.App.Environment = "production" }},
		{"google without token", func(c *Config) { c.Calendar.Google.Enabled = true }},
		{"zero backup cadence", func(c *Config) { c.Chat.BackupEvery = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, validateConfig(cfg))
		})
	}
}

func TestCalendarLocation(t *testing.T) {
	c := CalendarConfig{Timezone: "Asia/Shanghai"}
	loc, err := c.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Shanghai", loc.String())

	c.Timezone = "Not/AZone"
	_, err = c.Location()
	assert.Error(t, err)
}
