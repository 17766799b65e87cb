package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Window.Size)
	assert.Equal(t, "Asia/Kolkata", cfg.Safety.Timezone)
	assert.Equal(t, 15, cfg.Safety.AnomalyPenalty)
	assert.Equal(t, 10, cfg.Safety.NightPenalty)
	assert.Equal(t, 0.1, cfg.Model.Contamination)
	assert.Equal(t, 5*time.Second, cfg.Notify.Timeout)
	assert.False(t, cfg.Model.TrainIfMissing, "trained model is opt-in")
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlDoc := `
window:
  backend: memory
  size: 20
database:
  driver: memory
safety:
  timezone: UTC
  lookback: 12h
notify:
  timeout: 2s
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o644))

	t.Setenv("PORT", "9090")
	t.Setenv("MODEL_CONTAMINATION", "0.05")
	t.Setenv("MODEL_TRAIN_IF_MISSING", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Window.Backend)
	assert.Equal(t, 20, cfg.Window.Size)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, "UTC", cfg.Safety.Timezone)
	assert.Equal(t, 12*time.Hour, cfg.Safety.Lookback)
	assert.Equal(t, 2*time.Second, cfg.Notify.Timeout)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 0.05, cfg.Model.Contamination)
	assert.True(t, cfg.Model.TrainIfMissing)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"tiny window", func(c *Config) { c.Window.Size = 1 }},
		{"bad backend", func(c *Config) { c.Window.Backend = "etcd" }},
		{"bad driver", func(c *Config) { c.Database.Driver = "postgres" }},
		{"bad contamination", func(c *Config) { c.Model.Contamination = 0.9 }},
		{"bad hour", func(c *Config) { c.Safety.NightStartHour = 24 }},
		{"bad timezone", func(c *Config) { c.Safety.Timezone = "Mars/Olympus" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, Default().Validate())
}
