package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, 10, cfg.Matching.HistoryLimit)
	assert.Equal(t, 5*time.Minute, cfg.Cleanup.Interval)
	assert.InDelta(t, 1.0, cfg.Execution.SpeedFactor, 0.0001)
	assert.True(t, cfg.Auth.Enabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("EXECUTION_SPEED_FACTOR", "0.01")
	t.Setenv("CLEANUP_INTERVAL", "30s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.False(t, cfg.Redis.Enabled)
	assert.InDelta(t, 0.01, cfg.Execution.SpeedFactor, 0.0001)
	assert.Equal(t, 30*time.Second, cfg.Cleanup.Interval)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "staffing.yaml")
	content := `
server:
  port: 7070
storage:
  driver: memory
matching:
  history_limit: 3
auth:
  bootstrap_key: dev-key
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Matching.HistoryLimit)
	assert.Equal(t, "dev-key", cfg.Auth.BootstrapKey)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: 8080},
			Database: DatabaseConfig{DSN: "postgres://localhost/db"},
			Storage:  StorageConfig{Driver: DriverPostgres},
			Redis:    RedisConfig{Enabled: true, Address: "localhost:6379"},
			Matching: MatchingConfig{HistoryLimit: 10},
			Cleanup:  CleanupConfig{Interval: time.Minute},
		}
	}
	require.NoError(t, valid().Validate())

	tests := map[string]func(*Config){
		"port":          func(c *Config) { c.Server.Port = 0 },
		"dsn":           func(c *Config) { c.Database.DSN = "" },
		"driver":        func(c *Config) { c.Storage.Driver = "sqlite" },
		"redis address": func(c *Config) { c.Redis.Address = "" },
		"history":       func(c *Config) { c.Matching.HistoryLimit = 0 },
		"speed":         func(c *Config) { c.Execution.SpeedFactor = -1 },
		"cleanup":       func(c *Config) { c.Cleanup.Interval = 0 },
	}
	for name, mutate := range tests {
		cfg := valid()
		mutate(cfg)
		assert.Error(t, cfg.Validate(), name)
	}

	memory := valid()
	memory.Storage.Driver = DriverMemory
	memory.Database.DSN = ""
	assert.NoError(t, memory.Validate())
}
