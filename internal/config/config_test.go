package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, StorageSQLite, cfg.Storage.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Workflow.MaxAttempts)
	assert.Equal(t, time.Minute, cfg.Reports.CacheTTL)
	assert.Equal(t, "@every 15m", cfg.Scheduler.OverdueSchedule)
	assert.Equal(t, 5*time.Second, cfg.Database.BusyTimeout)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: memory
server:
  port: 9090
workflow:
  max_attempts: 5
reports:
  cache_ttl: 30s
approvers:
  default_manager: mgr-default
  finance: fin-1
  managers:
    u-1: mgr-1
  delegates:
    mgr-1: [deputy-1, deputy-2]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, StorageMemory, cfg.Storage.Driver)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Workflow.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Reports.CacheTTL)
	assert.Equal(t, "mgr-1", cfg.Approvers.Managers["u-1"])
	assert.Equal(t, []string{"deputy-1", "deputy-2"}, cfg.Approvers.Delegates["mgr-1"])

	cc := cfg.ToContainerConfig()
	assert.Equal(t, "memory", cc.Driver)
	assert.Equal(t, "fin-1", cc.Approvers.Finance)
	assert.Equal(t, 5, cc.Workflow.MaxAttempts)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("LARK_APP_ID", "cli_x")
	t.Setenv("LARK_APP_SECRET", "secret")
	t.Setenv("APPROVAL_SERVER_PORT", "7070")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "cli_x", cfg.Lark.AppID)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Storage:   StorageConfig{Driver: StorageSQLite},
			Database:  DatabaseConfig{Path: "x.db"},
			Server:    ServerConfig{Port: 8080},
			Workflow:  WorkflowConfig{MaxAttempts: 3},
			Scheduler: SchedulerConfig{Enabled: true, OverdueSchedule: "@every 1m"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "postgres" }, true},
		{"sqlite without path", func(c *Config) { c.Database.Path = "" }, true},
		{"memory without path", func(c *Config) { c.Storage.Driver = StorageMemory; c.Database.Path = "" }, false},
		{"zero attempts", func(c *Config) { c.Workflow.MaxAttempts = 0 }, true},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, true},
		{"half lark credentials", func(c *Config) { c.Lark.AppID = "cli_x" }, true},
		{"scheduler without schedule", func(c *Config) { c.Scheduler.OverdueSchedule = "" }, true},
		{"negative ttl", func(c *Config) { c.Reports.CacheTTL = -time.Second }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
