package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)

	assert.Equal(t, "deepseek-chat", cfg.Agents.Defaults.Model)
	assert.Equal(t, 50, cfg.Agents.Defaults.MaxToolIterations)
	assert.Equal(t, 5, cfg.Agents.Subagents.MaxConcurrent)
	assert.True(t, cfg.Sandbox.Enabled)
	assert.Equal(t, "session", cfg.Sandbox.Mode)
	assert.Equal(t, "direct", cfg.Sandbox.Backend)
	assert.True(t, cfg.Heartbeat.Enabled)
	assert.Equal(t, 30, cfg.Heartbeat.IntervalMinutes)
}

func TestLoadConfigMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"agents": {"defaults": {"model": "gpt-4o", "memoryWindow": 20}},
		"channels": {"telegram": {"enabled": true, "token": "123:abc"}}
	}`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", cfg.Agents.Defaults.Model)
	assert.Equal(t, 20, cfg.Agents.Defaults.MemoryWindow)
	assert.True(t, cfg.Channels.Telegram.Enabled)
	assert.Equal(t, "123:abc", cfg.Channels.Telegram.Token)
	// untouched sections keep their defaults
	assert.Equal(t, "ubuntu:24.04", cfg.Sandbox.Container.Image)
}

func TestLoadConfigRejectsInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := DefaultConfig()
	cfg.Agents.Defaults.Model = "claude-sonnet-4"
	cfg.Providers.DeepSeek.APIKey = "sk-test"
	require.NoError(t, Save(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4", loaded.Agents.Defaults.Model)
	assert.Equal(t, "sk-test", loaded.Providers.DeepSeek.APIKey)
}

func TestWorkspacePathExpandsHome(t *testing.T) {
	cfg := DefaultConfig()
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	ws := cfg.WorkspacePath()
	assert.Equal(t, filepath.Join(home, ".vikingbot", "workspace"), ws)

	cfg.Agents.Defaults.Workspace = "/tmp/explicit"
	assert.Equal(t, "/tmp/explicit", cfg.WorkspacePath())
}
