package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 10, cfg.RequestDefaults.SafetyTokens)
	assert.Equal(t, 1.0, cfg.RequestDefaults.Temperature)
	assert.Equal(t, 3, cfg.RequestDefaults.RetryAfterFailNTimes)
	assert.False(t, cfg.Devices.ErrorOnIssue)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().RequestDefaults, cfg.RequestDefaults)
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlContent := `
local_server:
  binary_path: /opt/llama-server
  port: 8080
request_defaults:
  temperature: 0.5
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/opt/llama-server", cfg.LocalServer.BinaryPath)
	assert.Equal(t, 8080, cfg.LocalServer.Port)
	assert.Equal(t, 0.5, cfg.RequestDefaults.Temperature)
	// Unset fields still default.
	assert.Equal(t, 10, cfg.RequestDefaults.SafetyTokens)
}

func TestApplyEnvOverridesDoesNotClobberFile(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "env-key")

	cfg := DefaultConfig()
	cfg.RemoteProviders["anthropic"] = ProviderConfig{APIKey: "file-key"}
	applyEnvOverrides(cfg)

	assert.Equal(t, "file-key", cfg.RemoteProviders["anthropic"].APIKey)
}

func TestApplyEnvOverridesFillsBlank(t *testing.T) {
	t.Setenv("MISTRAL_API_KEY", "env-key")

	cfg := DefaultConfig()
	applyEnvOverrides(cfg)

	assert.Equal(t, "env-key", cfg.RemoteProviders["mistral"].APIKey)
}
