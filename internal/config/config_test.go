package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, 8000, cfg.Gateway.Port)
	assert.Equal(t, "loopback", cfg.Gateway.Bind)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Gateway.AllowedOrigins)
	assert.Equal(t, 120, cfg.Gateway.TurnTimeoutSeconds)
	assert.Equal(t, "gemini", cfg.Model.Provider)
	assert.Equal(t, "gemini-1.5-pro", cfg.Model.Model)
	require.NotNil(t, cfg.Model.Temperature)
	assert.Equal(t, 0.0, *cfg.Model.Temperature)
	assert.Equal(t, DefaultSystemInstruction, cfg.Agent.SystemInstruction)
	assert.Equal(t, 8, cfg.Agent.MaxIterations)
	assert.Equal(t, 4000, cfg.Agent.ContextBudget)
	assert.Equal(t, 4, cfg.Agent.PerMessageOverhead)
	assert.Equal(t, "cl100k_base", cfg.Agent.Encoding)
	assert.Equal(t, 4, cfg.Tools.Concurrency)
	assert.Equal(t, "python3", cfg.Tools.Python.Interpreter)
	assert.Equal(t, "in", cfg.Search.GL)
	assert.Equal(t, "en", cfg.Search.HL)
	assert.Equal(t, "sqlite", cfg.Checkpoint.Store)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	// Should return defaults
	assert.Equal(t, 8000, cfg.Gateway.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadValidYAML(t *testing.T) {
	t.Setenv("TEST_SERPER_KEY", "serper-secret")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := `
gateway:
  port: 9999
  bind: lan
  auth:
    token: tok
model:
  provider: openai
  apiKey: sk-test
  fallbacks:
    - provider: gemini
      apiKey: g-key
agent:
  maxIterations: 3
  contextBudget: 1000
search:
  enabled: true
  apiKey: ${TEST_SERPER_KEY}
checkpoint:
  store: memory
logging:
  level: debug
  consoleStyle: json
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Gateway.Port)
	assert.Equal(t, "lan", cfg.Gateway.Bind)
	assert.Equal(t, "tok", cfg.Gateway.Auth.Token)
	assert.Equal(t, "openai", cfg.Model.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.Model.Model)
	assert.Equal(t, "sk-test", cfg.Model.APIKey)
	require.Len(t, cfg.Model.Fallbacks, 1)
	assert.Equal(t, "gemini", cfg.Model.Fallbacks[0].Provider)
	assert.Equal(t, 3, cfg.Agent.MaxIterations)
	assert.Equal(t, 1000, cfg.Agent.ContextBudget)
	assert.Equal(t, 4, cfg.Agent.PerMessageOverhead)
	assert.Equal(t, "serper-secret", cfg.Search.APIKey)
	assert.Equal(t, "memory", cfg.Checkpoint.Store)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.ConsoleStyle)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{{invalid yaml"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("KAIROS_GATEWAY_PORT", "12345")
	t.Setenv("KAIROS_LOG_LEVEL", "TRACE")
	t.Setenv("KAIROS_MODEL_PROVIDER", "OpenAI")
	t.Setenv("KAIROS_MODEL_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "from-env")

	cfg, err := Load("/nonexistent/config.yaml")
	require.NoError(t, err)

	assert.Equal(t, 12345, cfg.Gateway.Port)
	assert.Equal(t, "trace", cfg.Logging.Level)
	assert.Equal(t, "openai", cfg.Model.Provider)
	assert.Equal(t, "from-env", cfg.Model.APIKey)
}

func TestLoadProviderKeyFallbacks(t *testing.T) {
	t.Setenv("SERPER_API_KEY", "serper")
	t.Setenv("OPENWEATHERMAP_API_KEY", "owm")
	t.Setenv("GOOGLE_API_KEY", "google")
	t.Setenv("KAIROS_MODEL_PROVIDER", "")
	t.Setenv("KAIROS_MODEL_API_KEY", "")

	cfg, err := Load("/nonexistent/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "serper", cfg.Search.APIKey)
	assert.Equal(t, "owm", cfg.Tools.Weather.APIKey)
	assert.Equal(t, "google", cfg.Model.APIKey)
}

func TestExpandEnvVarsLeavesUnset(t *testing.T) {
	t.Setenv("KAIROS_TEST_SET", "x")
	assert.Equal(t, "x-${KAIROS_TEST_UNSET_VAR}", expandEnvVars("${KAIROS_TEST_SET}-${KAIROS_TEST_UNSET_VAR}"))
}

func TestLoadRawAndSaveRaw(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	raw := map[string]any{
		"gateway": map[string]any{
			"port": 9999,
		},
	}

	require.NoError(t, SaveRaw(path, raw))

	loaded, err := LoadRaw(path)
	require.NoError(t, err)

	val, ok := KeyPath{"gateway", "port"}.Lookup(loaded)
	assert.True(t, ok)
	assert.Equal(t, 9999, val)
}

func TestLoadRawMissingFile(t *testing.T) {
	raw, err := LoadRaw(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Empty(t, raw)
}

func TestConfigErrorMessage(t *testing.T) {
	err := &ConfigError{Message: "boom"}
	assert.Equal(t, "config: boom", err.Error())
}
