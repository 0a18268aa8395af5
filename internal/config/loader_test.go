package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoaderDefaults(t *testing.T) {
	loader := NewLoader("")
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "https://openrouter.ai/api/v1", cfg.Upstream.BaseURL)
}

func TestLoaderFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "skillspeak.json")

	content := `{
		"server": {"port": 4000},
		"upstream": {
			"api_key": "sk-or-v1-test",
			"model": "mistralai/mistral-7b-instruct",
			"max_tokens": 2048
		},
		"relay": {"session_grace": "2m"}
	}`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))

	loader := NewLoader(configPath)
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, "sk-or-v1-test", cfg.Upstream.APIKey)
	assert.Equal(t, "mistralai/mistral-7b-instruct", cfg.Upstream.Model)
	assert.Equal(t, 2048, cfg.Upstream.MaxTokens)
	assert.Equal(t, 2*time.Minute, cfg.Relay.SessionGrace)

	// Unspecified fields keep defaults
	assert.Equal(t, 0.3, cfg.Upstream.Temperature)
	assert.Equal(t, 5*time.Minute, cfg.Upstream.Timeout)
}

func TestLoaderMissingFile(t *testing.T) {
	loader := NewLoader("/nonexistent/skillspeak.json")
	_, err := loader.Load()
	assert.Error(t, err)
}

func TestLoaderLegacyEnv(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "sk-or-v1-from-env")
	t.Setenv("OPENROUTER_MODEL", "mistralai/mistral-7b-instruct")
	t.Setenv("PORT", "5000")

	loader := NewLoader("")
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-or-v1-from-env", cfg.Upstream.APIKey)
	assert.Equal(t, "mistralai/mistral-7b-instruct", cfg.Upstream.Model)
	assert.Equal(t, 5000, cfg.Server.Port)
}

func TestLoaderPrefixedEnvWins(t *testing.T) {
	t.Setenv("OPENROUTER_MODEL", "legacy/model")
	t.Setenv("SKILLSPEAK_UPSTREAM_MODEL", "preferred/model")

	loader := NewLoader("")
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "preferred/model", cfg.Upstream.Model)
}
