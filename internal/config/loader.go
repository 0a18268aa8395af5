package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load loads the configuration from file and environment
func (l *Loader) Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("json")

	// Read environment variables
	v.SetEnvPrefix("SKILLSPEAK")
	v.AutomaticEnv()

	// Legacy environment names kept for compatibility with existing
	// deployments of the Node relay.
	bindings := map[string][]string{
		"server.port":            {"SKILLSPEAK_SERVER_PORT", "PORT"},
		"upstream.api_key":       {"SKILLSPEAK_UPSTREAM_API_KEY", "OPENROUTER_API_KEY"},
		"upstream.base_url":      {"SKILLSPEAK_UPSTREAM_BASE_URL", "OPENROUTER_BASE_URL"},
		"upstream.model":         {"SKILLSPEAK_UPSTREAM_MODEL", "OPENROUTER_MODEL"},
		"upstream.max_tokens":    {"SKILLSPEAK_UPSTREAM_MAX_TOKENS", "MAX_TOKENS"},
		"upstream.temperature":   {"SKILLSPEAK_UPSTREAM_TEMPERATURE", "TEMPERATURE"},
		"upstream.system_prompt": {"SKILLSPEAK_UPSTREAM_SYSTEM_PROMPT", "OPENROUTER_SYSTEM_PROMPT"},
		"logging.level":          {"SKILLSPEAK_LOG_LEVEL"},
		"logging.file":           {"SKILLSPEAK_LOG_FILE"},
		"relay.session_grace":    {"SKILLSPEAK_SESSION_GRACE"},
		"profile.path":           {"SKILLSPEAK_PROFILE_PATH"},
	}
	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	// Optional config file
	if l.configPath != "" {
		if _, err := os.Stat(l.configPath); err != nil {
			return nil, fmt.Errorf("config file not found: %w", err)
		}
		v.SetConfigFile(l.configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal onto defaults
	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}
