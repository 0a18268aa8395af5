package config

import (
	"fmt"
	"time"
)

// Config represents the main SkillSpeak relay configuration
type Config struct {
	// HTTP server
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Upstream completion provider
	Upstream UpstreamConfig `json:"upstream" mapstructure:"upstream"`

	// Relay behavior
	Relay RelayConfig `json:"relay" mapstructure:"relay"`

	// Instruction profile
	Profile ProfileConfig `json:"profile" mapstructure:"profile"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `json:"host" mapstructure:"host"`
	Port            int           `json:"port" mapstructure:"port"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// UpstreamConfig holds completion provider configuration
type UpstreamConfig struct {
	APIKey       string        `json:"api_key" mapstructure:"api_key"`
	BaseURL      string        `json:"base_url" mapstructure:"base_url"`
	Model        string        `json:"model" mapstructure:"model"`
	MaxTokens    int           `json:"max_tokens" mapstructure:"max_tokens"`
	Temperature  float64       `json:"temperature" mapstructure:"temperature"`
	TopP         float64       `json:"top_p" mapstructure:"top_p"`
	Timeout      time.Duration `json:"timeout" mapstructure:"timeout"`
	SystemPrompt string        `json:"system_prompt" mapstructure:"system_prompt"`
}

// RelayConfig holds session and broadcast configuration
type RelayConfig struct {
	// How long an empty session survives before it is reaped
	SessionGrace time.Duration `json:"session_grace" mapstructure:"session_grace"`

	// Outbound frame buffer per subscriber
	SubscriberBuffer int `json:"subscriber_buffer" mapstructure:"subscriber_buffer"`
}

// ProfileConfig holds instruction profile configuration
type ProfileConfig struct {
	Path  string `json:"path" mapstructure:"path"`
	Watch bool   `json:"watch" mapstructure:"watch"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3000,
			ShutdownTimeout: 10 * time.Second,
		},
		Upstream: UpstreamConfig{
			BaseURL:     "https://openrouter.ai/api/v1",
			MaxTokens:   6000,
			Temperature: 0.3,
			TopP:        0.95,
			Timeout:     5 * time.Minute,
		},
		Relay: RelayConfig{
			SessionGrace:     5 * time.Minute,
			SubscriberBuffer: 256,
		},
		Profile: ProfileConfig{
			Watch: true,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Pretty:    false,
			Redaction: true,
		},
	}
}

// Addr returns the listen address for the HTTP server
func (c *ServerConfig) Addr() string {
	host := c.Host
	if host == "" {
		host = "0.0.0.0"
	}
	port := c.Port
	if port == 0 {
		port = 3000
	}
	return fmt.Sprintf("%s:%d", host, port)
}
