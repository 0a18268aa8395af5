package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks the whole configuration
func (v *Validator) Validate(cfg *Config) error {
	if err := v.ValidateAPIKey(cfg.Upstream.APIKey); err != nil {
		return err
	}
	if err := v.ValidateBaseURL(cfg.Upstream.BaseURL); err != nil {
		return err
	}
	if err := v.ValidateModel(cfg.Upstream.Model); err != nil {
		return err
	}
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", cfg.Server.Port)
	}
	if cfg.Upstream.MaxTokens <= 0 {
		return fmt.Errorf("upstream max_tokens must be positive, got %d", cfg.Upstream.MaxTokens)
	}
	if cfg.Upstream.Temperature < 0 || cfg.Upstream.Temperature > 2 {
		return fmt.Errorf("upstream temperature must be between 0 and 2, got %v", cfg.Upstream.Temperature)
	}
	if cfg.Relay.SessionGrace <= 0 {
		return fmt.Errorf("relay session_grace must be positive, got %v", cfg.Relay.SessionGrace)
	}
	if cfg.Relay.SubscriberBuffer <= 0 {
		return fmt.Errorf("relay subscriber_buffer must be positive, got %d", cfg.Relay.SubscriberBuffer)
	}
	return nil
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string) error {
	if key == "" {
		return fmt.Errorf("upstream API key cannot be empty")
	}
	if !strings.HasPrefix(key, "sk-") {
		return fmt.Errorf("invalid upstream API key format (should start with sk-)")
	}
	return nil
}

// ValidateBaseURL validates the upstream base URL
func (v *Validator) ValidateBaseURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("upstream base URL cannot be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid upstream base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("upstream base URL must use http or https, got %q", u.Scheme)
	}
	return nil
}

// ValidateModel validates a model identifier
func (v *Validator) ValidateModel(model string) error {
	if model == "" {
		return fmt.Errorf("model identifier cannot be empty")
	}
	return nil
}
