// Package config loads server configuration from a YAML file with
// environment-variable overrides for secrets.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration.
type Config struct {
	Listen   string `yaml:"listen"`
	Database string `yaml:"database"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	Gemini struct {
		APIKey      string `yaml:"api_key"`
		Model       string `yaml:"model"`
		FilterModel string `yaml:"filter_model"`
	} `yaml:"gemini"`

	WebhookURL string `yaml:"webhook_url"`

	HistoryRetentionDays int `yaml:"history_retention_days"`
	SessionTTLHours      int `yaml:"session_ttl_hours"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{
		Listen:               ":8080",
		Database:             "toolshed.db",
		HistoryRetentionDays: 30,
		SessionTTLHours:      24,
	}
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	return cfg
}

// Load reads path (optional) and applies environment overrides.
// GEMINI_API_KEY and TOOLSHED_WEBHOOK always win over the file so
// secrets stay out of config files.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Gemini.APIKey = v
	}
	if v := os.Getenv("TOOLSHED_WEBHOOK"); v != "" {
		cfg.WebhookURL = v
	}
	if v := os.Getenv("TOOLSHED_LISTEN"); v != "" {
		cfg.Listen = v
	}

	if cfg.HistoryRetentionDays < 1 {
		return nil, fmt.Errorf("history_retention_days must be positive, got %d", cfg.HistoryRetentionDays)
	}
	return cfg, nil
}
