// Package config provides configuration loading and management for the
// mapping editor.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/mapspec/gateway"
)

// Config represents the complete mapspec configuration.
type Config struct {
	API     APIConfig     `yaml:"api"`
	NATS    NATSConfig    `yaml:"nats"`
	Suggest SuggestConfig `yaml:"suggest"`
}

// APIConfig configures the remote mapping service connection.
type APIConfig struct {
	// BaseURL is the service base URL, e.g. "http://localhost:9000".
	BaseURL string `yaml:"base_url"`
	// Project is the project identifier.
	Project string `yaml:"project"`
	// TransformTask is the transform task identifier.
	TransformTask string `yaml:"transform_task"`
	// Timeout is the per-request timeout (default: 30s).
	Timeout time.Duration `yaml:"timeout"`
}

// NATSConfig configures the notification bus connection.
type NATSConfig struct {
	// URL is the NATS server URL (empty = in-process bus only).
	URL string `yaml:"url"`
}

// SuggestConfig configures the suggestion pipeline.
type SuggestConfig struct {
	// NrCandidates is the max number of candidates per source item.
	NrCandidates int `yaml:"nr_candidates"`
	// IgnorePaths lists glob patterns of source paths to drop from
	// unused-path suggestions.
	IgnorePaths []string `yaml:"ignore_paths"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Timeout: 30 * time.Second,
		},
		Suggest: SuggestConfig{
			NrCandidates: 1,
		},
	}
}

// Details returns the gateway connection details of the configuration.
func (c *Config) Details() gateway.Details {
	return gateway.Details{
		BaseURL:       c.API.BaseURL,
		Project:       c.API.Project,
		TransformTask: c.API.TransformTask,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.API.Project == "" {
		return fmt.Errorf("api.project is required")
	}
	if c.API.TransformTask == "" {
		return fmt.Errorf("api.transform_task is required")
	}
	if c.Suggest.NrCandidates < 0 {
		return fmt.Errorf("suggest.nr_candidates must not be negative")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file on top of the
// defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for
// non-zero values).
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.API.BaseURL != "" {
		c.API.BaseURL = other.API.BaseURL
	}
	if other.API.Project != "" {
		c.API.Project = other.API.Project
	}
	if other.API.TransformTask != "" {
		c.API.TransformTask = other.API.TransformTask
	}
	if other.API.Timeout != 0 {
		c.API.Timeout = other.API.Timeout
	}

	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}

	if other.Suggest.NrCandidates != 0 {
		c.Suggest.NrCandidates = other.Suggest.NrCandidates
	}
	if len(other.Suggest.IgnorePaths) > 0 {
		c.Suggest.IgnorePaths = other.Suggest.IgnorePaths
	}
}
