// Package config loads and validates the YAML configuration shared by the
// ingest and query command-line front ends.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all simplexkg configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Witness   WitnessConfig   `yaml:"witness"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DatabaseConfig configures the persistence layer.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// EmbeddingConfig configures the extractor/embedding backend.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // "genai" or "ollama"
	Model    string `yaml:"model"`
	APIKey   string `yaml:"-"` // never serialized, always from env

	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`
}

// WitnessConfig configures the witness-complex builder.
type WitnessConfig struct {
	WindowMinutes int `yaml:"window_minutes"`
}

// IngestConfig configures the ingest pipeline.
type IngestConfig struct {
	DelaySeconds   float64 `yaml:"delay_seconds"`
	Limit          int     `yaml:"limit"`
	CheckpointPath string  `yaml:"checkpoint_path"`
	Resume         bool    `yaml:"resume"`
}

// LoggingConfig configures the category file logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"`
	Categories map[string]bool `yaml:"categories"`
}

// ErrConfiguration signals a configuration-failure per the error taxonomy:
// missing credentials, invalid provider names, malformed config files.
var ErrConfiguration = fmt.Errorf("configuration error")

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "simplexkg",
		Version: "0.1.0",

		Database: DatabaseConfig{
			Path: "data/simplexkg.db",
		},

		Embedding: EmbeddingConfig{
			Provider:       "genai",
			Model:          "gemini-embedding-001",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "nomic-embed-text",
		},

		Witness: WitnessConfig{
			WindowMinutes: 30,
		},

		Ingest: IngestConfig{
			DelaySeconds: 0.1,
			Resume:       true,
		},

		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// Load reads configuration from a YAML file, falling back to defaults if the
// file does not exist, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("%w: failed to read config %s: %v", ErrConfiguration, path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config %s: %v", ErrConfiguration, path, err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes configuration to a YAML file, creating parent directories as
// needed.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides layers environment variables on top of file/default
// configuration. The extractor API key is never read from a config file,
// only from the environment, so it never ends up on disk via Save.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("SIMPLEXKG_API_KEY"); key != "" {
		c.Embedding.APIKey = key
	}
	if provider := os.Getenv("SIMPLEXKG_PROVIDER"); provider != "" {
		c.Embedding.Provider = provider
	}
	if model := os.Getenv("SIMPLEXKG_MODEL"); model != "" {
		c.Embedding.Model = model
	}
	if path := os.Getenv("SIMPLEXKG_DB"); path != "" {
		c.Database.Path = path
	}
	if endpoint := os.Getenv("OLLAMA_ENDPOINT"); endpoint != "" {
		c.Embedding.OllamaEndpoint = endpoint
	}
}

// Validate checks that the configuration is internally consistent,
// returning a configuration-failure error describing the first problem
// found.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database path must not be empty", ErrConfiguration)
	}
	switch c.Embedding.Provider {
	case "genai":
		if c.Embedding.APIKey == "" {
			return fmt.Errorf("%w: SIMPLEXKG_API_KEY is required for provider genai", ErrConfiguration)
		}
	case "ollama":
		if c.Embedding.OllamaEndpoint == "" {
			return fmt.Errorf("%w: ollama_endpoint must not be empty for provider ollama", ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown embedding provider %q", ErrConfiguration, c.Embedding.Provider)
	}
	if c.Witness.WindowMinutes <= 0 {
		return fmt.Errorf("%w: witness window_minutes must be positive", ErrConfiguration)
	}
	return nil
}

// WindowDuration returns the configured witness window as a duration.
func (c *Config) WindowDuration() time.Duration {
	return time.Duration(c.Witness.WindowMinutes) * time.Minute
}
