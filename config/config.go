// Package config loads client configuration for the analysis service from a
// YAML file, filling in defaults for anything the file leaves unset.
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds client settings for the analysis service. Zero values fall
// back to the defaults applied by Load.
type Config struct {
	BaseURL        string              `yaml:"base_url"`
	Provider       string              `yaml:"provider"`
	Model          string              `yaml:"model"`
	APIKeyEnv      string              `yaml:"api_key_env"` // e.g. "OPENAI_API_KEY"
	TimeoutSeconds int                 `yaml:"timeout_seconds"`
	Retry          RetryConfig         `yaml:"retry"`
	Observability  ObservabilityConfig `yaml:"observability"`
	PrefsPath      string              `yaml:"prefs_path"`
}

// RetryConfig bounds the transport retry loop.
type RetryConfig struct {
	MaxRetries  int `yaml:"max_retries"`
	BaseDelayMS int `yaml:"base_delay_ms"`
}

// ObservabilityConfig controls the OpenTelemetry bootstrap.
type ObservabilityConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"` // otlp | stdout | none
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	Environment string  `yaml:"environment"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Load reads configuration from a YAML file.
// If the file doesn't exist, it returns a default config and no error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// DefaultPath returns the conventional config location under the user config
// directory, typically ~/.config/ruleforge/config.yaml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "ruleforge", "config.yaml"), nil
}

// Timeout returns the overall request timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// APIKey resolves the provider API key from the configured environment
// variable. It returns "" when no variable is configured or it is unset.
func (c *Config) APIKey() string {
	if c.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.APIKeyEnv)
}

// BaseDelay returns the base retry delay.
func (r RetryConfig) BaseDelay() time.Duration {
	return time.Duration(r.BaseDelayMS) * time.Millisecond
}

func defaultConfig() *Config {
	return &Config{
		BaseURL:        "https://api.ruleforge.dev",
		Provider:       "openai",
		TimeoutSeconds: 1800,
		Retry: RetryConfig{
			MaxRetries:  2,
			BaseDelayMS: 1000,
		},
		Observability: ObservabilityConfig{
			Exporter:    "otlp",
			SampleRatio: 1.0,
		},
	}
}

func applyDefaults(cfg *Config) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.ruleforge.dev"
	}
	if cfg.Provider == "" {
		cfg.Provider = "openai"
	}
	if cfg.TimeoutSeconds == 0 {
		cfg.TimeoutSeconds = 1800
	}
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = 2
	}
	if cfg.Retry.BaseDelayMS == 0 {
		cfg.Retry.BaseDelayMS = 1000
	}
	if cfg.Observability.Exporter == "" {
		cfg.Observability.Exporter = "otlp"
	}
	if cfg.Observability.SampleRatio == 0 {
		cfg.Observability.SampleRatio = 1.0
	}
}
