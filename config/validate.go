package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the loaded config for required fields and safe values.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	if strings.TrimSpace(cfg.BaseURL) == "" {
		return errors.New("base_url must be set")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base_url %q is invalid", cfg.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url must be http or https, got %q", u.Scheme)
	}

	if cfg.TimeoutSeconds <= 0 {
		return errors.New("timeout_seconds must be positive")
	}
	if cfg.Retry.MaxRetries < 0 {
		return errors.New("retry.max_retries must not be negative")
	}
	if cfg.Retry.BaseDelayMS <= 0 {
		return errors.New("retry.base_delay_ms must be positive")
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Observability.Exporter)) {
	case "", "otlp", "stdout", "none":
	default:
		return fmt.Errorf("observability.exporter must be otlp, stdout or none, got %q", cfg.Observability.Exporter)
	}
	if cfg.Observability.SampleRatio < 0 || cfg.Observability.SampleRatio > 1 {
		return fmt.Errorf("observability.sample_ratio must be within [0, 1], got %v", cfg.Observability.SampleRatio)
	}

	return nil
}
