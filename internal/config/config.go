// Package config loads client settings from an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the client settings. Command line flags override file values.
type Config struct {
	ServerURL    string        `yaml:"server_url"`
	APIBasePath  string        `yaml:"api_base_path"`
	Timeout      time.Duration `yaml:"timeout"`
	CacheDir     string        `yaml:"cache_dir"`
	SessionDir   string        `yaml:"session_dir"`
	RealtimePath string        `yaml:"realtime_path"`
	Telemetry    Telemetry     `yaml:"telemetry"`
}

// Telemetry configures OpenTelemetry export.
type Telemetry struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		ServerURL:    "http://localhost:3000",
		APIBasePath:  "/api",
		Timeout:      30 * time.Second,
		RealtimePath: "/ws",
		Telemetry: Telemetry{
			ServiceName: "docsign-cli",
			SampleRatio: 1.0,
		},
	}
}

// DefaultPath returns ~/.docsign/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".docsign", "config.yaml"), nil
}

// Load reads path over Default. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the settings are usable.
func (c Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid server_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server_url must use http or https, got %q", c.ServerURL)
	}
	if u.Host == "" {
		return fmt.Errorf("server_url has no host: %q", c.ServerURL)
	}
	if c.APIBasePath != "" && !strings.HasPrefix(c.APIBasePath, "/") {
		return fmt.Errorf("api_base_path must start with /: %q", c.APIBasePath)
	}
	if c.RealtimePath != "" && !strings.HasPrefix(c.RealtimePath, "/") {
		return fmt.Errorf("realtime_path must start with /: %q", c.RealtimePath)
	}
	if c.Timeout < 0 {
		return errors.New("timeout must not be negative")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return errors.New("telemetry.sample_ratio must be between 0 and 1")
	}
	return nil
}
