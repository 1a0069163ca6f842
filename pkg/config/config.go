// Package config loads the YAML run configuration: browser options, catalog
// endpoint and keys, and the navigation policy that bounds which domains a
// run may touch.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level run configuration.
type Config struct {
	// Browser configuration
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// Community playbook catalog
	Catalog CatalogConfig `yaml:"catalog" json:"catalog"`

	// Navigation policy
	Navigation NavigationConfig `yaml:"navigation" json:"navigation"`

	// Data directory (defaults to ~/.unlist)
	DataDir string `yaml:"data_dir" json:"data_dir"`
}

// BrowserConfig controls how browser sessions are launched.
type BrowserConfig struct {
	// Headless hides the browser window. Human-gated steps need a visible
	// window, so this defaults to false.
	Headless bool `yaml:"headless" json:"headless"`

	// ExecutablePath overrides Chrome binary discovery.
	ExecutablePath string `yaml:"executable_path" json:"executable_path"`

	// OperationTimeout bounds each browser operation.
	OperationTimeout time.Duration `yaml:"operation_timeout" json:"operation_timeout"`
}

// CatalogConfig points at the community playbook catalog.
type CatalogConfig struct {
	BaseURL string `yaml:"base_url" json:"base_url"`

	// PublicKey is the base64 Ed25519 key playbook signatures are checked
	// against. Empty disables signature verification.
	PublicKey string `yaml:"public_key" json:"public_key"`

	// SigningKeyFile holds the base64 Ed25519 private key used to sign
	// catalog requests. Empty sends unsigned requests.
	SigningKeyFile string `yaml:"signing_key_file" json:"signing_key_file"`
}

// NavigationConfig bounds which domains playbook navigation may reach.
// Patterns are globs matched against hostnames; denied patterns take
// precedence, and an empty allow list allows everything not denied.
type NavigationConfig struct {
	AllowedDomains []string `yaml:"allowed_domains" json:"allowed_domains"`
	DeniedDomains  []string `yaml:"denied_domains" json:"denied_domains"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:         false,
			OperationTimeout: 10 * time.Second,
		},
	}
}

// Load reads a YAML config file. Missing fields keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads the config at path, falling back to defaults when the
// file does not exist. An empty path means ~/.unlist/config.yaml.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to determine home directory: %w", err)
		}
		path = filepath.Join(home, ".unlist", "config.yaml")
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	return Load(path)
}

// Validate checks the configuration for internal consistency. Navigation
// patterns are compiled here so bad globs fail at load time, not mid-run.
func (c *Config) Validate() error {
	if c.Browser.OperationTimeout < 0 {
		return fmt.Errorf("browser.operation_timeout must not be negative")
	}
	if c.Browser.OperationTimeout == 0 {
		c.Browser.OperationTimeout = 10 * time.Second
	}
	if _, err := c.Navigation.Policy(); err != nil {
		return err
	}
	return nil
}
