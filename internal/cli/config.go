package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ClientConfig is the tagstack.yaml client configuration.
type ClientConfig struct {
	// BaseURL is where the published configuration documents live
	// (default.json, <tag>/conf.json, ...).
	BaseURL string `yaml:"base_url"`

	// Hostname feeds the root document's domain-to-tag mapping. Defaults
	// to the machine hostname.
	Hostname string `yaml:"hostname"`

	// FallbackTag is the hardcoded last-resort tag when neither a stored
	// tag, the domain map, nor the root default yields one.
	FallbackTag string `yaml:"fallback_tag"`

	// StoragePath is the SQLite file holding local override state. Empty
	// selects in-memory storage (nothing persists between runs).
	StoragePath string `yaml:"storage_path"`

	// CacheTTL bounds how long composed bundles stay fresh, as a duration
	// string (e.g. "5m"). Empty selects the built-in default.
	CacheTTL string `yaml:"cache_ttl"`
}

// CacheTTLDuration parses CacheTTL; zero (use the default) when empty or
// unparseable.
func (c *ClientConfig) CacheTTLDuration() time.Duration {
	if c.CacheTTL == "" {
		return 0
	}
	d, err := time.ParseDuration(c.CacheTTL)
	if err != nil {
		return 0
	}
	return d
}

// DefaultClientConfig returns the in-memory defaults.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		FallbackTag: "default",
	}
}

// Normalize fills in missing values so partially-filled configs behave.
func (c *ClientConfig) Normalize() {
	if c.Hostname == "" {
		if host, err := os.Hostname(); err == nil {
			c.Hostname = host
		}
	}
	if c.FallbackTag == "" {
		c.FallbackTag = "default"
	}
}

// LoadClientConfig reads a YAML config file. A missing file yields the
// defaults rather than an error; the base URL can still come from a flag.
func LoadClientConfig(path string) (*ClientConfig, error) {
	if path == "" {
		cfg := DefaultClientConfig()
		cfg.Normalize()
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultClientConfig()
			cfg.Normalize()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg ClientConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}
