package monitoring

import (
	"fmt"
	"strings"
)

// Config holds configuration for the metrics endpoint.
type Config struct {
	Enabled bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Path    string `json:"path"    yaml:"path"    mapstructure:"path"`
	Addr    string `json:"addr"    yaml:"addr"    mapstructure:"addr"`
}

func DefaultConfig() *Config {
	return &Config{
		Enabled: false,
		Path:    "/metrics",
		Addr:    ":9464",
	}
}

func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("monitoring path cannot be empty")
	}
	if c.Path[0] != '/' {
		return fmt.Errorf("monitoring path must start with '/': got %s", c.Path)
	}
	if strings.ContainsRune(c.Path, '?') {
		return fmt.Errorf("monitoring path cannot contain query parameters")
	}
	if c.Enabled && c.Addr == "" {
		return fmt.Errorf("monitoring addr cannot be empty when enabled")
	}
	return nil
}
