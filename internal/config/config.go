// Package config loads the optional startup configuration of the proxy.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the startup configuration file, looked up inside the
// configuration root. The leading dot keeps it out of the lookup-key
// namespace: canonical hostnames have no empty labels and hashed keys
// contain no dot, so neither can start with one.
const FileName = ".sniproxy.yaml"

// Config is the process-wide startup configuration. Per-host backend
// configuration never lives here; it is read from the filesystem on every
// connection.
type Config struct {
	// HashedKeys selects hashed directory names: BLAKE2b-256 of the
	// canonical hostname instead of the hostname itself.
	HashedKeys bool          `yaml:"hashed_keys"`
	Logging    LoggingConfig `yaml:"logging"`
	Timeouts   TimeoutConfig `yaml:"timeouts"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// TimeoutConfig tunes the two bounded waits the proxy has.
type TimeoutConfig struct {
	// Handshake bounds time-to-SNI on a new connection.
	Handshake Duration `yaml:"handshake"`

	// Drain bounds how long a SIGHUP'd process waits for live
	// connections before exiting.
	Drain Duration `yaml:"drain"`
}

// Duration wraps time.Duration with YAML decoding of forms like "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Default returns a Config with the stock values.
func Default() *Config {
	return &Config{
		HashedKeys: false,
		Logging: LoggingConfig{
			Level: "info",
		},
		Timeouts: TimeoutConfig{
			Handshake: Duration(30 * time.Second),
			Drain:     Duration(10 * time.Second),
		},
	}
}

// Load reads the configuration file from the given root directory. A
// missing file yields the defaults; the root is the operators' host
// directory tree, so nothing is ever written there.
func Load(root string) (*Config, error) {
	data, err := os.ReadFile(filepath.Join(root, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults and overlay with file values.
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	if c.Timeouts.Handshake <= 0 {
		return fmt.Errorf("timeouts.handshake must be positive")
	}
	if c.Timeouts.Drain <= 0 {
		return fmt.Errorf("timeouts.drain must be positive")
	}
	return nil
}
