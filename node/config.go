// Package node wires together the scheduler unit's HTTP surface, its
// collaborator clients (store, gateway, uploader, signer), and process
// lifecycle management.
package node

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds all configuration for a scheduler unit process.
type Config struct {
	// DataDir is the root directory for the local store and keystore.
	DataDir string

	// Name is a human-readable node identifier (used in logs).
	Name string

	// Epoch is the opaque, externally-controlled schedule epoch label
	// carried unchanged across every process this unit schedules.
	Epoch string

	// GatewayURL is the base URL of the Arweave gateway used for
	// network_info and check_head lookups.
	GatewayURL string

	// UploaderBucket is the object-storage bucket bundles are uploaded to.
	UploaderBucket string

	// RPCPort is the HTTP port for the write/read JSON surface.
	RPCPort int

	// MetricsPort is the HTTP port serving /metrics when Metrics is
	// enabled. Zero binds an ephemeral port.
	MetricsPort int

	// LogLevel controls log verbosity (debug, info, warn, error).
	LogLevel string

	// LogFormat selects the log line encoding ("text" or "json").
	LogFormat string

	// Verbosity controls numeric log level (0=silent, 1=error, 2=warn,
	// 3=info, 4=debug, 5=trace). When set, overrides LogLevel.
	Verbosity int

	// Metrics enables the metrics collection subsystem.
	Metrics bool

	// RequireTxRefCheck gates Verifier's use of Gateway.check_head for
	// tag-referenced transaction existence. Off the hot path by default.
	RequireTxRefCheck bool
}

// defaultDataDir returns the platform-specific default data directory.
// Falls back to ".su" in the current directory if the home directory
// cannot be determined.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".su"
	}
	return filepath.Join(home, ".su")
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DataDir:           defaultDataDir(),
		Name:              "su",
		Epoch:             "0",
		GatewayURL:        "https://arweave.net",
		UploaderBucket:    "su-bundles",
		RPCPort:           9000,
		MetricsPort:       9090,
		LogLevel:          "info",
		LogFormat:         "json",
		Verbosity:         3,
		Metrics:           false,
		RequireTxRefCheck: false,
	}
}

// Validate checks configuration values for correctness.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("config: datadir must not be empty")
	}
	if c.Epoch == "" {
		return errors.New("config: epoch must not be empty")
	}
	if c.GatewayURL == "" {
		return errors.New("config: gateway url must not be empty")
	}
	if c.RPCPort < 0 || c.RPCPort > 65535 {
		return fmt.Errorf("config: invalid rpc port: %d", c.RPCPort)
	}
	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		return fmt.Errorf("config: invalid metrics port: %d", c.MetricsPort)
	}
	if c.Verbosity < 0 || c.Verbosity > 5 {
		return fmt.Errorf("config: verbosity must be 0-5, got %d", c.Verbosity)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.LogFormat)
	}
	return nil
}

// VerbosityToLogLevel converts a numeric verbosity level to a log level string.
func VerbosityToLogLevel(v int) string {
	switch {
	case v <= 0:
		return "error" // silent maps to error-only
	case v == 1:
		return "error"
	case v == 2:
		return "warn"
	case v == 3:
		return "info"
	default:
		return "debug" // 4 and 5 both map to debug
	}
}

// dataDirSubdirs lists subdirectories created inside the data directory.
var dataDirSubdirs = []string{
	"store",
	"keystore",
}

// InitDataDir creates the data directory and its standard subdirectories
// if they do not already exist. Returns an error if directory creation fails.
func (c *Config) InitDataDir() error {
	if c.DataDir == "" {
		return errors.New("config: datadir must not be empty")
	}

	// Create the root data directory.
	if err := os.MkdirAll(c.DataDir, 0700); err != nil {
		return fmt.Errorf("config: create datadir: %w", err)
	}

	// Create standard subdirectories.
	for _, sub := range dataDirSubdirs {
		dir := filepath.Join(c.DataDir, sub)
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("config: create %s: %w", sub, err)
		}
	}
	return nil
}

// ResolvePath resolves a path relative to the data directory.
func (c *Config) ResolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.DataDir, path)
}

// RPCAddr returns the write/read HTTP surface listen address string.
func (c *Config) RPCAddr() string {
	return fmt.Sprintf("0.0.0.0:%d", c.RPCPort)
}

// MetricsAddr returns the Prometheus exporter listen address string.
func (c *Config) MetricsAddr() string {
	return fmt.Sprintf("127.0.0.1:%d", c.MetricsPort)
}
