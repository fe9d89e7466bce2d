package node

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// FileConfig holds the full configuration for a scheduler unit process,
// parsed from a TOML configuration file. It is separate from Config to
// support richer structured configuration with nested sections while
// Config remains the flat, flag-overridable shape the rest of the
// package works with.
type FileConfig struct {
	DataDir string `toml:"datadir"`
	Epoch   string `toml:"epoch"`

	Gateway  GatewayConfig  `toml:"gateway"`
	RPC      RPCConfig      `toml:"rpc"`
	Uploader UploaderConfig `toml:"uploader"`
	Metrics  MetricsConfig  `toml:"metrics"`
	Log      LogConfig      `toml:"log"`
}

// GatewayConfig holds Arweave gateway client configuration.
type GatewayConfig struct {
	URL               string `toml:"url"`
	RequireTxRefCheck bool   `toml:"require_tx_ref_check"`
}

// RPCConfig holds the write/read HTTP surface configuration.
type RPCConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// UploaderConfig holds bundler/object-storage upload configuration.
type UploaderConfig struct {
	Bucket string `toml:"bucket"`
	Region string `toml:"region"`
}

// MetricsConfig holds Prometheus exporter configuration.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
	Port    int  `toml:"port"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// DefaultFileConfig returns a FileConfig with sensible defaults.
func DefaultFileConfig() *FileConfig {
	return &FileConfig{
		DataDir: defaultDataDir(),
		Epoch:   "0",
		Gateway: GatewayConfig{
			URL:               "https://arweave.net",
			RequireTxRefCheck: false,
		},
		RPC: RPCConfig{
			Host: "0.0.0.0",
			Port: 9000,
		},
		Uploader: UploaderConfig{
			Bucket: "su-bundles",
			Region: "us-east-1",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// ValidateFileConfig checks the configuration for correctness.
func (fc *FileConfig) ValidateFileConfig() error {
	if fc.DataDir == "" {
		return errors.New("config: datadir must not be empty")
	}
	if fc.Epoch == "" {
		return errors.New("config: epoch must not be empty")
	}
	if fc.Gateway.URL == "" {
		return errors.New("config: gateway url must not be empty")
	}
	if fc.RPC.Port < 0 || fc.RPC.Port > 65535 {
		return fmt.Errorf("config: invalid rpc port: %d", fc.RPC.Port)
	}
	if fc.RPC.Host == "" {
		return errors.New("config: rpc host must not be empty")
	}
	if fc.Uploader.Bucket == "" {
		return errors.New("config: uploader bucket must not be empty")
	}
	if fc.Metrics.Enabled && (fc.Metrics.Port < 0 || fc.Metrics.Port > 65535) {
		return fmt.Errorf("config: invalid metrics port: %d", fc.Metrics.Port)
	}
	switch fc.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", fc.Log.Level)
	}
	switch fc.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", fc.Log.Format)
	}
	return nil
}

// LoadConfig parses a TOML configuration from raw bytes into a FileConfig,
// starting from DefaultFileConfig so that fields omitted from the file
// keep their defaults.
func LoadConfig(data []byte) (*FileConfig, error) {
	cfg := DefaultFileConfig()
	if len(data) == 0 {
		return cfg, nil
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse toml: %w", err)
	}
	return cfg, nil
}

// LoadConfigFile reads and parses a TOML configuration file at path. A
// missing path returns the defaults unchanged.
func LoadConfigFile(path string) (*FileConfig, error) {
	if path == "" {
		return DefaultFileConfig(), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultFileConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return LoadConfig(data)
}

// MergeFileConfig merges an override config onto a base config.
// Non-zero/non-empty values from override take priority over base.
func MergeFileConfig(base, override *FileConfig) *FileConfig {
	result := *base

	if override.DataDir != "" {
		result.DataDir = override.DataDir
	}
	if override.Epoch != "" {
		result.Epoch = override.Epoch
	}

	if override.Gateway.URL != "" {
		result.Gateway.URL = override.Gateway.URL
	}
	result.Gateway.RequireTxRefCheck = override.Gateway.RequireTxRefCheck || result.Gateway.RequireTxRefCheck

	if override.RPC.Host != "" {
		result.RPC.Host = override.RPC.Host
	}
	if override.RPC.Port != 0 {
		result.RPC.Port = override.RPC.Port
	}

	if override.Uploader.Bucket != "" {
		result.Uploader.Bucket = override.Uploader.Bucket
	}
	if override.Uploader.Region != "" {
		result.Uploader.Region = override.Uploader.Region
	}

	result.Metrics.Enabled = override.Metrics.Enabled || result.Metrics.Enabled
	if override.Metrics.Port != 0 {
		result.Metrics.Port = override.Metrics.Port
	}

	if override.Log.Level != "" {
		result.Log.Level = override.Log.Level
	}
	if override.Log.Format != "" {
		result.Log.Format = override.Log.Format
	}

	return &result
}

// ToConfig flattens a FileConfig into the runtime Config shape.
func (fc *FileConfig) ToConfig() Config {
	return Config{
		DataDir:           fc.DataDir,
		Name:              "su",
		Epoch:             fc.Epoch,
		GatewayURL:        fc.Gateway.URL,
		UploaderBucket:    fc.Uploader.Bucket,
		RPCPort:           fc.RPC.Port,
		MetricsPort:       fc.Metrics.Port,
		LogLevel:          fc.Log.Level,
		LogFormat:         fc.Log.Format,
		Verbosity:         3,
		Metrics:           fc.Metrics.Enabled,
		RequireTxRefCheck: fc.Gateway.RequireTxRefCheck,
	}
}
