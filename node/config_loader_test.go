package node

import "testing"

func TestDefaultFileConfig(t *testing.T) {
	cfg := DefaultFileConfig()

	if cfg.Epoch != "0" {
		t.Errorf("Epoch = %q, want 0", cfg.Epoch)
	}
	if cfg.Gateway.URL != "https://arweave.net" {
		t.Errorf("Gateway.URL = %q", cfg.Gateway.URL)
	}
	if cfg.Gateway.RequireTxRefCheck {
		t.Error("Gateway.RequireTxRefCheck should default to false")
	}
	if cfg.RPC.Port != 9000 {
		t.Errorf("RPC.Port = %d, want 9000", cfg.RPC.Port)
	}
	if cfg.Uploader.Bucket != "su-bundles" {
		t.Errorf("Uploader.Bucket = %q", cfg.Uploader.Bucket)
	}
	if cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled should default to false")
	}
	if cfg.Metrics.Port != 9090 {
		t.Errorf("Metrics.Port = %d, want 9090", cfg.Metrics.Port)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want json", cfg.Log.Format)
	}
}

func TestDefaultFileConfigValidates(t *testing.T) {
	cfg := DefaultFileConfig()
	if err := cfg.ValidateFileConfig(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadConfigFull(t *testing.T) {
	input := `
datadir = "/data/su"
epoch = "7"

[gateway]
url = "https://gateway.example.org"
require_tx_ref_check = true

[rpc]
host = "0.0.0.0"
port = 9001

[uploader]
bucket = "custom-bundles"
region = "eu-west-1"

[metrics]
enabled = true
port = 9191

[log]
level = "debug"
format = "text"
`
	cfg, err := LoadConfig([]byte(input))
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	if cfg.DataDir != "/data/su" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if cfg.Epoch != "7" {
		t.Errorf("Epoch = %q", cfg.Epoch)
	}
	if cfg.Gateway.URL != "https://gateway.example.org" {
		t.Errorf("Gateway.URL = %q", cfg.Gateway.URL)
	}
	if !cfg.Gateway.RequireTxRefCheck {
		t.Error("Gateway.RequireTxRefCheck should be true")
	}
	if cfg.RPC.Host != "0.0.0.0" {
		t.Errorf("RPC.Host = %q", cfg.RPC.Host)
	}
	if cfg.RPC.Port != 9001 {
		t.Errorf("RPC.Port = %d", cfg.RPC.Port)
	}
	if cfg.Uploader.Bucket != "custom-bundles" {
		t.Errorf("Uploader.Bucket = %q", cfg.Uploader.Bucket)
	}
	if cfg.Uploader.Region != "eu-west-1" {
		t.Errorf("Uploader.Region = %q", cfg.Uploader.Region)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled should be true")
	}
	if cfg.Metrics.Port != 9191 {
		t.Errorf("Metrics.Port = %d", cfg.Metrics.Port)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %q", cfg.Log.Format)
	}
}

func TestLoadConfigEmpty(t *testing.T) {
	cfg, err := LoadConfig([]byte(""))
	if err != nil {
		t.Fatalf("LoadConfig on empty input should not error: %v", err)
	}
	if cfg.Epoch != "0" {
		t.Errorf("Epoch = %q, want 0 (default)", cfg.Epoch)
	}
	if cfg.RPC.Port != 9000 {
		t.Errorf("RPC.Port = %d, want 9000 (default)", cfg.RPC.Port)
	}
}

func TestLoadConfigPartialOverride(t *testing.T) {
	input := `
epoch = "3"

[log]
level = "error"
`
	cfg, err := LoadConfig([]byte(input))
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	if cfg.Epoch != "3" {
		t.Errorf("Epoch = %q, want 3", cfg.Epoch)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("Log.Level = %q, want error", cfg.Log.Level)
	}
	// Defaults should be preserved for untouched fields.
	if cfg.RPC.Port != 9000 {
		t.Errorf("RPC.Port = %d, want 9000 (default)", cfg.RPC.Port)
	}
	if cfg.Gateway.URL != "https://arweave.net" {
		t.Errorf("Gateway.URL = %q, want default", cfg.Gateway.URL)
	}
}

func TestLoadConfigInvalidTOML(t *testing.T) {
	input := `datadir = [unterminated`
	_, err := LoadConfig([]byte(input))
	if err == nil {
		t.Fatal("expected error for malformed toml")
	}
}

func TestValidateFileConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*FileConfig)
	}{
		{"empty datadir", func(c *FileConfig) { c.DataDir = "" }},
		{"empty epoch", func(c *FileConfig) { c.Epoch = "" }},
		{"empty gateway url", func(c *FileConfig) { c.Gateway.URL = "" }},
		{"bad rpc port", func(c *FileConfig) { c.RPC.Port = 99999 }},
		{"empty rpc host", func(c *FileConfig) { c.RPC.Host = "" }},
		{"empty uploader bucket", func(c *FileConfig) { c.Uploader.Bucket = "" }},
		{"bad metrics port", func(c *FileConfig) { c.Metrics.Enabled = true; c.Metrics.Port = -1 }},
		{"bad log level", func(c *FileConfig) { c.Log.Level = "verbose" }},
		{"bad log format", func(c *FileConfig) { c.Log.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultFileConfig()
			tt.modify(cfg)
			if err := cfg.ValidateFileConfig(); err == nil {
				t.Errorf("expected validation error for %s", tt.name)
			}
		})
	}
}

func TestMergeFileConfig(t *testing.T) {
	base := DefaultFileConfig()

	override := &FileConfig{
		DataDir: "/override/path",
		Epoch:   "9",
		Gateway: GatewayConfig{
			URL:               "https://override.example.org",
			RequireTxRefCheck: true,
		},
		RPC: RPCConfig{
			Host: "0.0.0.0",
			Port: 9500,
		},
		Uploader: UploaderConfig{
			Bucket: "override-bundles",
			Region: "ap-south-1",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9595,
		},
		Log: LogConfig{
			Level:  "debug",
			Format: "text",
		},
	}

	merged := MergeFileConfig(base, override)

	if merged.DataDir != "/override/path" {
		t.Errorf("DataDir = %q, want /override/path", merged.DataDir)
	}
	if merged.Epoch != "9" {
		t.Errorf("Epoch = %q, want 9", merged.Epoch)
	}
	if merged.Gateway.URL != "https://override.example.org" {
		t.Errorf("Gateway.URL = %q", merged.Gateway.URL)
	}
	if !merged.Gateway.RequireTxRefCheck {
		t.Error("Gateway.RequireTxRefCheck should be true")
	}
	if merged.RPC.Port != 9500 {
		t.Errorf("RPC.Port = %d, want 9500", merged.RPC.Port)
	}
	if merged.Uploader.Bucket != "override-bundles" {
		t.Errorf("Uploader.Bucket = %q", merged.Uploader.Bucket)
	}
	if merged.Metrics.Port != 9595 {
		t.Errorf("Metrics.Port = %d, want 9595", merged.Metrics.Port)
	}
	if merged.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", merged.Log.Level)
	}
}

func TestMergeFileConfigPreservesBase(t *testing.T) {
	base := DefaultFileConfig()
	override := &FileConfig{} // All zero values.

	merged := MergeFileConfig(base, override)

	if merged.DataDir != base.DataDir {
		t.Error("DataDir should be preserved from base")
	}
	if merged.RPC.Port != base.RPC.Port {
		t.Error("RPC.Port should be preserved from base")
	}
	if merged.Gateway.URL != base.Gateway.URL {
		t.Error("Gateway.URL should be preserved from base")
	}
	if merged.Log.Level != base.Log.Level {
		t.Error("Log.Level should be preserved from base")
	}
}

func TestMergeFileConfigDoesNotMutateBase(t *testing.T) {
	base := DefaultFileConfig()
	origDataDir := base.DataDir

	override := &FileConfig{DataDir: "/new/path"}

	MergeFileConfig(base, override)

	if base.DataDir != origDataDir {
		t.Error("MergeFileConfig should not mutate the base config")
	}
}

func TestLoadConfigFileMissing(t *testing.T) {
	cfg, err := LoadConfigFile("/nonexistent/path/su.toml")
	if err != nil {
		t.Fatalf("missing config file should return defaults, not error: %v", err)
	}
	if cfg.Epoch != "0" {
		t.Errorf("Epoch = %q, want 0 (default)", cfg.Epoch)
	}
}

func TestToConfig(t *testing.T) {
	fc := DefaultFileConfig()
	fc.Epoch = "42"
	fc.RPC.Port = 9123

	cfg := fc.ToConfig()

	if cfg.Epoch != "42" {
		t.Errorf("Epoch = %q, want 42", cfg.Epoch)
	}
	if cfg.RPCPort != 9123 {
		t.Errorf("RPCPort = %d, want 9123", cfg.RPCPort)
	}
	if cfg.GatewayURL != fc.Gateway.URL {
		t.Errorf("GatewayURL = %q, want %q", cfg.GatewayURL, fc.Gateway.URL)
	}
}
