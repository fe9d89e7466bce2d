package main

import (
	"testing"

	"github.com/permaweb/scheduler-unit/node"
)

func TestParseFlagsAppliesDefaults(t *testing.T) {
	cfg, explicit, exit, _ := parseFlags(nil)
	if exit {
		t.Fatal("unexpected exit with no args")
	}
	if cfg.node.DataDir == "" {
		t.Error("expected a non-empty default datadir")
	}
	if len(explicit) != 0 {
		t.Errorf("expected no explicit flags, got %v", explicit)
	}
}

func TestParseFlagsVersionExits(t *testing.T) {
	_, _, exit, code := parseFlags([]string{"--version"})
	if !exit || code != 0 {
		t.Errorf("exit=%v code=%d, want exit=true code=0", exit, code)
	}
}

func TestParseFlagsRecordsExplicitOverrides(t *testing.T) {
	cfg, explicit, exit, _ := parseFlags([]string{"--epoch", "7", "--rpc.port", "9001"})
	if exit {
		t.Fatal("unexpected exit")
	}
	if cfg.node.Epoch != "7" {
		t.Errorf("Epoch = %q, want 7", cfg.node.Epoch)
	}
	if cfg.node.RPCPort != 9001 {
		t.Errorf("RPCPort = %d, want 9001", cfg.node.RPCPort)
	}
	if !explicit["epoch"] || !explicit["rpc.port"] {
		t.Errorf("expected epoch and rpc.port marked explicit, got %v", explicit)
	}
	if explicit["datadir"] {
		t.Error("datadir was not passed, should not be marked explicit")
	}
}

func TestMergeExplicitKeepsFileValueWhenNotOverridden(t *testing.T) {
	base := cliConfig{node: parseFlagsMustDefault(t)}
	base.node.GatewayURL = "https://from-file.example"

	flagged := parseFlagsMustDefault(t)
	flagged.Epoch = "3"

	merged := mergeExplicit(base.node, flagged, map[string]bool{"epoch": true})
	if merged.GatewayURL != "https://from-file.example" {
		t.Errorf("GatewayURL = %q, want value from file config", merged.GatewayURL)
	}
	if merged.Epoch != "3" {
		t.Errorf("Epoch = %q, want explicit flag value", merged.Epoch)
	}
}

func parseFlagsMustDefault(t *testing.T) node.Config {
	t.Helper()
	cfg, _, exit, _ := parseFlags(nil)
	if exit {
		t.Fatal("unexpected exit")
	}
	return cfg.node
}
