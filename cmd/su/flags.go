package main

import "flag"

// newFlagSet creates a flag.FlagSet that binds all CLI flags to cfg. It
// uses ContinueOnError so callers control error handling.
func newFlagSet(cfg *cliConfig) *flag.FlagSet {
	fs := flag.NewFlagSet("su", flag.ContinueOnError)
	fs.StringVar(&cfg.configFile, "config", cfg.configFile, "path to a TOML configuration file")
	fs.StringVar(&cfg.envFile, "envfile", cfg.envFile, "path to a .env file of secrets (aws credentials, etc.)")
	fs.StringVar(&cfg.node.DataDir, "datadir", cfg.node.DataDir, "data directory path")
	fs.StringVar(&cfg.node.Epoch, "epoch", cfg.node.Epoch, "externally-controlled schedule epoch label")
	fs.StringVar(&cfg.node.GatewayURL, "gateway", cfg.node.GatewayURL, "arweave gateway base url")
	fs.StringVar(&cfg.node.UploaderBucket, "bucket", cfg.node.UploaderBucket, "object storage bucket for uploaded bundles")
	fs.IntVar(&cfg.node.RPCPort, "rpc.port", cfg.node.RPCPort, "write/read HTTP surface port")
	fs.IntVar(&cfg.node.MetricsPort, "metrics.port", cfg.node.MetricsPort, "prometheus exporter port")
	fs.BoolVar(&cfg.node.Metrics, "metrics", cfg.node.Metrics, "enable the metrics exporter")
	fs.BoolVar(&cfg.node.RequireTxRefCheck, "require-tx-ref-check", cfg.node.RequireTxRefCheck, "enforce Tx-Ref gateway checks during verification")
	fs.IntVar(&cfg.node.Verbosity, "verbosity", cfg.node.Verbosity, "log level 0-5 (0=silent, 5=trace)")
	return fs
}
