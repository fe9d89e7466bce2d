// Command su is the scheduler unit's process entry point.
//
// Usage:
//
//	su [flags]
//
// Flags:
//
//	--config                  path to a TOML configuration file
//	--envfile                 path to a .env file of secrets (default: .env)
//	--datadir                 data directory path
//	--epoch                   externally-controlled schedule epoch label
//	--gateway                 arweave gateway base url
//	--bucket                  object storage bucket for uploaded bundles
//	--rpc.port                write/read HTTP surface port
//	--metrics                 enable the metrics exporter
//	--metrics.port            prometheus exporter port
//	--require-tx-ref-check    enforce Tx-Ref gateway checks during verification
//	--verbosity               log level 0-5 (default: 3)
//	--version                 print version and exit
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/permaweb/scheduler-unit/node"
)

// Build-time version info, overridable with ldflags:
//
//	go build -ldflags "-X main.version=v0.2.0 -X main.commit=abc1234"
var (
	version = "v0.1.0-dev"
	commit  = "unknown"
)

// cliConfig is the flag-bindable shape main works with, wrapping the
// runtime node.Config with the two settings that are never part of it:
// where to find the TOML file and where to find the .env file.
type cliConfig struct {
	configFile string
	envFile    string
	node       node.Config
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run is the actual entry point, returning an exit code. Accepts CLI
// arguments (without the program name) so it can be tested in isolation.
func run(args []string) int {
	cfg, explicit, exit, code := parseFlags(args)
	if exit {
		return code
	}

	if err := godotenv.Load(cfg.envFile); err != nil && cfg.envFile != defaultEnvFile {
		log.Printf("Warning: could not load env file %s: %v", cfg.envFile, err)
	}

	if cfg.configFile != "" {
		fileCfg, err := node.LoadConfigFile(cfg.configFile)
		if err != nil {
			log.Printf("Invalid configuration file: %v", err)
			return 1
		}
		cfg.node = mergeExplicit(fileCfg.ToConfig(), cfg.node, explicit)
	}

	cfg.node.LogLevel = node.VerbosityToLogLevel(cfg.node.Verbosity)

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Printf("su %s starting", version)
	log.Printf("  datadir:      %s", cfg.node.DataDir)
	log.Printf("  epoch:        %s", cfg.node.Epoch)
	log.Printf("  gateway:      %s", cfg.node.GatewayURL)
	log.Printf("  bucket:       %s", cfg.node.UploaderBucket)
	log.Printf("  rpc port:     %d", cfg.node.RPCPort)
	log.Printf("  metrics:      %v (port %d)", cfg.node.Metrics, cfg.node.MetricsPort)
	log.Printf("  verbosity:    %d (%s)", cfg.node.Verbosity, cfg.node.LogLevel)

	if err := cfg.node.Validate(); err != nil {
		log.Printf("Invalid configuration: %v", err)
		return 1
	}

	ctx := context.Background()
	n, err := node.New(ctx, cfg.node)
	if err != nil {
		log.Printf("Failed to create node: %v", err)
		return 1
	}

	if err := n.Start(); err != nil {
		log.Printf("Failed to start node: %v", err)
		return 1
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	log.Printf("Received signal %v, shutting down...", sig)

	if err := n.Stop(); err != nil {
		log.Printf("Error during shutdown: %v", err)
		return 1
	}

	log.Println("Shutdown complete")
	return 0
}

const defaultEnvFile = ".env"

// parseFlags parses CLI arguments into a cliConfig. explicit records the
// flag names the caller actually passed, so a later TOML file load can
// fill in everything else without clobbering an explicit override.
func parseFlags(args []string) (cfg cliConfig, explicit map[string]bool, exit bool, code int) {
	cfg = cliConfig{envFile: defaultEnvFile, node: node.DefaultConfig()}
	fs := newFlagSet(&cfg)
	showVersion := fs.Bool("version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return cfg, nil, true, 2
	}

	if *showVersion {
		fmt.Printf("su %s (commit %s)\n", version, commit)
		return cfg, nil, true, 0
	}

	explicit = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	return cfg, explicit, false, 0
}

// mergeExplicit layers flagged onto base, keeping only the fields the
// caller explicitly passed on the command line; everything else comes
// from the TOML file.
func mergeExplicit(base, flagged node.Config, explicit map[string]bool) node.Config {
	result := base
	if explicit["datadir"] {
		result.DataDir = flagged.DataDir
	}
	if explicit["epoch"] {
		result.Epoch = flagged.Epoch
	}
	if explicit["gateway"] {
		result.GatewayURL = flagged.GatewayURL
	}
	if explicit["bucket"] {
		result.UploaderBucket = flagged.UploaderBucket
	}
	if explicit["rpc.port"] {
		result.RPCPort = flagged.RPCPort
	}
	if explicit["metrics.port"] {
		result.MetricsPort = flagged.MetricsPort
	}
	if explicit["metrics"] {
		result.Metrics = flagged.Metrics
	}
	if explicit["require-tx-ref-check"] {
		result.RequireTxRefCheck = flagged.RequireTxRefCheck
	}
	if explicit["verbosity"] {
		result.Verbosity = flagged.Verbosity
	}
	result.Name = "su"
	return result
}
