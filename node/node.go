package node

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/permaweb/scheduler-unit/builder"
	"github.com/permaweb/scheduler-unit/gateway"
	"github.com/permaweb/scheduler-unit/log"
	"github.com/permaweb/scheduler-unit/metrics"
	"github.com/permaweb/scheduler-unit/scheduler"
	"github.com/permaweb/scheduler-unit/signer"
	"github.com/permaweb/scheduler-unit/store"
	"github.com/permaweb/scheduler-unit/uploader"
	"github.com/permaweb/scheduler-unit/verifier"
	"github.com/permaweb/scheduler-unit/writepipeline"
)

// Node wires together every collaborator and service a running
// scheduler unit process needs, and drives them through a single
// LifecycleManager.
type Node struct {
	cfg Config

	logger    *log.Logger
	store     *store.Store
	collector *metrics.Collectors
	events    *EventBus

	lifecycle  *LifecycleManager
	health     *HealthChecker
	supervisor *Supervisor
}

// New constructs a Node from cfg. It opens the durable store and builds
// every collaborator, but does not start any network service; call
// Start for that.
func New(ctx context.Context, cfg Config) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.InitDataDir(); err != nil {
		return nil, err
	}

	logger := log.NewFromConfig(cfg.LogLevel, cfg.LogFormat).Module(cfg.Name)

	sg, err := signer.LoadPEM(cfg.ResolvePath(filepath.Join("keystore", "wallet.pem")))
	if err != nil {
		sg, err = signer.Generate()
		if err != nil {
			return nil, fmt.Errorf("node: generate signer key: %w", err)
		}
		logger.Warn("no wallet key found, generated an ephemeral one", "datadir", cfg.DataDir)
	}

	gw := gateway.New(cfg.GatewayURL, 10*time.Second)

	db, err := store.Open(cfg.ResolvePath("store"))
	if err != nil {
		return nil, fmt.Errorf("node: open store: %w", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("node: load aws config: %w", err)
	}
	s3Client := s3.NewFromConfig(awsCfg)
	up := uploader.New(s3Client, uploader.Config{Bucket: cfg.UploaderBucket})

	var collector *metrics.Collectors
	if cfg.Metrics {
		collector = metrics.NewCollectors()
	}

	v := verifier.New(gw, verifier.Policy{RequireTxRefCheck: cfg.RequireTxRefCheck})
	b := builder.New(v, gw, sg, logger.Module("builder"))
	sched := scheduler.New(db)
	pipeline := writepipeline.New(b, sched, db, up, logger.Module("writepipeline"), cfg.Epoch, collector)

	events := NewEventBus(32)
	api := NewHTTPAPI(cfg.RPCAddr(), pipeline, db, gw, sg, logger.Module("httpapi"), events)

	lifecycle := NewLifecycleManager(DefaultLifecycleConfig())
	if err := lifecycle.Register(api, 10); err != nil {
		db.Close()
		return nil, fmt.Errorf("node: register httpapi: %w", err)
	}

	gwHealth := &gatewayChecker{gw: gw}
	sysMetrics := metrics.NewSystemMetrics()
	sysMetrics.SetActiveLocksFunc(sched.ActiveLocks)
	sysMetrics.SetGatewayHeightFunc(gwHealth.lastHeight)

	if cfg.Metrics {
		metricsAPI := newMetricsService(cfg.MetricsAddr(), collector, sysMetrics)
		if err := lifecycle.Register(metricsAPI, 20); err != nil {
			db.Close()
			return nil, fmt.Errorf("node: register metrics: %w", err)
		}
	}

	health := NewHealthChecker()
	health.RegisterSubsystem("store", storeChecker{db})
	health.RegisterSubsystem("gateway", gwHealth)

	supervisor := NewSupervisor(health, events, logger.Module("supervisor"))
	if err := supervisor.Watch("gateway", DefaultRecoveryConfig()); err != nil {
		db.Close()
		return nil, fmt.Errorf("node: watch gateway: %w", err)
	}
	if err := supervisor.Watch("store", DefaultRecoveryConfig()); err != nil {
		db.Close()
		return nil, fmt.Errorf("node: watch store: %w", err)
	}

	return &Node{
		cfg:        cfg,
		logger:     logger,
		store:      db,
		collector:  collector,
		events:     events,
		lifecycle:  lifecycle,
		health:     health,
		supervisor: supervisor,
	}, nil
}

// Events returns the node's event bus, so a long-running operator
// process can subscribe to write/reject notifications without touching
// the HTTP surface.
func (n *Node) Events() *EventBus {
	return n.events
}

// Start brings up every registered service in priority order and begins
// background subsystem health polling.
func (n *Node) Start() error {
	n.logger.Info("starting scheduler unit", "name", n.cfg.Name, "rpc_addr", n.cfg.RPCAddr())
	if errs := n.lifecycle.StartAll(); len(errs) > 0 {
		return errors.Join(errs...)
	}
	n.supervisor.Start()
	return nil
}

// Stop brings down every running service within a bounded timeout and
// closes the store. Services are stopped in reverse start order.
func (n *Node) Stop() error {
	n.logger.Info("stopping scheduler unit", "name", n.cfg.Name)
	n.supervisor.Stop()

	gs := NewGracefulShutdown(n.lifecycle.config.ShutdownTimeout)
	for _, entry := range n.lifecycle.RunningServices() {
		gs.RegisterService(entry.Svc.Name(), entry.Svc, nil, true)
	}

	var stopErr error
	if errs := gs.Execute(); len(errs) > 0 {
		stopErr = errors.Join(errs...)
	}

	n.events.Close()
	if err := n.store.Close(); err != nil && stopErr == nil {
		stopErr = err
	}
	return stopErr
}

// Health returns a consolidated health report across every subsystem.
func (n *Node) Health() *HealthReport {
	return n.health.CheckAll()
}

// storeChecker adapts *store.Store to SubsystemChecker with a trivial
// liveness probe: the store is healthy as long as it responds to a
// lookup without erroring.
type storeChecker struct{ db *store.Store }

func (c storeChecker) Check() *SubsystemHealth {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := c.db.GetSchedule(ctx, "__health__"); err != nil {
		return &SubsystemHealth{Status: StatusUnhealthy, Message: err.Error()}
	}
	return &SubsystemHealth{Status: StatusHealthy}
}

// gatewayChecker adapts a gateway client to SubsystemChecker, and caches
// the last-seen block height so a metrics scrape never has to make a
// live network call of its own.
type gatewayChecker struct {
	gw     *gateway.Gateway
	height atomic.Uint64
}

func (c *gatewayChecker) Check() *SubsystemHealth {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	info, err := c.gw.NetworkInfo(ctx)
	if err != nil {
		return &SubsystemHealth{Status: StatusDegraded, Message: err.Error()}
	}
	if height, err := strconv.ParseUint(info.Height, 10, 64); err == nil {
		c.height.Store(height)
	}
	return &SubsystemHealth{Status: StatusHealthy}
}

// lastHeight returns the block height observed by the most recent
// successful health check, or 0 if none has succeeded yet.
func (c *gatewayChecker) lastHeight() uint64 {
	return c.height.Load()
}
