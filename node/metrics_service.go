package node

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/permaweb/scheduler-unit/metrics"
)

// metricsService serves the Prometheus /metrics endpoint as its own
// Service, independent of the write/read HTTP surface, so an operator
// can keep it off a public listener. A second, internal exporter at
// /metrics/internal carries runtime and scheduling gauges that aren't
// worth threading through the client_golang collectors.
type metricsService struct {
	addr string
	c    *metrics.Collectors
	sys  *metrics.SystemMetrics
	srv  *http.Server
}

func newMetricsService(addr string, c *metrics.Collectors, sys *metrics.SystemMetrics) *metricsService {
	return &metricsService{addr: addr, c: c, sys: sys}
}

func (m *metricsService) Name() string { return "metrics" }

func (m *metricsService) Start() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.c.Handler())

	if m.sys != nil {
		cfg := metrics.DefaultPrometheusConfig()
		cfg.Path = "/metrics/internal"
		exporter := metrics.NewPrometheusExporter(metrics.DefaultRegistry, cfg)
		exporter.RegisterCollector("system", &systemMetricsCollector{sys: m.sys})
		mux.Handle(cfg.Path, exporter.Handler())
	}

	m.srv = &http.Server{Addr: m.addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- m.srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

func (m *metricsService) Stop() error {
	if m.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.srv.Shutdown(ctx)
}

// systemMetricsCollector adapts *metrics.SystemMetrics to the exporter's
// CustomCollector interface, taking a fresh runtime snapshot on every
// scrape.
type systemMetricsCollector struct {
	sys *metrics.SystemMetrics
}

func (c *systemMetricsCollector) Collect() []metrics.MetricLine {
	c.sys.Collect()
	mem := c.sys.MemoryUsage()

	return []metrics.MetricLine{
		{Name: "system.goroutines", Value: float64(c.sys.GoRoutineCount())},
		{Name: "system.heap_alloc_bytes", Value: float64(mem.HeapAlloc)},
		{Name: "system.uptime_seconds", Value: c.sys.UptimeSeconds()},
		{Name: "schedule.active_locks", Value: float64(c.sys.ActiveLocks())},
		{Name: "gateway.height", Value: float64(c.sys.GatewayHeight())},
		{Name: "store.catch_up_progress", Value: c.sys.CatchUpProgress()},
	}
}
