package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors holds the Prometheus instrumentation for the write path,
// registered against its own registry so test processes can stand up
// more than one without colliding on the global default registerer.
type Collectors struct {
	registry      *prometheus.Registry
	writesTotal   *prometheus.CounterVec
	writeDuration prometheus.Histogram
	lastNonce     *prometheus.GaugeVec
}

// NewCollectors registers the scheduler unit's Prometheus metrics and
// returns a handle for recording them.
func NewCollectors() *Collectors {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collectors{
		registry: reg,
		writesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "su",
			Name:      "writes_total",
			Help:      "Total write pipeline invocations by kind and outcome.",
		}, []string{"kind", "outcome"}),
		writeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "su",
			Name:      "write_duration_seconds",
			Help:      "Latency of a write pipeline invocation, end to end.",
			Buckets:   prometheus.DefBuckets,
		}),
		lastNonce: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "su",
			Name:      "process_last_nonce",
			Help:      "Last committed nonce observed per process id.",
		}, []string{"process"}),
	}
}

// ObserveWrite records the outcome and latency of one write pipeline
// invocation. kind is "process" or "message"; outcome is "ok" or the
// pipeline.Kind string of the failure.
func (c *Collectors) ObserveWrite(kind, outcome string, duration time.Duration) {
	c.writesTotal.WithLabelValues(kind, outcome).Inc()
	c.writeDuration.Observe(duration.Seconds())
}

// SetLastNonce records the latest committed nonce for a process.
func (c *Collectors) SetLastNonce(processID string, nonce uint64) {
	c.lastNonce.WithLabelValues(processID).Set(float64(nonce))
}

// Handler returns the HTTP handler that serves these collectors in
// Prometheus text exposition format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
