package metrics

// Pre-defined metrics for the scheduler unit. All metrics live in
// DefaultRegistry so they are globally accessible without passing a
// registry around. These are the lightweight, in-process counters that
// PrometheusExporter renders at /metrics/internal (node/metrics_service.go);
// /metrics serves the separate collectors defined in su_collectors.go.

var (
	// ---- Schedule metrics ----

	// ScheduleAdvances counts successful nonce advances across all
	// processes.
	ScheduleAdvances = DefaultRegistry.Counter("schedule.advances")
	// ScheduleConflicts counts lock acquisitions that had to wait
	// because another write was in flight for the same process.
	ScheduleConflicts = DefaultRegistry.Counter("schedule.lock_conflicts")

	// ---- Write pipeline metrics ----

	// WritesAccepted counts writes that committed successfully.
	WritesAccepted = DefaultRegistry.Counter("writes.accepted")
	// WritesRejected counts writes that returned an error, at any stage.
	WritesRejected = DefaultRegistry.Counter("writes.rejected")
	// WriteLatencyMS records end-to-end write latency in milliseconds.
	WriteLatencyMS = DefaultRegistry.Histogram("writes.latency_ms")

	// ---- Gateway metrics ----

	// GatewayRequests counts outbound gateway RPCs (network_info,
	// check_head).
	GatewayRequests = DefaultRegistry.Counter("gateway.requests")
	// GatewayErrors counts gateway RPCs that returned an error.
	GatewayErrors = DefaultRegistry.Counter("gateway.errors")

	// ---- Uploader metrics ----

	// UploadsAttempted counts bundle upload attempts.
	UploadsAttempted = DefaultRegistry.Counter("uploader.attempted")
	// UploadsFailed counts bundle upload attempts that errored.
	UploadsFailed = DefaultRegistry.Counter("uploader.failed")
	// UploadBytes counts total bundle bytes uploaded.
	UploadBytes = DefaultRegistry.Counter("uploader.bytes")

	// ---- Store metrics ----

	// StoreWrites counts durable persistence calls (messages and
	// process creations together).
	StoreWrites = DefaultRegistry.Counter("store.writes")
	// StoreWriteLatencyMS records store write latency in milliseconds.
	StoreWriteLatencyMS = DefaultRegistry.Histogram("store.write_latency_ms")

	// ---- HTTP surface metrics ----

	// HTTPRequests counts incoming write/read HTTP requests.
	HTTPRequests = DefaultRegistry.Counter("http.requests")
	// HTTPErrors counts HTTP requests that returned a status of 400 or above.
	HTTPErrors = DefaultRegistry.Counter("http.errors")
)
