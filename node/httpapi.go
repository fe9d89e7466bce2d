// httpapi.go implements the scheduler unit's write/read JSON surface: a
// single write endpoint accepting raw signed bundle bytes, and the
// supplemental read endpoints (message/process lookup, timestamp,
// health) that make a running unit queryable on its own.
package node

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/permaweb/scheduler-unit/dal"
	"github.com/permaweb/scheduler-unit/log"
	"github.com/permaweb/scheduler-unit/metrics"
	"github.com/permaweb/scheduler-unit/pipeline"
	"github.com/permaweb/scheduler-unit/scheduler"
	"github.com/permaweb/scheduler-unit/writepipeline"
)

// WritePipeline is the subset of writepipeline.Pipeline the HTTP surface
// depends on.
type WritePipeline interface {
	Write(ctx context.Context, raw []byte) (writepipeline.Result, error)
}

// HTTPAPI serves the write/read JSON surface over HTTP. It satisfies
// Service so the lifecycle manager can start and stop it alongside the
// unit's other subsystems.
type HTTPAPI struct {
	addr   string
	pl     WritePipeline
	store  dal.DataStore
	gw     dal.Gateway
	wallet dal.Wallet
	logger *log.Logger
	events *EventBus

	srv *http.Server
}

// NewHTTPAPI constructs the HTTP surface. It does not start listening
// until Start is called. events may be nil, in which case writes are
// not published to the event bus.
func NewHTTPAPI(addr string, pl WritePipeline, store dal.DataStore, gw dal.Gateway, wallet dal.Wallet, logger *log.Logger, events *EventBus) *HTTPAPI {
	return &HTTPAPI{addr: addr, pl: pl, store: store, gw: gw, wallet: wallet, logger: logger, events: events}
}

// Name identifies this service to the lifecycle manager.
func (a *HTTPAPI) Name() string { return "httpapi" }

// Start begins serving HTTP in the background. It returns once the
// listener is bound; ListenAndServe's terminal error is logged, not
// returned, since it always fires after Stop closes the listener.
func (a *HTTPAPI) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /", a.handleWrite)
	mux.HandleFunc("GET /timestamp", a.handleTimestamp)
	mux.HandleFunc("GET /health", a.handleHealth)
	mux.HandleFunc("GET /processes/{process_id}", a.handleReadProcess)
	mux.HandleFunc("GET /{tx_id}", a.handleReadMessage)

	a.srv = &http.Server{Addr: a.addr, Handler: countRequests(mux)}
	errCh := make(chan error, 1)
	go func() { errCh <- a.srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-time.After(100 * time.Millisecond):
		go func() {
			if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("http server exited", "error", err)
			}
		}()
		return nil
	}
}

// Stop gracefully shuts the HTTP server down.
func (a *HTTPAPI) Stop() error {
	if a.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.srv.Shutdown(ctx)
}

// maxBundleBytes bounds a single inbound write request.
const maxBundleBytes = 32 << 20

// statusRecorder captures the status code a handler wrote, so middleware
// can classify the response after the handler has already run.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// countRequests wraps mux with the HTTPRequests/HTTPErrors counters,
// classifying any response with status 400 or above as an error.
func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.HTTPRequests.Inc()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if rec.status >= 400 {
			metrics.HTTPErrors.Inc()
		}
	})
}

func (a *HTTPAPI) handleWrite(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBundleBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := a.pl.Write(r.Context(), raw)
	if err != nil {
		if a.events != nil {
			a.events.PublishAsync(EventItemRejected, err)
		}
		writePipelineError(w, err)
		return
	}

	if a.events != nil {
		a.events.PublishAsync(EventItemWritten, result)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"timestamp": result.Timestamp,
		"id":        result.ID,
	})
}

// handleReadMessage implements read_message_data: look up a message by
// id, and if not found, treat the path segment as a process id and
// return its message range instead.
func (a *HTTPAPI) handleReadMessage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("tx_id")

	data, err := a.store.GetMessage(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if data != nil {
		writeBinary(w, data)
		return
	}

	from := parseUint(r.URL.Query().Get("from"), 0)
	to := parseUint(r.URL.Query().Get("to"), ^uint64(0))
	limit := int(parseUint(r.URL.Query().Get("limit"), 100))

	messages, err := a.store.GetMessages(r.Context(), id, from, to, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if messages == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

// handleReadProcess implements read_process.
func (a *HTTPAPI) handleReadProcess(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("process_id")

	data, err := a.store.GetProcess(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if data == nil {
		http.NotFound(w, r)
		return
	}
	writeBinary(w, data)
}

// handleTimestamp returns now_ms() plus the gateway's current block
// height, zero-padded to 12 digits.
func (a *HTTPAPI) handleTimestamp(w http.ResponseWriter, r *http.Request) {
	info, err := a.gw.NetworkInfo(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}

	height := info.Height
	if len(height) < 12 {
		height = strings.Repeat("0", 12-len(height)) + height
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"timestamp":    scheduler.NowMS(),
		"block_height": height,
	})
}

// handleHealth returns the process timestamp plus the unit's wallet
// address.
func (a *HTTPAPI) handleHealth(w http.ResponseWriter, r *http.Request) {
	address, err := a.wallet.Address()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"timestamp": scheduler.NowMS(),
		"address":   address,
	})
}

func parseUint(s string, def uint64) uint64 {
	if s == "" {
		return def
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeBinary(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

// writePipelineError maps a pipeline.Error's Kind to an HTTP status
// matching its retry and caller-fault semantics.
func writePipelineError(w http.ResponseWriter, err error) {
	kind, ok := pipeline.KindOf(err)
	if !ok {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	switch kind {
	case pipeline.Codec, pipeline.Verification, pipeline.Classification:
		writeError(w, http.StatusBadRequest, err)
	case pipeline.GatewayUnavailable, pipeline.ScheduleUnavailable, pipeline.UploadFailed, pipeline.PersistFailed:
		writeError(w, http.StatusServiceUnavailable, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
