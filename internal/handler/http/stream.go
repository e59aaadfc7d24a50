package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/adiwena/gobiz-bridge/internal/gobiz"
	"github.com/adiwena/gobiz-bridge/internal/sink"
	"github.com/adiwena/gobiz-bridge/pkg/httputil"
	"github.com/adiwena/gobiz-bridge/pkg/middleware"
)

// minPollInterval is the floor for caller-supplied polling intervals.
// Anything faster would burn through the vendor's rate budget.
const (
	minPollInterval     = 3 * time.Second
	defaultPollInterval = 15 * time.Second
)

// StreamHandler serves the transaction stream over server-sent events.
type StreamHandler struct {
	engine       *gobiz.Engine
	poller       *gobiz.Poller
	pingInterval time.Duration
	logger       *slog.Logger
}

func NewStreamHandler(engine *gobiz.Engine, poller *gobiz.Poller, pingInterval time.Duration, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{engine: engine, poller: poller, pingInterval: pingInterval, logger: logger}
}

// pollIntervalFromQuery reads interval_ms (or its camelCase twin) from the
// query string. Missing, unparseable, or too-small values fall back to the
// default rather than erroring: a bad knob must not break the stream.
func pollIntervalFromQuery(r *http.Request) time.Duration {
	raw := r.URL.Query().Get("interval_ms")
	if raw == "" {
		raw = r.URL.Query().Get("intervalMs")
	}
	if raw == "" {
		return defaultPollInterval
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return defaultPollInterval
	}
	if d := time.Duration(ms) * time.Millisecond; d >= minPollInterval {
		return d
	}
	return defaultPollInterval
}

// writeEvent writes one SSE frame and flushes it.
func writeEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, raw)
	flusher.Flush()
}

// Stream subscribes the caller to their transaction feed. The polling loop is
// started on first subscribe and deliberately outlives the connection: a
// dropped client reconnects to a warm dedup set instead of a replay.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, r, fmt.Errorf("streaming unsupported by connection"), h.logger)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	merchantID, err := h.engine.MerchantID(r.Context(), userID)
	if err != nil {
		w.WriteHeader(http.StatusOK)
		writeEvent(w, flusher, "error", map[string]string{"message": mapVendorError(err).Error()})
		return
	}

	stream := sink.NewStream()
	detach := h.poller.Attach(userID, stream)
	defer detach()
	h.poller.Start(userID, merchantID, pollIntervalFromQuery(r))

	writeEvent(w, flusher, "ready", map[string]any{
		"ok":         true,
		"userId":     userID,
		"merchantId": merchantID,
	})

	ping := time.NewTicker(h.pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ping.C:
			writeEvent(w, flusher, "ping", map[string]int64{"t": time.Now().UnixMilli()})
		case raw := <-stream.C():
			fmt.Fprintf(w, "event: tx\ndata: %s\n\n", raw)
			flusher.Flush()
		}
	}
}
