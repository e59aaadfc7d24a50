package http

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/adiwena/gobiz-bridge/internal/gobiz"
	"github.com/adiwena/gobiz-bridge/internal/sink"
	"github.com/adiwena/gobiz-bridge/pkg/httputil"
	"github.com/adiwena/gobiz-bridge/pkg/middleware"
	"github.com/adiwena/gobiz-bridge/pkg/validator"
)

// WebhookHandler manages webhook subscriptions to the transaction feed. One
// webhook per user: starting again replaces the previous receiver.
type WebhookHandler struct {
	engine  *gobiz.Engine
	poller  *gobiz.Poller
	timeout time.Duration
	logger  *slog.Logger

	mu       sync.Mutex
	detaches map[string]func()
	urls     map[string]string
}

func NewWebhookHandler(engine *gobiz.Engine, poller *gobiz.Poller, timeout time.Duration, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		engine:   engine,
		poller:   poller,
		timeout:  timeout,
		logger:   logger,
		detaches: make(map[string]func()),
		urls:     make(map[string]string),
	}
}

type webhookStartRequest struct {
	WebhookURL string `json:"webhookUrl" validate:"required,url"`
	IntervalMs int64  `json:"intervalMs"`
}

// Start attaches a webhook receiver to the user's transaction feed and
// ensures the polling loop is running.
func (h *WebhookHandler) Start(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	var req webhookStartRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	interval := defaultPollInterval
	if d := time.Duration(req.IntervalMs) * time.Millisecond; d >= minPollInterval {
		interval = d
	}

	merchantID, err := h.engine.MerchantID(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, mapVendorError(err), h.logger)
		return
	}

	hook := sink.NewWebhook(req.WebhookURL, h.timeout, h.logger)
	detach := h.poller.Attach(userID, hook)

	h.mu.Lock()
	if prev, ok := h.detaches[userID]; ok {
		prev()
	}
	h.detaches[userID] = detach
	h.urls[userID] = req.WebhookURL
	h.mu.Unlock()

	h.poller.Start(userID, merchantID, interval)

	h.logger.InfoContext(r.Context(), "webhook subscription started",
		slog.String("user_id", userID),
		slog.String("url", req.WebhookURL),
	)
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{
		"ok":         true,
		"merchantId": merchantID,
		"webhookUrl": req.WebhookURL,
	}})
}

// Stop detaches the user's webhook and halts their polling loop.
func (h *WebhookHandler) Stop(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	h.mu.Lock()
	detach, had := h.detaches[userID]
	delete(h.detaches, userID)
	delete(h.urls, userID)
	h.mu.Unlock()

	if had {
		detach()
	}
	h.poller.Stop(userID)

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{
		"ok":      true,
		"stopped": had,
	}})
}

// Status reports whether a webhook is attached and where it points.
func (h *WebhookHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	h.mu.Lock()
	url, active := h.urls[userID]
	h.mu.Unlock()

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{
		"active":     active,
		"webhookUrl": url,
		"polling":    h.poller.Active(userID),
	}})
}
