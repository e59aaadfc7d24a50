package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/adiwena/gobiz-bridge/internal/domain"
	"github.com/adiwena/gobiz-bridge/pkg/httpclient"
)

// Webhook posts each discovered transaction to a caller-supplied URL.
// Delivery is fire-and-forget behind a circuit breaker, so a dead receiver
// stops costing connections instead of backing up the poller.
type Webhook struct {
	url     string
	client  *httpclient.CircuitBreakerClient
	timeout time.Duration
	logger  *slog.Logger
}

// NewWebhook creates a webhook sink for the given receiver URL.
func NewWebhook(url string, timeout time.Duration, logger *slog.Logger) *Webhook {
	base := httpclient.New(httpclient.NoRetryConfig(timeout))
	return &Webhook{
		url:     url,
		client:  httpclient.NewCircuitBreakerClient(base, httpclient.DefaultCircuitBreakerConfig("webhook"), logger),
		timeout: timeout,
		logger:  logger,
	}
}

// URL returns the receiver URL.
func (w *Webhook) URL() string { return w.url }

// Deliver posts the transaction. Failures are logged and dropped.
func (w *Webhook) Deliver(ctx context.Context, userID, merchantID string, tx *domain.Transaction) {
	body, err := json.Marshal(payload{UserID: userID, MerchantID: merchantID, Tx: tx})
	if err != nil {
		w.logger.Error("webhook payload encode failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	resp, err := w.client.Post(ctx, w.url, "application/json", bytes.NewReader(body))
	if err != nil {
		w.logger.Warn("webhook delivery failed",
			slog.String("user_id", userID),
			slog.String("url", w.url),
			slog.String("error", err.Error()),
		)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		w.logger.Warn("webhook receiver rejected delivery",
			slog.String("user_id", userID),
			slog.String("url", w.url),
			slog.Int("status", resp.StatusCode),
		)
	}
}
