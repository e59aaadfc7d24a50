// Package sink contains the delivery targets for discovered transactions:
// SSE streams and the outbound webhook.
package sink

import (
	"context"

	"github.com/adiwena/gobiz-bridge/internal/domain"
)

// Sink receives newly discovered transactions. Delivery is best-effort:
// implementations must not block the polling loop indefinitely and must
// swallow their own failures.
type Sink interface {
	Deliver(ctx context.Context, userID, merchantID string, tx *domain.Transaction)
}

// payload is the wire shape shared by webhook posts and SSE tx events.
type payload struct {
	UserID     string              `json:"userId"`
	MerchantID string              `json:"merchantId"`
	Tx         *domain.Transaction `json:"tx"`
}
