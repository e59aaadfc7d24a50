package sink

import (
	"context"
	"encoding/json"

	"github.com/adiwena/gobiz-bridge/internal/domain"
)

// streamBuffer bounds how many undelivered transactions a slow SSE consumer
// can queue before new ones are dropped.
const streamBuffer = 64

// Stream buffers transactions for one SSE subscriber. Deliver never blocks:
// when the buffer is full the transaction is dropped for this subscriber
// only, and the next poll cycle does not re-deliver it.
type Stream struct {
	ch chan json.RawMessage
}

// NewStream creates a stream sink.
func NewStream() *Stream {
	return &Stream{ch: make(chan json.RawMessage, streamBuffer)}
}

// C exposes the delivery channel for the SSE writer.
func (s *Stream) C() <-chan json.RawMessage {
	return s.ch
}

// Deliver queues the transaction for the subscriber, dropping on overflow.
func (s *Stream) Deliver(_ context.Context, userID, merchantID string, tx *domain.Transaction) {
	raw, err := json.Marshal(payload{UserID: userID, MerchantID: merchantID, Tx: tx})
	if err != nil {
		return
	}
	select {
	case s.ch <- raw:
	default:
	}
}
