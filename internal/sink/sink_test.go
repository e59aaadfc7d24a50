package sink

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adiwena/gobiz-bridge/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleTx(t *testing.T) *domain.Transaction {
	t.Helper()
	return domain.NormalizeTransaction(json.RawMessage(`{
		"id": "jrn-1",
		"metadata": {"transaction": {"status": "settlement", "gross_amount": 150000}}
	}`))
}

func TestWebhook_DeliversPayload(t *testing.T) {
	var got atomic.Pointer[map[string]any]
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		got.Store(&body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, 5*time.Second, discardLogger())
	wh.Deliver(context.Background(), "budi", "G123", sampleTx(t))

	body := got.Load()
	require.NotNil(t, body)
	assert.Equal(t, "budi", (*body)["userId"])
	assert.Equal(t, "G123", (*body)["merchantId"])

	tx, ok := (*body)["tx"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "jrn-1", tx["id"])
	assert.Equal(t, float64(1500), tx["amount"])
}

func TestWebhook_SwallowsReceiverErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, time.Second, discardLogger())

	// Must not panic or propagate anything.
	wh.Deliver(context.Background(), "budi", "G123", sampleTx(t))
}

func TestWebhook_SwallowsConnectionErrors(t *testing.T) {
	wh := NewWebhook("http://127.0.0.1:1", time.Second, discardLogger())
	wh.Deliver(context.Background(), "budi", "G123", sampleTx(t))
}

func TestStream_DeliverAndReceive(t *testing.T) {
	s := NewStream()
	s.Deliver(context.Background(), "budi", "G123", sampleTx(t))

	select {
	case raw := <-s.C():
		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, "budi", body["userId"])
	default:
		t.Fatal("expected a buffered delivery")
	}
}

func TestStream_DropsWhenFull(t *testing.T) {
	s := NewStream()
	tx := sampleTx(t)

	for i := 0; i < streamBuffer+10; i++ {
		s.Deliver(context.Background(), "budi", "G123", tx)
	}

	// Only the buffer's worth made it through; the rest were dropped
	// without blocking.
	count := 0
	for {
		select {
		case <-s.C():
			count++
			continue
		default:
		}
		break
	}
	assert.Equal(t, streamBuffer, count)
}
