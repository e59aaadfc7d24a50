package gobiz

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adiwena/gobiz-bridge/internal/domain"
)

// captureSink records deliveries for assertions.
type captureSink struct {
	mu  sync.Mutex
	txs []*domain.Transaction
}

func (c *captureSink) Deliver(_ context.Context, _, _ string, tx *domain.Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.txs = append(c.txs, tx)
}

func (c *captureSink) delivered() []*domain.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*domain.Transaction, len(c.txs))
	copy(out, c.txs)
	return out
}

func journalHandler(hits ...map[string]any) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"hits": hits})
	})
}

func TestPoller_DeliversEachTransactionOnce(t *testing.T) {
	// The same two journal entries come back on every poll cycle; only the
	// first cycle may deliver them.
	handler := journalHandler(
		map[string]any{"id": "jrn-1", "metadata": map[string]any{"transaction": map[string]any{"status": "settlement", "gross_amount": 150000}}},
		map[string]any{"id": "jrn-2", "metadata": map[string]any{"transaction": map[string]any{"status": "settlement", "gross_amount": 50000}}},
	)

	engine, _, _ := newTestEngine(t, handler, time.Millisecond)
	seedValidSession(engine, "budi")

	poller := NewPoller(engine, 20*time.Millisecond, discardLogger())
	t.Cleanup(poller.Close)

	sink := &captureSink{}
	detach := poller.Attach("budi", sink)
	defer detach()

	poller.Start("budi", "G123", 0)

	require.Eventually(t, func() bool {
		return len(sink.delivered()) >= 2
	}, 2*time.Second, 10*time.Millisecond)

	// Let several more cycles run; nothing new may arrive.
	time.Sleep(100 * time.Millisecond)

	txs := sink.delivered()
	require.Len(t, txs, 2)
	assert.Equal(t, "jrn-1", txs[0].ID)
	assert.Equal(t, "jrn-2", txs[1].ID)
	assert.Equal(t, int64(1500), txs[0].Amount)
}

func TestPoller_StartIsIdempotent(t *testing.T) {
	engine, _, _ := newTestEngine(t, journalHandler(), time.Millisecond)
	seedValidSession(engine, "budi")

	poller := NewPoller(engine, time.Hour, discardLogger())
	t.Cleanup(poller.Close)

	poller.Start("budi", "G123", 0)
	poller.Start("budi", "G123", 0)

	assert.True(t, poller.Active("budi"))
	poller.mu.Lock()
	assert.Len(t, poller.cancels, 1)
	poller.mu.Unlock()

	poller.Stop("budi")
	assert.False(t, poller.Active("budi"))
}

func TestPoller_OnDiscoveredHook(t *testing.T) {
	handler := journalHandler(
		map[string]any{"id": "jrn-1", "metadata": map[string]any{"transaction": map[string]any{"status": "settlement", "gross_amount": 150000}}},
	)

	engine, _, _ := newTestEngine(t, handler, time.Millisecond)
	seedValidSession(engine, "budi")

	poller := NewPoller(engine, 20*time.Millisecond, discardLogger())
	t.Cleanup(poller.Close)

	discovered := make(chan string, 8)
	poller.OnDiscovered(func(_ context.Context, userID, merchantID string, tx *domain.Transaction) {
		discovered <- userID + "/" + merchantID + "/" + tx.ID
	})

	poller.Start("budi", "G123", 0)

	select {
	case got := <-discovered:
		assert.Equal(t, "budi/G123/jrn-1", got)
	case <-time.After(2 * time.Second):
		t.Fatal("expected the hook to fire for the discovered transaction")
	}
}

func TestPoller_SurvivesVendorErrors(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"hits": []map[string]any{
			{"id": "jrn-after-error"},
		}})
	})

	engine, _, _ := newTestEngine(t, handler, time.Millisecond)
	seedValidSession(engine, "budi")

	poller := NewPoller(engine, 20*time.Millisecond, discardLogger())
	t.Cleanup(poller.Close)

	sink := &captureSink{}
	defer poller.Attach("budi", sink)()

	poller.Start("budi", "G123", 0)

	require.Eventually(t, func() bool {
		return len(sink.delivered()) == 1
	}, 2*time.Second, 10*time.Millisecond, "the loop must keep polling past a failed cycle")
}

func TestPoller_DetachStopsDeliveryButLoopRuns(t *testing.T) {
	var mu sync.Mutex
	serveID := "jrn-1"
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		id := serveID
		mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"hits": []map[string]any{{"id": id}}})
	})

	engine, _, _ := newTestEngine(t, handler, time.Millisecond)
	seedValidSession(engine, "budi")

	poller := NewPoller(engine, 20*time.Millisecond, discardLogger())
	t.Cleanup(poller.Close)

	sink := &captureSink{}
	detach := poller.Attach("budi", sink)
	poller.Start("budi", "G123", 0)

	require.Eventually(t, func() bool {
		return len(sink.delivered()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	detach()
	mu.Lock()
	serveID = "jrn-2"
	mu.Unlock()

	time.Sleep(100 * time.Millisecond)

	assert.Len(t, sink.delivered(), 1, "detached sink receives nothing further")
	assert.True(t, poller.Active("budi"), "the loop itself keeps running")

	// jrn-2 was still consumed by the dedup set while detached.
	s := engine.Session("budi")
	s.Mu.Lock()
	defer s.Mu.Unlock()
	assert.Equal(t, 2, s.SeenCount())
}
