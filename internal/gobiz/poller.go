package gobiz

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/adiwena/gobiz-bridge/internal/domain"
	"github.com/adiwena/gobiz-bridge/internal/sink"
)

// Poller runs one journal polling loop per user and fans out newly
// discovered transactions. Discovery is exactly-once per session: the
// session's dedup set filters entries already delivered, and clearing the
// session (logout) resets it.
type Poller struct {
	engine   *Engine
	logger   *slog.Logger
	interval time.Duration

	// onDiscovered, when set, receives every new transaction before the
	// attached sinks. Used for the event stream.
	onDiscovered func(ctx context.Context, userID, merchantID string, tx *domain.Transaction)

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	sinks   map[string]map[int64]sink.Sink
	nextID  int64
	wg      sync.WaitGroup
}

// NewPoller creates a poller. interval is the spacing between poll cycles
// for each user.
func NewPoller(engine *Engine, interval time.Duration, logger *slog.Logger) *Poller {
	return &Poller{
		engine:   engine,
		logger:   logger,
		interval: interval,
		cancels:  make(map[string]context.CancelFunc),
		sinks:    make(map[string]map[int64]sink.Sink),
	}
}

// OnDiscovered registers the fan-out hook invoked for every new transaction.
func (p *Poller) OnDiscovered(fn func(ctx context.Context, userID, merchantID string, tx *domain.Transaction)) {
	p.onDiscovered = fn
}

// Start launches the polling loop for a user. Starting an already-running
// loop is a no-op, so SSE subscribers and the webhook share one loop and the
// first caller's interval sticks. A non-positive interval uses the default.
func (p *Poller) Start(userID, merchantID string, interval time.Duration) {
	if interval <= 0 {
		interval = p.interval
	}

	p.mu.Lock()
	if _, running := p.cancels[userID]; running {
		p.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancels[userID] = cancel
	p.mu.Unlock()

	p.wg.Add(1)
	go p.loop(ctx, userID, merchantID, interval)
}

// Stop halts the polling loop for a user if one is running.
func (p *Poller) Stop(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cancel, ok := p.cancels[userID]; ok {
		cancel()
		delete(p.cancels, userID)
	}
}

// Active reports whether a polling loop is running for the user.
func (p *Poller) Active(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.cancels[userID]
	return ok
}

// Attach registers a delivery sink for a user's transactions and returns the
// detach function. Attaching does not start the loop; callers Start it.
func (p *Poller) Attach(userID string, s sink.Sink) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextID++
	id := p.nextID
	if p.sinks[userID] == nil {
		p.sinks[userID] = make(map[int64]sink.Sink)
	}
	p.sinks[userID][id] = s

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.sinks[userID], id)
	}
}

// Close stops every loop and waits for them to finish.
func (p *Poller) Close() {
	p.mu.Lock()
	for userID, cancel := range p.cancels {
		cancel()
		delete(p.cancels, userID)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Poller) loop(ctx context.Context, userID, merchantID string, interval time.Duration) {
	defer p.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		p.pollOnce(ctx, userID, merchantID)
	}
}

// pollOnce runs one poll cycle. Vendor errors are logged and swallowed: the
// loop must outlive transient failures, and the next cycle retries
// naturally.
func (p *Poller) pollOnce(ctx context.Context, userID, merchantID string) {
	from, to := dayWindow(p.engine.now())

	result, err := p.engine.SearchJournals(ctx, userID, merchantID, from, to)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		pollCyclesTotal.WithLabelValues("error").Inc()
		p.logger.Debug("journal poll failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return
	}
	pollCyclesTotal.WithLabelValues("ok").Inc()

	session := p.engine.Session(userID)
	for _, hit := range result.Hits {
		tx := domain.NormalizeTransaction(hit)
		key := tx.DedupKey()

		session.Mu.Lock()
		fresh := session.MarkSeen(key)
		session.Mu.Unlock()
		if !fresh {
			continue
		}

		transactionsDiscovered.Inc()
		if p.onDiscovered != nil {
			p.onDiscovered(ctx, userID, merchantID, tx)
		}
		p.deliver(ctx, userID, merchantID, tx)
	}
}

func (p *Poller) deliver(ctx context.Context, userID, merchantID string, tx *domain.Transaction) {
	p.mu.Lock()
	targets := make([]sink.Sink, 0, len(p.sinks[userID]))
	for _, s := range p.sinks[userID] {
		targets = append(targets, s)
	}
	p.mu.Unlock()

	for _, s := range targets {
		s.Deliver(ctx, userID, merchantID, tx)
	}
}
