// Package gobiz implements the vendor session engine: token lifecycle,
// request pacing, authenticated calls, merchant resolution, and the
// transaction journal protocol.
package gobiz

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/adiwena/gobiz-bridge/internal/crypto"
	"github.com/adiwena/gobiz-bridge/internal/domain"
	"github.com/adiwena/gobiz-bridge/internal/repository"
	"github.com/adiwena/gobiz-bridge/pkg/httpclient"
)

// Vendor protocol constants. These mirror what the merchant web dashboard
// sends; the identity endpoints reject requests without them.
const (
	clientID         = "go-biz-web-new"
	userType         = "merchant"
	portalOrigin     = "https://portal.gofoodmerchant.co.id"
	appID            = "go-biz-web-dashboard"
	appVersion       = "platform-v3.97.0-b986b897"
	journalAcceptAll = "application/json, application/vnd.journal.v1+json"
)

// Config carries the engine's tunables.
type Config struct {
	BaseURL          string
	MinInterval      time.Duration
	RequestTimeout   time.Duration
	RefreshInterval  time.Duration
	LoginSettleDelay time.Duration
}

// Engine owns one vendor session per user and every operation performed on
// it. All per-user state lives in the session; the engine-level mutex only
// guards the maps.
type Engine struct {
	cfg     Config
	client  *httpclient.Client
	users   repository.UserRepository
	keyring *crypto.Keyring
	logger  *slog.Logger

	// onRevoked is invoked after an automatic logout cascade, outside any
	// session lock.
	onRevoked func(userID, reason string)

	mu             sync.Mutex
	sessions       map[string]*domain.Session
	refreshCancels map[string]context.CancelFunc

	now func() time.Time
}

// NewEngine creates the engine. The HTTP client never retries on its own:
// the 401 refresh-and-retry path below is the only replay the vendor's rate
// budget allows.
func NewEngine(cfg Config, users repository.UserRepository, keyring *crypto.Keyring, logger *slog.Logger) *Engine {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	return &Engine{
		cfg:            cfg,
		client:         httpclient.New(httpclient.NoRetryConfig(cfg.RequestTimeout)),
		users:          users,
		keyring:        keyring,
		logger:         logger,
		sessions:       make(map[string]*domain.Session),
		refreshCancels: make(map[string]context.CancelFunc),
		now:            time.Now,
	}
}

// OnRevoked registers the hook called when an automatic refresh failure
// revokes a session.
func (e *Engine) OnRevoked(fn func(userID, reason string)) {
	e.onRevoked = fn
}

// Session returns the in-memory session for a user, creating it on first
// touch.
func (e *Engine) Session(userID string) *domain.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.sessions[userID]; ok {
		return s
	}
	s := domain.NewSession(userID, e.cfg.MinInterval)
	e.sessions[userID] = s
	return s
}

// Status reports the session state for a user.
func (e *Engine) Status(userID string) domain.Status {
	s := e.Session(userID)
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.Snapshot()
}

// hydrateLocked fills an empty session from the database row, decrypting the
// stored token envelopes. Broken or partial rows leave the session logged
// out rather than half-authenticated. Callers hold s.Mu.
func (e *Engine) hydrateLocked(ctx context.Context, s *domain.Session) error {
	if err := e.users.Ensure(ctx, s.UserID); err != nil {
		return err
	}
	u, err := e.users.Get(ctx, s.UserID)
	if err != nil {
		return err
	}

	if s.AccessToken == "" || s.RefreshToken == "" || s.TokenExpiry == 0 {
		at := e.keyring.TryDecryptJSON(u.AccessTokenEnc)
		rt := e.keyring.TryDecryptJSON(u.RefreshTokenEnc)
		if at != "" && rt != "" && u.TokenExpiry != 0 {
			s.AccessToken = at
			s.RefreshToken = rt
			s.TokenExpiry = u.TokenExpiry
		} else {
			s.AccessToken = ""
			s.RefreshToken = ""
			s.TokenExpiry = 0
		}
	}

	if s.MerchantID == "" && u.MerchantID != "" {
		s.MerchantID = u.MerchantID
	}
	return nil
}

// persistLocked writes the session's tokens back as encrypted envelopes.
// Callers hold s.Mu.
func (e *Engine) persistLocked(ctx context.Context, s *domain.Session) error {
	var accessEnc, refreshEnc []byte
	var err error

	if s.AccessToken != "" {
		if accessEnc, err = e.keyring.EncryptJSON(s.AccessToken); err != nil {
			return fmt.Errorf("encrypt access token: %w", err)
		}
	}
	if s.RefreshToken != "" {
		if refreshEnc, err = e.keyring.EncryptJSON(s.RefreshToken); err != nil {
			return fmt.Errorf("encrypt refresh token: %w", err)
		}
	}

	return e.users.SaveCredentials(ctx, s.UserID, accessEnc, refreshEnc, s.TokenExpiry)
}

// awaitTurnLocked blocks until the session's minimum spacing since the last
// vendor call has elapsed, then claims the slot. Holding the session lock
// through the wait is what serializes concurrent callers. Callers hold s.Mu.
func (e *Engine) awaitTurnLocked(ctx context.Context, s *domain.Session) error {
	if wait := s.MinInterval - e.now().Sub(s.LastRequest); wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	s.LastRequest = e.now()
	return nil
}

// baseHeaders returns the dashboard-imitating header set for a session.
func (e *Engine) baseHeaders(s *domain.Session) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json, text/plain, */*")
	h.Set("Accept-Language", "id")
	h.Set("Origin", portalOrigin)
	h.Set("Referer", portalOrigin+"/")
	h.Set("Authentication-Type", "go-id")
	h.Set("Gojek-Country-Code", "ID")
	h.Set("Gojek-Timezone", "Asia/Jakarta")
	h.Set("X-Appid", appID)
	h.Set("X-Appversion", appVersion)
	h.Set("X-Deviceos", "Web")
	h.Set("X-Phonemake", "Windows 10 64-bit")
	h.Set("X-Phonemodel", "Chrome 120.0.0.0 on Windows 10 64-bit")
	h.Set("X-Platform", "Web")
	h.Set("X-Uniqueid", s.UniqueID)
	h.Set("X-User-Type", userType)
	h.Set("User-Agent", domain.BrowserUserAgent)
	return h
}

// vendorResponse is the decoded outcome of one vendor call.
type vendorResponse struct {
	status int
	body   []byte
}

// call performs one HTTP exchange with the vendor. Any status is returned to
// the caller; only transport failures error.
func (e *Engine) call(ctx context.Context, method, url string, headers http.Header, payload any) (*vendorResponse, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header = headers

	resp, err := e.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &vendorResponse{status: resp.StatusCode, body: raw}, nil
}
