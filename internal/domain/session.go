package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// BrowserUserAgent is sent on every vendor call so the session looks like the
// merchant web dashboard.
const BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// tokenExpiryMargin is subtracted from the stored expiry so tokens are
// refreshed before they actually lapse.
const tokenExpiryMargin = 5 * time.Minute

// Session is the in-memory vendor session for one user. All fields are
// guarded by Mu; callers lock for the whole flow they perform (hydrate,
// validate, pace, call) so concurrent requests for the same user serialize.
type Session struct {
	Mu sync.Mutex

	UserID   string
	UniqueID string

	AccessToken  string
	RefreshToken string
	// TokenExpiry is epoch milliseconds, matching the vendor's own clock
	// arithmetic.
	TokenExpiry int64
	MerchantID  string

	// Request pacing state.
	LastRequest time.Time
	MinInterval time.Duration

	seen map[string]struct{}
}

// NewSession creates a session with a fresh device identifier.
func NewSession(userID string, minInterval time.Duration) *Session {
	return &Session{
		UserID:      userID,
		UniqueID:    uuid.New().String(),
		MinInterval: minInterval,
		seen:        make(map[string]struct{}),
	}
}

// TokenInvalid reports whether the access token is missing or within the
// refresh margin of its expiry. Callers must hold Mu.
func (s *Session) TokenInvalid(now time.Time) bool {
	if s.AccessToken == "" {
		return true
	}
	return now.UnixMilli() > s.TokenExpiry-tokenExpiryMargin.Milliseconds()
}

// SetTokens stores a fresh token pair. expiresIn is the vendor-reported
// lifetime in seconds; zero falls back to one hour. Callers must hold Mu.
func (s *Session) SetTokens(accessToken, refreshToken string, expiresIn int64, now time.Time) {
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	s.AccessToken = accessToken
	s.RefreshToken = refreshToken
	s.TokenExpiry = now.UnixMilli() + expiresIn*1000
}

// ClearAuth wipes tokens, merchant binding, and dedup state. Callers must
// hold Mu.
func (s *Session) ClearAuth() {
	s.AccessToken = ""
	s.RefreshToken = ""
	s.TokenExpiry = 0
	s.MerchantID = ""
	s.seen = make(map[string]struct{})
}

// MarkSeen records a dedup key, returning true the first time it is seen.
// Callers must hold Mu.
func (s *Session) MarkSeen(key string) bool {
	if key == "" {
		return false
	}
	if _, ok := s.seen[key]; ok {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

// SeenCount returns the number of recorded dedup keys. Callers must hold Mu.
func (s *Session) SeenCount() int {
	return len(s.seen)
}

// Status is a point-in-time snapshot of the session, safe to serialize.
type Status struct {
	HasAccessToken  bool   `json:"hasAccessToken"`
	HasRefreshToken bool   `json:"hasRefreshToken"`
	TokenExpiry     *int64 `json:"tokenExpiry"`
	MerchantID      string `json:"merchantId,omitempty"`
}

// Snapshot captures the current session state. Callers must hold Mu.
func (s *Session) Snapshot() Status {
	st := Status{
		HasAccessToken:  s.AccessToken != "",
		HasRefreshToken: s.RefreshToken != "",
		MerchantID:      s.MerchantID,
	}
	if s.TokenExpiry != 0 {
		expiry := s.TokenExpiry
		st.TokenExpiry = &expiry
	}
	return st
}
