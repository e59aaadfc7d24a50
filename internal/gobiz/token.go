package gobiz

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/adiwena/gobiz-bridge/internal/domain"
)

// tokenResponse is the payload of a successful /goid/token exchange.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// refreshLocked exchanges the refresh token for a fresh pair and persists it.
// Callers hold s.Mu.
func (e *Engine) refreshLocked(ctx context.Context, s *domain.Session) error {
	if s.RefreshToken == "" {
		return ErrNoRefreshToken
	}
	if err := e.awaitTurnLocked(ctx, s); err != nil {
		return err
	}

	resp, err := e.call(ctx, http.MethodPost, e.cfg.BaseURL+"/goid/token", e.baseHeaders(s), map[string]any{
		"client_id":  clientID,
		"grant_type": "refresh_token",
		"data": map[string]string{
			"refresh_token": s.RefreshToken,
			"user_type":     userType,
		},
	})
	if err != nil {
		return err
	}
	if resp.status != http.StatusOK {
		return &AuthFlowError{Flow: "refresh", Status: resp.status}
	}

	var tok tokenResponse
	if err := json.Unmarshal(resp.body, &tok); err != nil {
		return &AuthFlowError{Flow: "refresh", Status: resp.status}
	}

	// The vendor may omit a rotated refresh token; keep the current one then.
	refresh := tok.RefreshToken
	if refresh == "" {
		refresh = s.RefreshToken
	}
	s.SetTokens(tok.AccessToken, refresh, tok.ExpiresIn, e.now())

	if err := e.persistLocked(ctx, s); err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "vendor token refreshed",
		slog.String("user_id", s.UserID),
		slog.Int64("token_expiry", s.TokenExpiry),
	)
	return nil
}

// LoginWithEmail performs the two-step email login: announce the login
// request, let the vendor settle, then exchange the password grant.
func (e *Engine) LoginWithEmail(ctx context.Context, userID, email, password string) error {
	s := e.Session(userID)
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if err := e.hydrateLocked(ctx, s); err != nil {
		return err
	}
	if err := e.awaitTurnLocked(ctx, s); err != nil {
		return err
	}

	// Outcome deliberately ignored: the announce call primes the vendor's
	// login state and fails closed on the grant below.
	_, _ = e.call(ctx, http.MethodPost, e.cfg.BaseURL+"/goid/login/request", e.baseHeaders(s), map[string]string{
		"email":      email,
		"login_type": "password",
		"client_id":  clientID,
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(e.cfg.LoginSettleDelay):
	}

	if err := e.awaitTurnLocked(ctx, s); err != nil {
		return err
	}

	resp, err := e.call(ctx, http.MethodPost, e.cfg.BaseURL+"/goid/token", e.baseHeaders(s), map[string]any{
		"client_id":  clientID,
		"grant_type": "password",
		"data": map[string]string{
			"email":     email,
			"password":  password,
			"user_type": userType,
		},
	})
	if err != nil {
		return err
	}
	if resp.status != http.StatusOK {
		return &AuthFlowError{Flow: "login", Status: resp.status}
	}

	var tok tokenResponse
	if err := json.Unmarshal(resp.body, &tok); err != nil {
		return &AuthFlowError{Flow: "login", Status: resp.status}
	}
	s.SetTokens(tok.AccessToken, tok.RefreshToken, tok.ExpiresIn, e.now())

	if err := e.persistLocked(ctx, s); err != nil {
		return err
	}

	e.StartAutoRefresh(userID)
	e.logger.InfoContext(ctx, "email login succeeded", slog.String("user_id", userID))
	return nil
}

// RequestOTP asks the vendor to send a login OTP to a phone number. The
// returned payload carries the otp_token the verify step needs. The literal
// "Bearer" authorization mirrors the dashboard's unauthenticated login calls.
func (e *Engine) RequestOTP(ctx context.Context, userID, phone, countryCode string) (json.RawMessage, error) {
	if countryCode == "" {
		countryCode = "62"
	}

	s := e.Session(userID)
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if err := e.hydrateLocked(ctx, s); err != nil {
		return nil, err
	}
	if err := e.awaitTurnLocked(ctx, s); err != nil {
		return nil, err
	}

	headers := e.baseHeaders(s)
	headers.Set("Authorization", "Bearer")

	resp, err := e.call(ctx, http.MethodPost, e.cfg.BaseURL+"/goid/login/request", headers, map[string]string{
		"client_id":    clientID,
		"phone_number": phone,
		"country_code": countryCode,
	})
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusOK {
		return nil, &AuthFlowError{Flow: "otp_request", Status: resp.status}
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(resp.body, &envelope); err != nil {
		return nil, &AuthFlowError{Flow: "otp_request", Status: resp.status}
	}
	return envelope.Data, nil
}

// VerifyOTP exchanges an OTP for a token pair.
func (e *Engine) VerifyOTP(ctx context.Context, userID, otp, otpToken string) error {
	s := e.Session(userID)
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if err := e.hydrateLocked(ctx, s); err != nil {
		return err
	}
	if err := e.awaitTurnLocked(ctx, s); err != nil {
		return err
	}

	headers := e.baseHeaders(s)
	headers.Set("Authorization", "Bearer")

	resp, err := e.call(ctx, http.MethodPost, e.cfg.BaseURL+"/goid/token", headers, map[string]any{
		"client_id":  clientID,
		"grant_type": "otp",
		"data": map[string]string{
			"otp":       otp,
			"otp_token": otpToken,
		},
	})
	if err != nil {
		return err
	}
	if resp.status != http.StatusOK {
		return &AuthFlowError{Flow: "otp_verify", Status: resp.status}
	}

	var tok tokenResponse
	if err := json.Unmarshal(resp.body, &tok); err != nil {
		return &AuthFlowError{Flow: "otp_verify", Status: resp.status}
	}
	s.SetTokens(tok.AccessToken, tok.RefreshToken, tok.ExpiresIn, e.now())

	if err := e.persistLocked(ctx, s); err != nil {
		return err
	}

	e.StartAutoRefresh(userID)
	e.logger.InfoContext(ctx, "otp login succeeded", slog.String("user_id", userID))
	return nil
}

// StartAutoRefresh launches the background refresh loop for a user. Calling
// it again while the loop runs is a no-op. A failed refresh revokes the
// session entirely: stale credentials must not linger half-alive.
func (e *Engine) StartAutoRefresh(userID string) {
	e.mu.Lock()
	if _, running := e.refreshCancels[userID]; running {
		e.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.refreshCancels[userID] = cancel
	e.mu.Unlock()

	go e.autoRefreshLoop(ctx, userID)
}

func (e *Engine) autoRefreshLoop(ctx context.Context, userID string) {
	ticker := time.NewTicker(e.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		s := e.Session(userID)
		s.Mu.Lock()
		if !s.TokenInvalid(e.now()) {
			s.Mu.Unlock()
			continue
		}
		err := e.refreshLocked(ctx, s)
		s.Mu.Unlock()

		if err == nil || ctx.Err() != nil {
			continue
		}

		e.logger.Warn("auto refresh failed, revoking session",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		if lerr := e.Logout(context.Background(), userID); lerr != nil {
			e.logger.Error("logout cascade failed",
				slog.String("user_id", userID),
				slog.String("error", lerr.Error()),
			)
		}
		if e.onRevoked != nil {
			e.onRevoked(userID, "refresh_failed")
		}
		return
	}
}

// stopAutoRefresh cancels the refresh loop for a user if one is running.
func (e *Engine) stopAutoRefresh(userID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cancel, ok := e.refreshCancels[userID]; ok {
		cancel()
		delete(e.refreshCancels, userID)
	}
}

// Logout wipes the session and the stored credentials and stops the refresh
// loop. The dedup state goes with the session: a future login starts clean.
func (e *Engine) Logout(ctx context.Context, userID string) error {
	e.stopAutoRefresh(userID)

	s := e.Session(userID)
	s.Mu.Lock()
	s.ClearAuth()
	s.Mu.Unlock()

	if err := e.users.Ensure(ctx, userID); err != nil {
		return err
	}
	return e.users.ClearCredentials(ctx, userID)
}

// Close stops every background refresh loop.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for userID, cancel := range e.refreshCancels {
		cancel()
		delete(e.refreshCancels, userID)
	}
}
