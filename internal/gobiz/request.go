package gobiz

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/adiwena/gobiz-bridge/internal/domain"
)

// Do executes an authenticated, paced vendor request and returns the raw
// response body. The full flow runs under the session lock: hydrate from the
// database, refresh if the token is invalid, wait for the pacing slot, call.
// A 401 triggers exactly one refresh-and-retry; any other failure status is
// surfaced as *HTTPError without replay.
func (e *Engine) Do(ctx context.Context, userID, method, path string, payload any, extraHeaders map[string]string) (json.RawMessage, error) {
	s := e.Session(userID)
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if err := e.hydrateLocked(ctx, s); err != nil {
		return nil, err
	}
	if s.TokenInvalid(e.now()) {
		if err := e.refreshLocked(ctx, s); err != nil {
			return nil, err
		}
	}
	if err := e.awaitTurnLocked(ctx, s); err != nil {
		return nil, err
	}

	url := e.cfg.BaseURL + path
	resp, err := e.call(ctx, method, url, e.authHeaders(s, extraHeaders), payload)
	if err != nil {
		vendorRequestsTotal.WithLabelValues("transport_error").Inc()
		return nil, err
	}

	if resp.status == http.StatusUnauthorized {
		vendorAuthRetriesTotal.Inc()
		if err := e.refreshLocked(ctx, s); err != nil {
			return nil, err
		}
		if err := e.awaitTurnLocked(ctx, s); err != nil {
			return nil, err
		}
		resp, err = e.call(ctx, method, url, e.authHeaders(s, extraHeaders), payload)
		if err != nil {
			vendorRequestsTotal.WithLabelValues("transport_error").Inc()
			return nil, err
		}
	}

	if resp.status < 200 || resp.status >= 300 {
		vendorRequestsTotal.WithLabelValues("error").Inc()
		return nil, newHTTPError(resp.status, resp.body)
	}

	vendorRequestsTotal.WithLabelValues("ok").Inc()
	return resp.body, nil
}

// authHeaders layers the bearer token and any caller extras over the base
// header set. It is rebuilt per attempt so a retry after refresh carries the
// new token.
func (e *Engine) authHeaders(s *domain.Session, extra map[string]string) http.Header {
	h := e.baseHeaders(s)
	h.Set("Authorization", "Bearer "+s.AccessToken)
	for k, v := range extra {
		h.Set(k, v)
	}
	return h
}
