package gobiz

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

// MerchantID resolves the user's merchant id, caching it on the session and
// in the database. The first authenticated account lookup wins; merchants
// with multiple outlets still resolve to the primary id.
func (e *Engine) MerchantID(ctx context.Context, userID string) (string, error) {
	s := e.Session(userID)

	s.Mu.Lock()
	if err := e.hydrateLocked(ctx, s); err != nil {
		s.Mu.Unlock()
		return "", err
	}
	if cached := s.MerchantID; cached != "" {
		s.Mu.Unlock()
		return cached, nil
	}
	s.Mu.Unlock()

	raw, err := e.Do(ctx, userID, http.MethodPost, "/v1/merchants/search", map[string]any{
		"from":    0,
		"to":      1,
		"_source": []string{"id"},
	}, nil)
	if err != nil {
		return "", err
	}

	var result struct {
		Hits []struct {
			ID string `json:"id"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", ErrMerchantNotFound
	}
	if len(result.Hits) == 0 || result.Hits[0].ID == "" {
		return "", ErrMerchantNotFound
	}
	merchantID := result.Hits[0].ID

	s.Mu.Lock()
	s.MerchantID = merchantID
	s.Mu.Unlock()

	if err := e.users.SaveMerchantID(ctx, userID, merchantID); err != nil {
		return "", err
	}

	e.logger.InfoContext(ctx, "merchant resolved",
		slog.String("user_id", userID),
		slog.String("merchant_id", merchantID),
	)
	return merchantID, nil
}
