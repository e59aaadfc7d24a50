package gobiz

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// wib is the merchant-local timezone. The vendor's journal timestamps and
// day boundaries are all Jakarta time, so the bridge pins the offset rather
// than depending on a tzdata install.
var wib = time.FixedZone("WIB", 7*60*60)

// journalPageSize bounds one poll's result set. Busy merchants exceeding 50
// entries in one window pick up the remainder on the next cycle.
const journalPageSize = 50

// journalResult is the decoded journal search response.
type journalResult struct {
	Hits []json.RawMessage `json:"hits"`
}

// SearchJournals queries incoming transaction journals for a merchant within
// the [from, to] window, newest first.
func (e *Engine) SearchJournals(ctx context.Context, userID, merchantID string, from, to string) (*journalResult, error) {
	raw, err := e.Do(ctx, userID, http.MethodPost, "/journals/search", map[string]any{
		"from": 0,
		"size": journalPageSize,
		"sort": map[string]any{
			"time": map[string]string{"order": "desc"},
		},
		"included_categories": map[string]any{
			"incoming": []string{"transaction_share", "action"},
		},
		"query": []map[string]any{
			{
				"op": "and",
				"clauses": []map[string]any{
					{"field": "metadata.transaction.merchant_id", "op": "equal", "value": merchantID},
					{"field": "metadata.transaction.transaction_time", "op": "gte", "value": from},
					{"field": "metadata.transaction.transaction_time", "op": "lte", "value": to},
				},
			},
		},
	}, map[string]string{"Accept": journalAcceptAll})
	if err != nil {
		return nil, err
	}

	var result journalResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// dayWindow returns the inclusive WIB day bounds containing now.
func dayWindow(now time.Time) (string, string) {
	day := now.In(wib).Format("2006-01-02")
	return day + "T00:00:00+07:00", day + "T23:59:59+07:00"
}
