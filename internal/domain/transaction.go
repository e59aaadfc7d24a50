package domain

import (
	"encoding/json"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Transaction is the normalized view of one journal entry from the vendor's
// journal search. Raw always carries the untouched vendor document; the other
// fields are best-effort extractions since the vendor schema varies by
// payment type.
type Transaction struct {
	Raw             json.RawMessage `json:"raw"`
	ID              string          `json:"id,omitempty"`
	OrderID         string          `json:"orderId,omitempty"`
	TransactionID   string          `json:"transactionId,omitempty"`
	Time            string          `json:"time,omitempty"`
	Status          string          `json:"status,omitempty"`
	PaymentType     string          `json:"paymentType,omitempty"`
	AmountSen       *float64        `json:"amountSen"`
	Amount          int64           `json:"amount"`
	AmountFormatted string          `json:"amountFormatted"`
}

var rupiahPrinter = message.NewPrinter(language.Indonesian)

// FormatRupiah renders a rupiah amount with Indonesian digit grouping,
// e.g. 150000 -> "Rp 150.000".
func FormatRupiah(amount int64) string {
	return rupiahPrinter.Sprintf("Rp %d", amount)
}

// NormalizeTransaction extracts the normalized fields from a raw journal hit.
// Unparseable input still yields a Transaction carrying the raw document.
func NormalizeTransaction(raw json.RawMessage) *Transaction {
	norm := &Transaction{
		Raw:             raw,
		AmountFormatted: FormatRupiah(0),
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return norm
	}

	inner := nestedMap(doc, "metadata", "transaction")

	norm.OrderID = stringField(inner, "order_id")
	norm.TransactionID = stringField(inner, "transaction_id")
	norm.Status = stringField(inner, "status")
	norm.PaymentType = stringField(inner, "payment_type")

	norm.Time = stringField(inner, "transaction_time")
	if norm.Time == "" {
		norm.Time = stringField(doc, "time")
	}

	// Document id first, then legacy _id, then the order or transaction id.
	for _, candidate := range []string{
		stringField(doc, "id"),
		stringField(doc, "_id"),
		norm.OrderID,
		norm.TransactionID,
	} {
		if candidate != "" {
			norm.ID = candidate
			break
		}
	}

	if sen, ok := pickAmountSen(inner); ok {
		norm.AmountSen = &sen
		norm.Amount = int64(math.Round(sen / 100))
		norm.AmountFormatted = FormatRupiah(norm.Amount)
	}

	return norm
}

// DedupKey returns the identity used for exactly-once delivery. The document
// id wins when present; otherwise a composite of the visible fields stands
// in. The composite is weaker: a field changing on the vendor side (e.g. a
// status transition) makes the entry look new again.
func (t *Transaction) DedupKey() string {
	if t.ID != "" {
		return t.ID
	}

	parts := []any{
		nullable(t.Time),
		nil,
		nullable(t.Status),
		nullable(t.PaymentType),
		nullable(t.OrderID),
	}
	if t.AmountSen != nil {
		parts[1] = *t.AmountSen
	}
	key, err := json.Marshal(parts)
	if err != nil {
		return ""
	}
	return string(key)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// pickAmountSen walks the fallback chain of amount fields, in sen. Vendor
// documents carry the amount under different keys depending on the payment
// rail, sometimes as a string.
func pickAmountSen(tx map[string]any) (float64, bool) {
	gopay := nestedMap(tx, "gopay")
	details := nestedMap(tx, "details")

	candidates := []struct {
		m   map[string]any
		key string
	}{
		{tx, "gross_amount"},
		{tx, "amount"},
		{tx, "total_amount"},
		{tx, "gopay_amount"},
		{gopay, "amount"},
		{gopay, "gross_amount"},
		{details, "amount"},
		{details, "gross_amount"},
	}

	for _, c := range candidates {
		if c.m == nil {
			continue
		}
		v, ok := c.m[c.key]
		if !ok || v == nil {
			continue
		}
		return toNumber(v)
	}
	return 0, false
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		var f float64
		if err := json.Unmarshal([]byte(n), &f); err != nil {
			return 0, false
		}
		return f, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func nestedMap(m map[string]any, path ...string) map[string]any {
	cur := m
	for _, p := range path {
		if cur == nil {
			return nil
		}
		next, ok := cur[p].(map[string]any)
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}
