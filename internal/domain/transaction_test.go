package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTransaction_Settlement(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "jrn-001",
		"time": "2026-08-30T10:00:00+07:00",
		"metadata": {
			"transaction": {
				"order_id": "ORD-9",
				"transaction_id": "TX-9",
				"transaction_time": "2026-08-30T10:00:01+07:00",
				"status": "settlement",
				"payment_type": "qris",
				"gross_amount": 150000
			}
		}
	}`)

	tx := NormalizeTransaction(raw)

	assert.Equal(t, "jrn-001", tx.ID)
	assert.Equal(t, "ORD-9", tx.OrderID)
	assert.Equal(t, "TX-9", tx.TransactionID)
	assert.Equal(t, "2026-08-30T10:00:01+07:00", tx.Time)
	assert.Equal(t, "settlement", tx.Status)
	assert.Equal(t, "qris", tx.PaymentType)
	require.NotNil(t, tx.AmountSen)
	assert.Equal(t, float64(150000), *tx.AmountSen)
	assert.Equal(t, int64(1500), tx.Amount)
	assert.Equal(t, "Rp 1.500", tx.AmountFormatted)
}

func TestNormalizeTransaction_AmountFallbackChain(t *testing.T) {
	tests := []struct {
		name     string
		txFields string
		wantSen  float64
	}{
		{"gross_amount wins", `{"gross_amount": 100, "amount": 200}`, 100},
		{"amount", `{"amount": 200}`, 200},
		{"total_amount", `{"total_amount": 300}`, 300},
		{"gopay_amount", `{"gopay_amount": 400}`, 400},
		{"gopay.amount", `{"gopay": {"amount": 500}}`, 500},
		{"gopay.gross_amount", `{"gopay": {"gross_amount": 600}}`, 600},
		{"details.amount", `{"details": {"amount": 700}}`, 700},
		{"details.gross_amount", `{"details": {"gross_amount": 800}}`, 800},
		{"string amount parsed", `{"gross_amount": "12345"}`, 12345},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := json.RawMessage(`{"metadata": {"transaction": ` + tt.txFields + `}}`)
			tx := NormalizeTransaction(raw)
			require.NotNil(t, tx.AmountSen)
			assert.Equal(t, tt.wantSen, *tx.AmountSen)
		})
	}
}

func TestNormalizeTransaction_NoAmount(t *testing.T) {
	tx := NormalizeTransaction(json.RawMessage(`{"metadata": {"transaction": {"status": "pending"}}}`))

	assert.Nil(t, tx.AmountSen)
	assert.Equal(t, int64(0), tx.Amount)
	assert.Equal(t, "Rp 0", tx.AmountFormatted)
}

func TestNormalizeTransaction_IDFallbacks(t *testing.T) {
	tx := NormalizeTransaction(json.RawMessage(`{"_id": "legacy-7"}`))
	assert.Equal(t, "legacy-7", tx.ID)

	tx = NormalizeTransaction(json.RawMessage(`{"metadata": {"transaction": {"order_id": "ORD-1"}}}`))
	assert.Equal(t, "ORD-1", tx.ID)

	tx = NormalizeTransaction(json.RawMessage(`{"metadata": {"transaction": {"transaction_id": "TX-1"}}}`))
	assert.Equal(t, "TX-1", tx.ID)
}

func TestNormalizeTransaction_UnparseableKeepsRaw(t *testing.T) {
	raw := json.RawMessage(`not-json`)
	tx := NormalizeTransaction(raw)

	assert.Equal(t, raw, tx.Raw)
	assert.Empty(t, tx.ID)
}

func TestDedupKey_PrefersID(t *testing.T) {
	tx := NormalizeTransaction(json.RawMessage(`{"id": "jrn-42", "metadata": {"transaction": {"status": "settlement"}}}`))
	assert.Equal(t, "jrn-42", tx.DedupKey())
}

func TestDedupKey_CompositeFallback(t *testing.T) {
	raw := json.RawMessage(`{
		"metadata": {
			"transaction": {
				"transaction_time": "2026-08-30T10:00:00+07:00",
				"status": "settlement",
				"payment_type": "gopay",
				"gross_amount": 50000
			}
		}
	}`)
	tx := NormalizeTransaction(raw)
	require.Empty(t, tx.ID)

	key := tx.DedupKey()
	assert.JSONEq(t, `["2026-08-30T10:00:00+07:00", 50000, "settlement", "gopay", null]`, key)

	// Same fields, same key.
	assert.Equal(t, key, NormalizeTransaction(raw).DedupKey())

	// A changed status produces a different key.
	changed := NormalizeTransaction(json.RawMessage(`{
		"metadata": {
			"transaction": {
				"transaction_time": "2026-08-30T10:00:00+07:00",
				"status": "refund",
				"payment_type": "gopay",
				"gross_amount": 50000
			}
		}
	}`))
	assert.NotEqual(t, key, changed.DedupKey())
}

func TestFormatRupiah(t *testing.T) {
	assert.Equal(t, "Rp 0", FormatRupiah(0))
	assert.Equal(t, "Rp 1.500", FormatRupiah(1500))
	assert.Equal(t, "Rp 2.500.000", FormatRupiah(2500000))
}
