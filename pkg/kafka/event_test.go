package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	payload := map[string]any{"merchantId": "G123", "amount": 1500}

	ev, err := NewEvent("gobiz.transaction.discovered", "budi", "user", "gobiz-bridge", payload)
	require.NoError(t, err)

	assert.NotEmpty(t, ev.EventID)
	assert.Equal(t, "gobiz.transaction.discovered", ev.EventType)
	assert.Equal(t, "budi", ev.AggregateID)
	assert.Equal(t, "user", ev.AggregateType)
	assert.Equal(t, 1, ev.Version)
	assert.WithinDuration(t, time.Now().UTC(), ev.Timestamp, time.Minute)

	var decoded map[string]any
	require.NoError(t, ev.UnmarshalData(&decoded))
	assert.Equal(t, "G123", decoded["merchantId"])
}

func TestNewEvent_UnmarshalableData(t *testing.T) {
	_, err := NewEvent("x", "a", "user", "src", make(chan int))
	assert.Error(t, err)
}

func TestEventMarshalRoundTrip(t *testing.T) {
	ev, err := NewEvent("gobiz.session.revoked", "budi", "user", "gobiz-bridge", map[string]string{"reason": "refresh_failed"})
	require.NoError(t, err)
	ev.WithCorrelationID("corr-1")

	raw, err := ev.Marshal()
	require.NoError(t, err)

	var back Event
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, ev.EventID, back.EventID)
	assert.Equal(t, "corr-1", back.CorrelationID)
}
