package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent(t *testing.T) {
	payload := []byte(`{
		"type": "checkout.session.completed",
		"data": {
			"object": {
				"id": "cs_test_123",
				"status": "complete",
				"payment_status": "paid",
				"amount_total": 26015,
				"currency": "eur",
				"metadata": {"order_id": "42", "order_code": "ABC123XYZ0"}
			}
		}
	}`)

	ev, err := ParseEvent(payload)
	require.NoError(t, err)

	assert.Equal(t, EventCheckoutCompleted, ev.Type)
	assert.Equal(t, "cs_test_123", ev.Session.ID)
	assert.True(t, ev.Session.Paid())
	assert.Equal(t, int64(26015), ev.Session.AmountTotal)
	assert.Equal(t, uint(42), ev.Session.OrderID)
	assert.Equal(t, "ABC123XYZ0", ev.Session.OrderCode)
}

func TestParseEvent_MissingMetadata(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"type":"payment_intent.succeeded","data":{"object":{"id":"pi_1"}}}`))
	require.NoError(t, err)
	assert.Equal(t, uint(0), ev.Session.OrderID)
	assert.False(t, ev.Session.Paid())
}

func TestParseEvent_InvalidJSON(t *testing.T) {
	_, err := ParseEvent([]byte(`not json`))
	assert.Error(t, err)
}
