package payment

import (
	"encoding/json"
	"fmt"
)

// EventCheckoutCompleted is the only webhook event type that confirms an
// order; everything else is acknowledged and ignored.
const EventCheckoutCompleted = "checkout.session.completed"

// Event is an inbound gateway webhook payload. Metadata echoes the order
// identity attached when the session was created.
type Event struct {
	Type    string
	Session Session
}

type rawEvent struct {
	Type string `json:"type"`
	Data struct {
		Object stripeSession `json:"object"`
	} `json:"data"`
}

func ParseEvent(payload []byte) (*Event, error) {
	var raw rawEvent
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("decode webhook payload: %w", err)
	}

	return &Event{
		Type:    raw.Type,
		Session: *raw.Data.Object.toSession(),
	}, nil
}
