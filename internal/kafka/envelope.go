package kafka

import (
	"encoding/json"
	"time"
)

const TopicHoldEvents = "holds.events"

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // reservation id
	Payload       json.RawMessage `json:"payload"`
}

type ReservationPayload struct {
	ReservationID string    `json:"reservation_id,omitempty"`
	ItemID        int       `json:"item_id"`
	ExpiresAt     time.Time `json:"expires_at,omitempty"`
	Reason        string    `json:"reason,omitempty"` // cancelled | checkout | expired
}
