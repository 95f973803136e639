package domain

import "time"

type EventType string

const (
	EventCreated       EventType = "created"
	EventStatusChanged EventType = "status_changed"
	EventStageAdvanced EventType = "stage_advanced"
)

// DeliveryEvent is one entry of a delivery request's append-only history.
// It is also the payload published on the delivery.events topic.
type DeliveryEvent struct {
	ID         string    `json:"id"`
	DeliveryID string    `json:"delivery_id"`
	CustomerID string    `json:"customer_id"`
	Type       EventType `json:"type"`
	From       string    `json:"from,omitempty"`
	To         string    `json:"to"`
	OccurredAt time.Time `json:"occurred_at"`
}
