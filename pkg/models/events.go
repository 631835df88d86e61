package models

import "time"

// EventType represents the type of domain event.
type EventType string

const (
	EventUserCreated EventType = "UserCreated"
	EventUserUpdated EventType = "UserUpdated"
	EventUserDeleted EventType = "UserDeleted"
)

// ChangeEvent is the envelope published to the bus after every mutation.
type ChangeEvent struct {
	EventID       string    `json:"event_id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	EventType     EventType `json:"event_type"`
	Timestamp     time.Time `json:"timestamp"`
	UserID        string    `json:"user_id"`
	Data          any       `json:"data"`
	Changes       any       `json:"changes,omitempty"`
	SourceService string    `json:"source_service,omitempty"`
}

// RoutingKey is the bus routing key for an event type on a topic.
func RoutingKey(topic string, et EventType) string {
	return topic + "." + string(et)
}
