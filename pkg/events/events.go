// Package events publishes user change events to a message bus on a
// best-effort, at-most-once basis.
package events

import "context"

// Message is a serialized event ready for a bus. Key is the user id and
// orders a user's events; EventID is unique per event.
type Message struct {
	Topic         string
	Key           string
	EventID       string
	EventType     string
	CorrelationID string
	Body          []byte
}

// Sink delivers a single message to a bus. Implementations need not be safe
// for concurrent use: AsyncPublisher calls Send from one goroutine.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ctx context.Context, msg Message) error

func (f SinkFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }
