package redis

import (
	"context"
	"fmt"

	"geousers/pkg/events"

	goredis "github.com/redis/go-redis/v9"
)

// StreamSink appends events to a Redis stream named after the topic.
type StreamSink struct {
	client *goredis.Client
	maxLen int64
}

// NewStreamSink returns a sink that XADDs to the stream named by the
// message topic. A positive maxLen trims each stream to that many entries.
func NewStreamSink(client *goredis.Client, maxLen int64) *StreamSink {
	return &StreamSink{client: client, maxLen: maxLen}
}

func (s *StreamSink) Send(ctx context.Context, msg events.Message) error {
	args := &goredis.XAddArgs{
		Stream: msg.Topic,
		Values: map[string]any{
			"event":          msg.Body,
			"type":           msg.EventType,
			"key":            msg.Key,
			"event_id":       msg.EventID,
			"correlation_id": msg.CorrelationID,
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
	}

	if _, err := s.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}
