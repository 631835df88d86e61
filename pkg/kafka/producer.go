package kafka

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"geousers/pkg/events"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
)

// Config describes how to reach the cluster. When APIKey and APISecret are both
// set the producer authenticates with SASL/PLAIN over TLS.
type Config struct {
	Brokers   []string
	APIKey    string
	APISecret string
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Producer is an events.Sink writing one Kafka message per event, keyed by
// user id so a user's events stay on one partition.
type Producer struct {
	writer  messageWriter
	brokers []string
	dialer  *kafkago.Dialer
}

// NewProducer builds a producer. No connection is made until the first write.
func NewProducer(cfg Config) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no bootstrap servers configured")
	}

	mechanism, tlsCfg := security(cfg)

	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
		Transport: &kafkago.Transport{
			SASL: mechanism,
			TLS:  tlsCfg,
		},
	}

	return &Producer{
		writer:  w,
		brokers: cfg.Brokers,
		dialer: &kafkago.Dialer{
			Timeout:       5 * time.Second,
			SASLMechanism: mechanism,
			TLS:           tlsCfg,
		},
	}, nil
}

func security(cfg Config) (sasl.Mechanism, *tls.Config) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, nil
	}
	return plain.Mechanism{Username: cfg.APIKey, Password: cfg.APISecret},
		&tls.Config{MinVersion: tls.VersionTLS12}
}

// Send writes msg to msg.Topic.
func (p *Producer) Send(ctx context.Context, msg events.Message) error {
	km := kafkago.Message{
		Topic: msg.Topic,
		Key:   []byte(msg.Key),
		Value: msg.Body,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(msg.EventType)},
		},
	}
	if msg.EventID != "" {
		km.Headers = append(km.Headers, kafkago.Header{Key: "event_id", Value: []byte(msg.EventID)})
	}
	if msg.CorrelationID != "" {
		km.Headers = append(km.Headers, kafkago.Header{Key: "correlation_id", Value: []byte(msg.CorrelationID)})
	}

	if err := p.writer.WriteMessages(ctx, km); err != nil {
		return fmt.Errorf("kafka write to %s: %w", msg.Topic, err)
	}
	return nil
}

// Check dials the first reachable broker.
func (p *Producer) Check(ctx context.Context) error {
	var lastErr error
	for _, addr := range p.brokers {
		conn, err := p.dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		_ = conn.Close()
		return nil
	}
	return fmt.Errorf("kafka brokers unreachable: %w", lastErr)
}

// Close flushes pending writes.
func (p *Producer) Close() error {
	return p.writer.Close()
}
