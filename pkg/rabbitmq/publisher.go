package rabbitmq

import (
	"context"
	"time"

	"geousers/pkg/events"
	"geousers/pkg/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

const ExchangeName = "events"

// Publisher publishes messages to the RabbitMQ topic exchange.
type Publisher struct {
	channel *amqp.Channel
}

// NewPublisher creates a new publisher and declares the topic exchange.
func NewPublisher(conn *Connection) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	if err := declareExchange(ch); err != nil {
		_ = ch.Close()
		return nil, err
	}

	return &Publisher{channel: ch}, nil
}

// Send publishes an event with routing key "<topic>.<EventType>".
func (p *Publisher) Send(ctx context.Context, msg events.Message) error {
	return p.channel.PublishWithContext(
		ctx,
		ExchangeName,
		models.RoutingKey(msg.Topic, models.EventType(msg.EventType)),
		false, // mandatory
		false, // immediate
		publishing(msg, time.Now()),
	)
}

// publishing maps msg onto AMQP properties. MessageId is the event id so
// that message-id dedupe never collapses two events for the same user.
func publishing(msg events.Message, now time.Time) amqp.Publishing {
	return amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: msg.CorrelationID,
		MessageId:     msg.EventID,
		Type:          msg.EventType,
		Body:          msg.Body,
		DeliveryMode:  amqp.Persistent,
		Timestamp:     now,
	}
}

// Close closes the publisher channel.
func (p *Publisher) Close() error {
	if p.channel != nil {
		return p.channel.Close()
	}
	return nil
}

func declareExchange(ch *amqp.Channel) error {
	return ch.ExchangeDeclare(
		ExchangeName,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
}
