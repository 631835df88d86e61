package rabbitmq

import (
	"geousers/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ConsumerConfig holds configuration for setting up a consumer.
type ConsumerConfig struct {
	QueueName    string
	DLQName      string
	RoutingKeys  []string
	ConsumerName string
}

// MessageHandler is a function that processes a delivered message.
// Return nil to ack, return error to nack (message goes to the DLQ).
type MessageHandler func(delivery amqp.Delivery) error

// SetupConsumer declares queues (main + DLQ), binds them, and starts consuming.
func SetupConsumer(conn *Connection, cfg ConsumerConfig, handler MessageHandler, log *logger.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return err
	}

	if err := declareExchange(ch); err != nil {
		return err
	}

	_, err = ch.QueueDeclare(
		cfg.DLQName,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return err
	}

	args := amqp.Table{
		"x-dead-letter-exchange":    "",          // default exchange
		"x-dead-letter-routing-key": cfg.DLQName, // route to DLQ
	}

	_, err = ch.QueueDeclare(
		cfg.QueueName,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		args,
	)
	if err != nil {
		return err
	}

	for _, key := range cfg.RoutingKeys {
		if err := ch.QueueBind(cfg.QueueName, key, ExchangeName, false, nil); err != nil {
			return err
		}
	}

	if err := ch.Qos(1, 0, false); err != nil {
		return err
	}

	msgs, err := ch.Consume(
		cfg.QueueName,
		cfg.ConsumerName,
		false, // auto-ack = false (manual ack)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return err
	}

	log = log.With("consumer", cfg.ConsumerName)
	go func() {
		for msg := range msgs {
			log.Debug("Received message", "routing_key", msg.RoutingKey, "correlation_id", msg.CorrelationId)

			if err := handler(msg); err != nil {
				log.Error("Error processing message, nacking to DLQ", "routing_key", msg.RoutingKey, "error", err)
				_ = msg.Nack(false, false)
			} else {
				_ = msg.Ack(false)
			}
		}
	}()

	log.Info("Consumer started", "queue", cfg.QueueName)
	return nil
}
