package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"geousers/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Connection wraps an AMQP connection.
type Connection struct {
	URL  string
	Conn *amqp.Connection
}

// Connect establishes a connection to RabbitMQ, retrying up to attempts times.
func Connect(ctx context.Context, url string, attempts int, log *logger.Logger) (*Connection, error) {
	if attempts < 1 {
		attempts = 1
	}

	var conn *amqp.Connection
	var err error

	for i := 1; i <= attempts; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			log.Info("Connected to RabbitMQ", "attempt", i)
			return &Connection{URL: url, Conn: conn}, nil
		}
		if i == attempts {
			break
		}
		log.Warn("Failed to connect to RabbitMQ, retrying in 2s", "attempt", i, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}

	return nil, fmt.Errorf("could not connect to RabbitMQ after %d attempts: %w", attempts, err)
}

// Channel opens a new AMQP channel.
func (c *Connection) Channel() (*amqp.Channel, error) {
	return c.Conn.Channel()
}

// Check reports whether the connection is still open.
func (c *Connection) Check(_ context.Context) error {
	if c == nil || c.Conn == nil || c.Conn.IsClosed() {
		return errors.New("rabbitmq connection is closed")
	}
	return nil
}

// Close closes the connection.
func (c *Connection) Close() error {
	if c.Conn != nil {
		return c.Conn.Close()
	}
	return nil
}
