// Package analytics tallies user change events per day.
package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"geousers/pkg/logger"
	"geousers/pkg/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	seenSQL     = `SELECT EXISTS(SELECT 1 FROM idempotency_keys WHERE event_id = $1)`
	upsertSQL   = `INSERT INTO analytics_metrics (metric_date, event_type, count) VALUES ($1, $2, 1) ON CONFLICT (metric_date, event_type) DO UPDATE SET count = analytics_metrics.count + 1`
	markSeenSQL = `INSERT INTO idempotency_keys (event_id) VALUES ($1) ON CONFLICT DO NOTHING`
)

// Consumer handles analytics events.
type Consumer struct {
	DB      *sql.DB
	Log     *logger.Logger
	Timeout time.Duration
}

// NewConsumer creates a new analytics consumer.
func NewConsumer(db *sql.DB, log *logger.Logger) *Consumer {
	return &Consumer{DB: db, Log: log.With("service", "AnalyticsConsumer"), Timeout: 10 * time.Second}
}

// HandleMessage counts one change event. Events already seen are skipped, so
// redelivery does not double count.
func (c *Consumer) HandleMessage(delivery amqp.Delivery) error {
	var event models.ChangeEvent
	if err := json.Unmarshal(delivery.Body, &event); err != nil {
		c.Log.Error("Failed to unmarshal event", "correlation_id", delivery.CorrelationId, "error", err)
		return err
	}
	if event.EventID == "" || event.EventType == "" {
		return errors.New("event is missing event_id or event_type")
	}

	log := c.Log.With("event_id", event.EventID, "event_type", event.EventType,
		"user_id", event.UserID, "correlation_id", event.CorrelationID)
	log.Debug("Processing event")

	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin analytics transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var seen bool
	if err := tx.QueryRowContext(ctx, seenSQL, event.EventID).Scan(&seen); err != nil {
		log.Error("Error checking idempotency", "error", err)
		return err
	}
	if seen {
		log.Info("Duplicate event ignored")
		return nil
	}

	metricDate := event.Timestamp.UTC().Format("2006-01-02")
	if _, err := tx.ExecContext(ctx, upsertSQL, metricDate, string(event.EventType)); err != nil {
		log.Error("Error upserting metrics", "error", err)
		return err
	}
	if _, err := tx.ExecContext(ctx, markSeenSQL, event.EventID); err != nil {
		log.Error("Error recording idempotency key", "error", err)
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit analytics transaction: %w", err)
	}

	log.Info("Metrics updated", "date", metricDate)
	return nil
}
