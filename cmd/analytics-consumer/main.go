package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"geousers/internal/analytics"
	"geousers/pkg/config"
	"geousers/pkg/logger"
	"geousers/pkg/postgres"
	"geousers/pkg/rabbitmq"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log = log.With("app", "analytics-consumer")
	log.Info("Starting analytics-consumer...")

	ctx := context.Background()

	// Connect to PostgreSQL
	db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.DBConnectAttempts, log)
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL", "error", err)
	}
	defer db.Close()

	// Run migrations
	if err := postgres.RunMigrations(ctx, db, "analytics"); err != nil {
		log.Fatal("Failed to run migrations", "error", err)
	}

	// Connect to RabbitMQ
	rmqConn, err := rabbitmq.Connect(ctx, cfg.RabbitMQURL, cfg.DBConnectAttempts, log)
	if err != nil {
		log.Fatal("Failed to connect to RabbitMQ", "error", err)
	}
	defer rmqConn.Close()

	consumer := analytics.NewConsumer(db, log)

	consumerCfg := rabbitmq.ConsumerConfig{
		QueueName:    "analytics." + cfg.EventsTopic,
		DLQName:      "dlq.analytics." + cfg.EventsTopic,
		RoutingKeys:  []string{cfg.EventsTopic + ".*"},
		ConsumerName: "analytics-consumer",
	}

	if err := rabbitmq.SetupConsumer(rmqConn, consumerCfg, consumer.HandleMessage, log); err != nil {
		log.Fatal("Failed to setup consumer", "error", err)
	}

	log.Info("Consumer is running. Waiting for messages...")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")
}
