// Package app builds the collaborators of the user service from
// configuration. Each dependency is initialized once at startup; one that
// fails is left nil, its error is kept for the health report, and the user
// operations report it as unavailable.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"geousers/internal/users"
	"geousers/pkg/config"
	"geousers/pkg/events"
	"geousers/pkg/firestore"
	"geousers/pkg/health"
	"geousers/pkg/kafka"
	"geousers/pkg/logger"
	"geousers/pkg/postgres"
	"geousers/pkg/rabbitmq"
	"geousers/pkg/redis"
	"geousers/pkg/storage"

	goredis "github.com/redis/go-redis/v9"
)

// Dependencies holds everything the API process needs.
type Dependencies struct {
	Docs      storage.DocumentStore
	Geo       storage.GeoStore
	Publisher *events.AsyncPublisher
	Health    *health.Service

	root    *logger.Logger
	log     *logger.Logger
	redis   *goredis.Client
	closers []func() error
}

// Build initializes every dependency selected by cfg. It does not fail:
// initialization errors are recorded on the health service.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger) *Dependencies {
	d := &Dependencies{
		Health: health.NewService(cfg.RequiredEnv()),
		root:   log,
		log:    log.With("service", "app"),
	}

	d.initGeo(ctx, cfg)
	d.initDocuments(ctx, cfg)
	sink := d.initBus(ctx, cfg)

	d.Publisher = events.NewAsyncPublisher(sink, log, events.Options{
		QueueSize:     cfg.EventQueueSize,
		SourceService: cfg.SourceService,
	})
	return d
}

// Coordinator returns the user coordinator over the built dependencies.
func (d *Dependencies) Coordinator(cfg *config.Config) *users.Coordinator {
	return users.NewCoordinator(d.Docs, d.Geo, d.Publisher, users.Options{
		Collection: cfg.UsersCollection,
		Topic:      cfg.EventsTopic,
	}, d.root)
}

func (d *Dependencies) initGeo(ctx context.Context, cfg *config.Config) {
	db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.DBConnectAttempts, d.log)
	d.Health.RecordInit("postgresql_engine", err)
	if err != nil {
		d.log.Error("PostgreSQL unavailable", "error", err)
		d.Health.AddChecker(health.Failed("postgresql_connection", err))
		d.Health.AddChecker(health.Failed("table_initialization", err))
		return
	}
	d.closers = append(d.closers, db.Close)

	geo := postgres.NewGeoStore(db)
	d.Geo = geo
	d.Health.AddChecker(health.NewChecker("postgresql_connection", geo.Ping))

	err = postgres.RunMigrations(ctx, db, "api")
	d.Health.RecordInit("postgresql_table", err)
	if err != nil {
		d.log.Error("Failed to initialize user_locations", "error", err)
	}
	d.Health.AddChecker(health.NewChecker("table_initialization", geo.TableReady))
}

func (d *Dependencies) initDocuments(ctx context.Context, cfg *config.Config) {
	switch cfg.DocumentStore {
	case config.DocumentStoreFirestore:
		store, err := newFirestore(ctx, cfg)
		d.Health.RecordInit("firestore", err)
		if err != nil {
			d.log.Error("Firestore unavailable", "error", err)
			d.Health.AddChecker(health.Failed("firestore", err))
			return
		}
		d.closers = append(d.closers, store.Close)
		d.Docs = store
		d.Health.AddChecker(health.NewChecker("firestore", func(ctx context.Context) error {
			return store.Ping(ctx, cfg.UsersCollection)
		}))

	case config.DocumentStoreRedis:
		client, err := d.redisClient(ctx, cfg)
		d.Health.RecordInit("redis", err)
		if err != nil {
			d.log.Error("Redis unavailable", "error", err)
			d.Health.AddChecker(health.Failed("redis", err))
			return
		}
		d.Docs = redis.NewDocumentStore(client)
		d.Health.AddChecker(health.NewChecker("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}))

	default:
		err := fmt.Errorf("unknown DOCUMENT_STORE %q", cfg.DocumentStore)
		d.Health.RecordInit("document_store", err)
		d.Health.AddChecker(health.Failed("document_store", err))
	}
}

func newFirestore(ctx context.Context, cfg *config.Config) (*firestore.Store, error) {
	creds, projectID, err := firestore.DecodeCredentials(cfg.FirebaseCredentialsB64)
	if err != nil {
		return nil, err
	}
	if cfg.FirestoreProjectID != "" {
		projectID = cfg.FirestoreProjectID
	}
	return firestore.New(ctx, creds, projectID)
}

// initBus returns the sink for the configured bus. When the bus cannot be
// reached events are logged instead; writes keep working.
func (d *Dependencies) initBus(ctx context.Context, cfg *config.Config) events.Sink {
	fallback := events.LogSink{Log: d.log}

	switch cfg.EventBus {
	case config.EventBusNone:
		return fallback

	case config.EventBusRabbitMQ:
		conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQURL, cfg.DBConnectAttempts, d.log)
		var pub *rabbitmq.Publisher
		if err == nil {
			pub, err = rabbitmq.NewPublisher(conn)
			if err != nil {
				_ = conn.Close()
			}
		}
		d.Health.RecordInit("rabbitmq", err)
		if err != nil {
			d.log.Error("RabbitMQ unavailable, events will not be published", "error", err)
			d.Health.AddChecker(health.Failed("rabbitmq", err))
			return fallback
		}
		d.closers = append(d.closers, pub.Close, conn.Close)
		d.Health.AddChecker(health.NewChecker("rabbitmq", conn.Check))
		return pub

	case config.EventBusKafka:
		producer, err := kafka.NewProducer(kafka.Config{
			Brokers:   cfg.KafkaBrokers,
			APIKey:    cfg.KafkaAPIKey,
			APISecret: cfg.KafkaAPISecret,
		})
		d.Health.RecordInit("kafka", err)
		if err != nil {
			d.log.Error("Kafka unavailable, events will not be published", "error", err)
			d.Health.AddChecker(health.Failed("kafka_producer", err))
			return fallback
		}
		d.closers = append(d.closers, producer.Close)
		d.Health.AddChecker(health.NewChecker("kafka_producer", producer.Check))
		return producer

	case config.EventBusRedis:
		client, err := d.redisClient(ctx, cfg)
		d.Health.RecordInit("redis_streams", err)
		if err != nil {
			d.log.Error("Redis unavailable, events will not be published", "error", err)
			d.Health.AddChecker(health.Failed("redis_streams", err))
			return fallback
		}
		d.Health.AddChecker(health.NewChecker("redis_streams", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}))
		return redis.NewStreamSink(client, int64(cfg.RedisStreamMaxLen))

	default:
		err := fmt.Errorf("unknown EVENT_BUS %q", cfg.EventBus)
		d.Health.RecordInit("event_bus", err)
		d.Health.AddChecker(health.Failed("event_bus", err))
		return fallback
	}
}

// redisClient shares one client between the document store and the stream
// sink.
func (d *Dependencies) redisClient(ctx context.Context, cfg *config.Config) (*goredis.Client, error) {
	if d.redis != nil {
		return d.redis, nil
	}
	client, err := redis.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, err
	}
	d.redis = client
	d.closers = append(d.closers, client.Close)
	return client, nil
}

// Close drains the publisher, then closes connections in reverse order.
func (d *Dependencies) Close(ctx context.Context) error {
	var errs []error
	if d.Publisher != nil {
		if err := d.Publisher.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain events: %w", err))
		}
	}
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil && !errors.Is(err, sql.ErrConnDone) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
