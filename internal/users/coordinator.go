// Package users coordinates user writes across the document store, the geo
// store and the event bus.
//
// Every write follows the same order: begin a geo transaction, stage the
// point change, apply the document change, then commit the geo transaction.
// A failure before the commit rolls the geo side back. The document store has
// no transaction, so a geo commit failing after the document write leaves the
// document applied; nothing compensates for it. Events are published only
// after a successful commit and their delivery never affects the result.
package users

import (
	"context"
	"errors"
	"strings"

	"geousers/pkg/logger"
	"geousers/pkg/models"
	"geousers/pkg/storage"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	defaultCollection = "users"
	defaultTopic      = "user.events"
)

// EventPublisher hands an event to the bus without waiting for delivery.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, eventType models.EventType, userID string, data any, changes any)
}

// Options names the document collection and the event topic.
type Options struct {
	Collection string
	Topic      string
}

// Coordinator implements the user operations. A nil store makes every
// operation fail with ErrDependencyUnavailable.
type Coordinator struct {
	docs     storage.DocumentStore
	geo      storage.GeoStore
	pub      EventPublisher
	opts     Options
	log      *logger.Logger
	validate *validator.Validate
	newID    func() string
}

func NewCoordinator(docs storage.DocumentStore, geo storage.GeoStore, pub EventPublisher, opts Options, log *logger.Logger) *Coordinator {
	if opts.Collection == "" {
		opts.Collection = defaultCollection
	}
	if opts.Topic == "" {
		opts.Topic = defaultTopic
	}
	if pub == nil {
		pub = nopPublisher{}
	}
	return &Coordinator{
		docs:     docs,
		geo:      geo,
		pub:      pub,
		opts:     opts,
		log:      log.With("service", "UserCoordinator"),
		validate: validator.New(),
		newID:    uuid.NewString,
	}
}

// CreateUser stores a new user and returns its generated id.
func (c *Coordinator) CreateUser(ctx context.Context, payload map[string]any) (string, error) {
	const op = "users.CreateUser"
	if err := c.ready(op); err != nil {
		return "", err
	}

	ch, err := parseCreate(c.validate, payload)
	if err != nil {
		return "", invalid(op, err)
	}

	id := c.newID()
	err = c.inGeoTx(ctx, op, func(tx storage.GeoTx) error {
		if ch.location != nil {
			if err := tx.InsertPoint(ctx, id, ch.location.Latitude, ch.location.Longitude); err != nil {
				return err
			}
		}
		return c.docs.Upsert(ctx, c.opts.Collection, id, ch.fields)
	})
	if err != nil {
		c.log.Error("Failed to create user", "user_id", id, "error", err)
		return "", storageFailure(op, err)
	}

	c.log.Debug("User created", "user_id", id, "has_location", ch.location != nil)
	c.pub.Publish(ctx, c.opts.Topic, models.EventUserCreated, id, payload, nil)
	return id, nil
}

// GetUser returns the user's document merged with its location, if any.
func (c *Coordinator) GetUser(ctx context.Context, id string) (models.UserRecord, error) {
	const op = "users.GetUser"
	if err := c.ready(op); err != nil {
		return models.UserRecord{}, err
	}

	fields, found, err := c.docs.Get(ctx, c.opts.Collection, id)
	if err != nil {
		c.log.Error("Failed to read user document", "user_id", id, "error", err)
		return models.UserRecord{}, storageFailure(op, err)
	}
	if !found {
		return models.UserRecord{}, notFound(op, id)
	}

	rec := models.UserRecord{ID: id, Fields: fields}

	point, err := c.geo.FindPoint(ctx, id)
	if err != nil {
		c.log.Error("Failed to read user location", "user_id", id, "error", err)
		return models.UserRecord{}, storageFailure(op, err)
	}
	if point != nil {
		loc := point.Location()
		rec.Location = &loc
	}
	return rec, nil
}

// UpdateUser applies a partial update. A supplied location replaces the
// user's point, or creates it when the user has none.
func (c *Coordinator) UpdateUser(ctx context.Context, id string, payload map[string]any) error {
	const op = "users.UpdateUser"
	if err := c.ready(op); err != nil {
		return err
	}

	ch, err := parseUpdate(c.validate, payload)
	if err != nil {
		return invalid(op, err)
	}
	if err := c.mustExist(ctx, op, id); err != nil {
		return err
	}

	err = c.inGeoTx(ctx, op, func(tx storage.GeoTx) error {
		if ch.location != nil {
			rec, err := tx.FindPoint(ctx, id)
			if err != nil {
				return err
			}
			if rec != nil {
				err = tx.UpdatePoint(ctx, rec, ch.location.Latitude, ch.location.Longitude)
			} else {
				err = tx.InsertPoint(ctx, id, ch.location.Latitude, ch.location.Longitude)
			}
			if err != nil {
				return err
			}
		}
		if len(ch.fields) == 0 {
			return nil
		}
		return c.docs.Update(ctx, c.opts.Collection, id, ch.fields)
	})
	if err != nil {
		c.log.Error("Failed to update user", "user_id", id, "error", err)
		return storageFailure(op, err)
	}

	changes := ch.keys()
	c.log.Debug("User updated", "user_id", id, "changes", strings.Join(changes, ","))
	c.pub.Publish(ctx, c.opts.Topic, models.EventUserUpdated, id, payload, changes)
	return nil
}

// DeleteUser removes the user's point and document. Deleting an unknown id
// returns ErrNotFound, so a repeated delete fails.
func (c *Coordinator) DeleteUser(ctx context.Context, id string) error {
	const op = "users.DeleteUser"
	if err := c.ready(op); err != nil {
		return err
	}
	if err := c.mustExist(ctx, op, id); err != nil {
		return err
	}

	err := c.inGeoTx(ctx, op, func(tx storage.GeoTx) error {
		rec, err := tx.FindPoint(ctx, id)
		if err != nil {
			return err
		}
		if rec != nil {
			if err := tx.DeletePoint(ctx, rec); err != nil {
				return err
			}
		}
		return c.docs.Delete(ctx, c.opts.Collection, id)
	})
	if err != nil {
		c.log.Error("Failed to delete user", "user_id", id, "error", err)
		return storageFailure(op, err)
	}

	c.log.Debug("User deleted", "user_id", id)
	c.pub.Publish(ctx, c.opts.Topic, models.EventUserDeleted, id, map[string]any{"user_id": id}, nil)
	return nil
}

// inGeoTx runs stage inside a geo transaction and commits only when stage
// succeeds. Any error rolls the transaction back.
func (c *Coordinator) inGeoTx(ctx context.Context, op string, stage func(tx storage.GeoTx) error) error {
	tx, err := c.geo.Begin(ctx)
	if err != nil {
		return err
	}

	if err := stage(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			c.log.Warn("Geo rollback failed", "op", op, "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			c.log.Warn("Geo rollback failed", "op", op, "error", rbErr)
		}
		return err
	}
	return nil
}

func (c *Coordinator) mustExist(ctx context.Context, op, id string) error {
	_, found, err := c.docs.Get(ctx, c.opts.Collection, id)
	if err != nil {
		c.log.Error("Failed to read user document", "user_id", id, "error", err)
		return storageFailure(op, err)
	}
	if !found {
		return notFound(op, id)
	}
	return nil
}

func (c *Coordinator) ready(op string) error {
	var missing []string
	if c.docs == nil {
		missing = append(missing, "document store")
	}
	if c.geo == nil {
		missing = append(missing, "geo store")
	}
	if len(missing) == 0 {
		return nil
	}
	return &Error{
		Op:   op,
		Kind: ErrDependencyUnavailable,
		Err:  errors.New(strings.Join(missing, " and ") + " not initialized"),
	}
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, models.EventType, string, any, any) {}
