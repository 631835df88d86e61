// Package storage declares the capabilities the user service needs from its
// backing stores. Implementations live in pkg/firestore, pkg/redis and
// pkg/postgres.
package storage

import (
	"context"

	"geousers/pkg/models"
)

// DocumentStore is a keyed, schemaless record store. Upsert and Delete are
// atomic per document.
type DocumentStore interface {
	// Upsert replaces the document, stamping created_at and updated_at.
	Upsert(ctx context.Context, collection, id string, fields map[string]any) error
	// Get returns found=false when the document does not exist.
	Get(ctx context.Context, collection, id string) (fields map[string]any, found bool, err error)
	// Update merges fields into an existing document and stamps updated_at.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Delete(ctx context.Context, collection, id string) error
}

// GeoStore holds at most one location point per user.
type GeoStore interface {
	Begin(ctx context.Context) (GeoTx, error)
	// FindPoint returns nil when the user has no point.
	FindPoint(ctx context.Context, userID string) (*models.LocationPoint, error)
}

// GeoTx stages point changes until Commit. After Commit or Rollback the
// transaction must not be used again; Rollback after Commit is a no-op.
type GeoTx interface {
	InsertPoint(ctx context.Context, userID string, lat, lon float64) error
	FindPoint(ctx context.Context, userID string) (*models.LocationPoint, error)
	UpdatePoint(ctx context.Context, rec *models.LocationPoint, lat, lon float64) error
	DeletePoint(ctx context.Context, rec *models.LocationPoint) error
	Commit() error
	Rollback() error
}
