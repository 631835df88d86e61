package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"geousers/pkg/geo"
	"geousers/pkg/models"
	"geousers/pkg/storage"
)

const (
	insertPointSQL = `INSERT INTO user_locations (user_id, location) VALUES ($1, ST_GeogFromText($2))`
	selectPointSQL = `SELECT user_id, ST_AsText(location) FROM user_locations WHERE user_id = $1`
	lockPointSQL   = selectPointSQL + ` FOR UPDATE`
	updatePointSQL = `UPDATE user_locations SET location = ST_GeogFromText($2) WHERE user_id = $1`
	deletePointSQL = `DELETE FROM user_locations WHERE user_id = $1`
	healthCheckSQL = `SELECT 1`
	tableExistsSQL = `SELECT to_regclass('public.user_locations') IS NOT NULL`
)

// GeoStore keeps one PostGIS geography point per user in user_locations.
type GeoStore struct {
	DB *sql.DB
}

// NewGeoStore creates a GeoStore on a shared connection pool.
func NewGeoStore(db *sql.DB) *GeoStore {
	return &GeoStore{DB: db}
}

// Begin opens a transaction. Callers must Commit or Rollback it.
func (s *GeoStore) Begin(ctx context.Context) (storage.GeoTx, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin geo transaction: %w", err)
	}
	return &geoTx{tx: tx}, nil
}

// FindPoint reads a user's point outside of any transaction.
func (s *GeoStore) FindPoint(ctx context.Context, userID string) (*models.LocationPoint, error) {
	return scanPoint(s.DB.QueryRowContext(ctx, selectPointSQL, userID))
}

// Ping runs a trivial query, used by the health report.
func (s *GeoStore) Ping(ctx context.Context) error {
	var one int
	if err := s.DB.QueryRowContext(ctx, healthCheckSQL).Scan(&one); err != nil {
		return fmt.Errorf("postgres query: %w", err)
	}
	return nil
}

// TableReady reports whether the user_locations table exists.
func (s *GeoStore) TableReady(ctx context.Context) error {
	var ok bool
	if err := s.DB.QueryRowContext(ctx, tableExistsSQL).Scan(&ok); err != nil {
		return fmt.Errorf("check user_locations: %w", err)
	}
	if !ok {
		return errors.New("table user_locations does not exist")
	}
	return nil
}

type geoTx struct {
	tx *sql.Tx
}

func (t *geoTx) InsertPoint(ctx context.Context, userID string, lat, lon float64) error {
	point, err := geo.EncodeEWKT(lat, lon)
	if err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(ctx, insertPointSQL, userID, point); err != nil {
		return fmt.Errorf("insert location for %s: %w", userID, err)
	}
	return nil
}

func (t *geoTx) FindPoint(ctx context.Context, userID string) (*models.LocationPoint, error) {
	return scanPoint(t.tx.QueryRowContext(ctx, lockPointSQL, userID))
}

// UpdatePoint rewrites the stored point and mirrors the change onto rec.
func (t *geoTx) UpdatePoint(ctx context.Context, rec *models.LocationPoint, lat, lon float64) error {
	point, err := geo.EncodeEWKT(lat, lon)
	if err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(ctx, updatePointSQL, rec.UserID, point); err != nil {
		return fmt.Errorf("update location for %s: %w", rec.UserID, err)
	}
	rec.Latitude, rec.Longitude = lat, lon
	return nil
}

func (t *geoTx) DeletePoint(ctx context.Context, rec *models.LocationPoint) error {
	if _, err := t.tx.ExecContext(ctx, deletePointSQL, rec.UserID); err != nil {
		return fmt.Errorf("delete location for %s: %w", rec.UserID, err)
	}
	return nil
}

func (t *geoTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit geo transaction: %w", err)
	}
	return nil
}

func (t *geoTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback geo transaction: %w", err)
	}
	return nil
}

func scanPoint(row *sql.Row) (*models.LocationPoint, error) {
	var userID, text string
	err := row.Scan(&userID, &text)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query location: %w", err)
	}

	lat, lon, err := geo.DecodePoint(text)
	if err != nil {
		return nil, err
	}
	return &models.LocationPoint{UserID: userID, Latitude: lat, Longitude: lon}, nil
}
