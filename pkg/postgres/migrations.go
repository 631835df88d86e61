package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// RunMigrations executes the idempotent bootstrap statements for a service.
func RunMigrations(ctx context.Context, db *sql.DB, service string) error {
	for _, m := range getServiceMigrations(service) {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("run %s migrations: %w", service, err)
		}
	}
	return nil
}

func getServiceMigrations(service string) []string {
	idempotency := `CREATE TABLE IF NOT EXISTS idempotency_keys (
			event_id VARCHAR(36) PRIMARY KEY,
			processed_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`

	switch service {
	case "analytics":
		return []string{
			idempotency,
			`CREATE TABLE IF NOT EXISTS analytics_metrics (
				id SERIAL PRIMARY KEY,
				metric_date DATE NOT NULL,
				event_type VARCHAR(50) NOT NULL,
				count INTEGER NOT NULL DEFAULT 0,
				UNIQUE(metric_date, event_type)
			)`,
		}
	default:
		return []string{
			`CREATE EXTENSION IF NOT EXISTS postgis`,
			`CREATE TABLE IF NOT EXISTS user_locations (
				user_id VARCHAR(64) PRIMARY KEY,
				location geography(POINT, 4326) NOT NULL
			)`,
		}
	}
}
