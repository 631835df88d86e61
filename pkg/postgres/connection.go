package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"geousers/pkg/logger"

	_ "github.com/lib/pq"
)

// ignoredParams are DSN query parameters added by hosting providers that
// lib/pq would forward to the server as unknown runtime settings.
var ignoredParams = []string{"supa"}

// CleanURL strips provider-specific query parameters from a Postgres URL.
// Unparseable input is returned unchanged.
func CleanURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return raw
	}
	q := u.Query()
	for _, p := range ignoredParams {
		q.Del(p)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Connect establishes a connection to PostgreSQL, retrying up to attempts times.
func Connect(ctx context.Context, databaseURL string, attempts int, log *logger.Logger) (*sql.DB, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database url is empty")
	}
	if attempts < 1 {
		attempts = 1
	}

	var db *sql.DB
	var err error

	for i := 1; i <= attempts; i++ {
		db, err = sql.Open("postgres", CleanURL(databaseURL))
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = db.PingContext(pingCtx)
			cancel()
			if err == nil {
				log.Info("Connected to PostgreSQL", "attempt", i)
				return db, nil
			}
			_ = db.Close()
		}

		if i == attempts {
			break
		}
		log.Warn("Failed to connect to PostgreSQL, retrying in 2s", "attempt", i, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}

	return nil, fmt.Errorf("could not connect to database after %d attempts: %w", attempts, err)
}
