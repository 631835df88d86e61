package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestGetServiceMigrations_API(t *testing.T) {
	migrations := getServiceMigrations("api")
	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations for api, got %d", len(migrations))
	}
	if !strings.Contains(migrations[0], "postgis") {
		t.Errorf("expected postgis extension first, got %s", migrations[0])
	}
	if !strings.Contains(migrations[1], "geography(POINT, 4326)") {
		t.Errorf("expected geography column, got %s", migrations[1])
	}
}

func TestGetServiceMigrations_Analytics(t *testing.T) {
	migrations := getServiceMigrations("analytics")
	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations for analytics, got %d", len(migrations))
	}
}

func TestGetServiceMigrations_Default(t *testing.T) {
	migrations := getServiceMigrations("unknown")
	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations for unknown (default), got %d", len(migrations))
	}
}

func TestRunMigrations_StopsOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("CREATE EXTENSION IF NOT EXISTS postgis").
		WillReturnError(errors.New("permission denied"))

	err = RunMigrations(context.Background(), db, "api")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "permission denied") {
		t.Errorf("expected wrapped cause, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sqlmock expectations: %v", err)
	}
}

func TestRunMigrations_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("CREATE EXTENSION IF NOT EXISTS postgis").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS user_locations").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := RunMigrations(context.Background(), db, "api"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sqlmock expectations: %v", err)
	}
}
