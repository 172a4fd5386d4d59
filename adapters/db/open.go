// Package db stores analysis runs with sqlx on postgres or sqlite.
package db

import (
	"context"
	"fmt"
	"time"

	"echostrata/internal/errors"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects with the given driver ("postgres" or "sqlite3") and pings
func Open(ctx context.Context, driver, url string) (*sqlx.DB, error) {
	switch driver {
	case "postgres", "sqlite3":
	default:
		return nil, errors.ConfigInvalid(fmt.Sprintf("unsupported database driver %q", driver))
	}

	db, err := sqlx.Open(driver, url)
	if err != nil {
		return nil, errors.DatabaseError("failed to open database", err)
	}
	if driver == "sqlite3" {
		// one writer; also keeps an in-memory database on a single connection
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
			db.Close()
			return nil, errors.DatabaseError("failed to enable foreign keys", err)
		}
	} else {
		db.SetMaxOpenConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.DatabaseError("failed to ping database", err)
	}
	return db, nil
}
