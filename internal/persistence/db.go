// Package persistence stores articles in PostgreSQL or SQLite
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"           // Postgres driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// sqlitePragmas are appended to SQLite DSNs that do not set their own options
const sqlitePragmas = "_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

// Open opens and pings a database for driver
func Open(driver, dsn string) (*sql.DB, error) {
	if _, err := placeholder(driver); err != nil {
		return nil, err
	}
	if dsn == "" {
		return nil, fmt.Errorf("database DSN is required")
	}
	if driver == DriverSQLite && !strings.Contains(dsn, "?") {
		dsn += "?" + sqlitePragmas
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == DriverPostgres {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	} else {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(4)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func placeholder(driver string) (sq.PlaceholderFormat, error) {
	switch driver {
	case DriverPostgres:
		return sq.Dollar, nil
	case DriverSQLite:
		return sq.Question, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}
