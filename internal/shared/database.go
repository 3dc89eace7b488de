package shared

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// InMemoryDatabase is the path that opens a private, non-persistent SQLite database.
const InMemoryDatabase = ":memory:"

// NewDatabase opens a connection to a SQLite database at the specified path with foreign keys enabled.
//
// In-memory databases are pinned to a single connection, since every new connection would
// otherwise see its own empty database.
func NewDatabase(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
	if path == InMemoryDatabase {
		dsn = "file::memory:?_foreign_keys=on"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path == InMemoryDatabase {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// ConfigureDatabase sets connection pool settings for the database.
//
// Zero values leave the driver defaults in place.
func ConfigureDatabase(db *sql.DB, cfg DatabaseConfig) {
	if cfg.Path == InMemoryDatabase {
		return
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
}
