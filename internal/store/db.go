package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB is the handle to the session's lythe.db. Safe for concurrent use;
// multi-statement writes go through explicit transactions.
type DB struct {
	*sql.DB
}

// Open opens (or creates) the database at path with WAL journaling, a busy
// timeout, and foreign keys on, and verifies the connection.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &DB{db}, nil
}
