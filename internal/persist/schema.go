// Package persist provides the persistent tier of the directive cache.
package persist

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/ansuz/internal/cache"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS global_cache (
	hash      TEXT PRIMARY KEY,
	entry     BLOB NOT NULL,
	stored_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS note_cache (
	note_id   TEXT NOT NULL,
	hash      TEXT NOT NULL,
	entry     BLOB NOT NULL,
	stored_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (note_id, hash)
);

CREATE INDEX IF NOT EXISTS idx_note_cache_note ON note_cache(note_id);
`

// SQLite stores cache entries in a SQLite database.
type SQLite struct {
	conn *sql.DB
}

var _ cache.Persistent = (*SQLite)(nil)

// Open opens (or creates) the database at dsn and applies the schema.
func Open(dsn string) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("persist: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("persist: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("persist: apply schema: %w", err)
	}
	return &SQLite{conn: conn}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.conn.Close()
}
