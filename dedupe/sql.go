package dedupe

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/hazyhaar/chasse/dbopen"
)

// Schema is the fingerprint table for the SQLite backend.
const Schema = `
CREATE TABLE IF NOT EXISTS fingerprints (
    key        TEXT PRIMARY KEY,
    source     TEXT NOT NULL DEFAULT '',
    first_seen INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fingerprints_source ON fingerprints(source);
`

// SQLStore keeps fingerprints in SQLite. Reads are served from an in-memory
// set preloaded at open; writes go through INSERT OR IGNORE so replays of the
// same key are no-ops at the storage layer too.
type SQLStore struct {
	mu   sync.RWMutex
	seen map[string]bool
	db   *sql.DB
}

// OpenSQL opens (creating if needed) the SQLite fingerprint store at path.
func OpenSQL(path string) (*SQLStore, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(Schema))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return NewSQLStore(db)
}

// NewSQLStore wraps an already-opened database. The schema must be applied.
func NewSQLStore(db *sql.DB) (*SQLStore, error) {
	s := &SQLStore{seen: make(map[string]bool), db: db}

	rows, err := db.Query(`SELECT key FROM fingerprints`)
	if err != nil {
		return nil, fmt.Errorf("%w: load: %v", ErrUnavailable, err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", ErrUnavailable, err)
		}
		s.seen[key] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: load: %v", ErrUnavailable, err)
	}
	return s, nil
}

// Seen reports whether the key was recorded in any run.
func (s *SQLStore) Seen(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seen[key]
}

// Record inserts the fingerprint if absent. Write failures are ErrPersist.
func (s *SQLStore) Record(ctx context.Context, key, source string, at time.Time) error {
	if key == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seen[key] {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO fingerprints (key, source, first_seen) VALUES (?, ?, ?)`,
		key, source, at.UnixMilli())
	if err != nil {
		return fmt.Errorf("%w: insert: %v", ErrPersist, err)
	}
	s.seen[key] = true
	return nil
}

// Count returns the number of distinct fingerprints.
func (s *SQLStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
