package dedupe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS fingerprints (
    key        TEXT PRIMARY KEY,
    source     TEXT NOT NULL DEFAULT '',
    first_seen TIMESTAMPTZ NOT NULL
)`

// PGStore keeps fingerprints in Postgres, for deployments where several
// collector hosts share one dedupe set. Same read-from-memory discipline as
// the SQLite backend; the preload reflects the set as of open, which is the
// same cross-process guarantee the log backend gives.
type PGStore struct {
	mu   sync.RWMutex
	seen map[string]bool
	pool *pgxpool.Pool
}

// OpenPG connects to Postgres, applies the schema and preloads the set.
func OpenPG(ctx context.Context, dsn string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %v", ErrUnavailable, err)
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: schema: %v", ErrUnavailable, err)
	}

	s := &PGStore{seen: make(map[string]bool), pool: pool}
	rows, err := pool.Query(ctx, `SELECT key FROM fingerprints`)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: load: %v", ErrUnavailable, err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			pool.Close()
			return nil, fmt.Errorf("%w: scan: %v", ErrUnavailable, err)
		}
		s.seen[key] = true
	}
	if err := rows.Err(); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: load: %v", ErrUnavailable, err)
	}
	return s, nil
}

// Seen reports whether the key was recorded in any run.
func (s *PGStore) Seen(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seen[key]
}

// Record inserts the fingerprint if absent. Write failures are ErrPersist.
func (s *PGStore) Record(ctx context.Context, key, source string, at time.Time) error {
	if key == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seen[key] {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO fingerprints (key, source, first_seen) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO NOTHING`,
		key, source, at.UTC())
	if err != nil {
		return fmt.Errorf("%w: insert: %v", ErrPersist, err)
	}
	s.seen[key] = true
	return nil
}

// Count returns the number of distinct fingerprints known to this process.
func (s *PGStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}

// Close releases the connection pool.
func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}
