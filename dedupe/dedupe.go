// Package dedupe persists fingerprints of previously seen items so repeated
// runs skip postings they already collected. Three backends share one
// contract: an append-only log file (the portable default), SQLite for
// single-host deployments, and Postgres when several collectors share a pool.
//
// The fingerprint set only grows. Removal is an operator action against the
// backing storage, never something the engine does on its own.
package dedupe

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable reports that the backing storage could not be opened or
// reached. Callers treat it as fatal for the run.
var ErrUnavailable = errors.New("dedupe: store unavailable")

// ErrPersist reports that a fingerprint could not be written durably. The
// caller can tell this apart from a duplicate, which is a silent no-op.
var ErrPersist = errors.New("dedupe: persist failed")

// Record is one stored fingerprint. Extra fields found in stored data are
// ignored on load for forward compatibility.
type Record struct {
	Key       string    `json:"key"`
	Source    string    `json:"source"`
	FirstSeen time.Time `json:"first_seen"`
}

// Store is the fingerprint set contract.
//
// Record is idempotent: recording a key already present is a no-op and must
// not error. Record followed by Seen on the same key returns true within the
// process. Implementations are safe for concurrent use.
type Store interface {
	Seen(key string) bool
	Record(ctx context.Context, key, source string, at time.Time) error
	Count() int
	Close() error
}
