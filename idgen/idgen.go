// Package idgen provides pluggable ID generation for chasse components.
//
// Constructors accept a Generator so the ID strategy is a startup-time
// decision: run IDs use UUIDv7 (time-sortable), artifact file slugs use the
// timestamped form.
package idgen

import (
	"time"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator producing RFC 9562 UUID v7 strings.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Default is the ecosystem-standard generator.
var Default = UUIDv7()

// New produces one ID with the default generator.
func New() string { return Default() }

// Prefixed wraps a Generator and prepends a fixed prefix to every ID.
// Used for type-scoped identifiers (e.g. "run_").
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Slug returns a filesystem-friendly timestamp slug, matching the run
// artifact naming scheme (run_metrics_20060102_150405.json).
func Slug(t time.Time) string {
	return t.Format("20060102_150405")
}
