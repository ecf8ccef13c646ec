package idgen

import (
	"strings"
	"testing"
	"time"
)

func TestUUIDv7Unique(t *testing.T) {
	// WHAT: UUIDv7 generator produces distinct IDs.
	// WHY: Run IDs must never collide within a process.
	gen := UUIDv7()
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := gen()
		if seen[id] {
			t.Fatalf("duplicate id: %s", id)
		}
		seen[id] = true
	}
}

func TestPrefixed(t *testing.T) {
	// WHAT: Prefixed generators prepend the prefix verbatim.
	gen := Prefixed("run_", UUIDv7())
	id := gen()
	if !strings.HasPrefix(id, "run_") {
		t.Fatalf("id %q missing prefix", id)
	}
	if len(id) <= len("run_") {
		t.Fatal("prefixed id has no body")
	}
}

func TestSlug(t *testing.T) {
	// WHAT: Slug formats timestamps the way artifact files are named.
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	if got := Slug(ts); got != "20260314_092653" {
		t.Fatalf("slug: got %q", got)
	}
}
