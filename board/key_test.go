package board

import (
	"strings"
	"testing"
)

func TestNaturalKeyWins(t *testing.T) {
	// WHAT: The board-provided id is the dedupe key of record.
	// WHY: Derived keys are a fallback, never used when a natural key exists.
	it := Item{Source: "indeed", NaturalKey: "abc123", Title: "Engineer", Company: "Acme", Location: "Remote"}
	if got := Key(it); got != "indeed|abc123" {
		t.Fatalf("key: got %q", got)
	}
}

func TestIndeedKeyFromLink(t *testing.T) {
	// WHAT: Indeed items without an explicit id recover it from the jk param.
	// WHY: Tracking URL churn must not defeat cross-run dedupe.
	it := Item{
		Source: "indeed",
		Link:   "https://www.indeed.com/rc/clk?jk=deadbeef01&fccid=xyz",
		Title:  "Engineer", Company: "Acme", Location: "Remote",
	}
	if got := Key(it); got != "indeed|deadbeef01" {
		t.Fatalf("key: got %q", got)
	}
}

func TestDerivedKeyStable(t *testing.T) {
	// WHAT: Items lacking any natural key hash normalized identity fields.
	a := Item{Source: "linkedin", Title: "  Engineer ", Company: "ACME", Location: "Berlin"}
	b := Item{Source: "linkedin", Title: "engineer", Company: "acme ", Location: " berlin"}
	if Key(a) != Key(b) {
		t.Fatal("normalization should make keys equal")
	}
	if len(Key(a)) != 64 {
		t.Fatalf("derived key should be sha256 hex, got len %d", len(Key(a)))
	}
}

func TestDerivedKeyDistinguishesSources(t *testing.T) {
	// WHAT: Same posting text on different boards yields different keys.
	// WHY: Dedupe is per-source identity; cross-board duplicates are a
	// scoring concern, not a fingerprint concern.
	a := Item{Source: "linkedin", Title: "Engineer", Company: "Acme", Location: "Berlin"}
	b := Item{Source: "glassdoor", Title: "Engineer", Company: "Acme", Location: "Berlin"}
	if Key(a) == Key(b) {
		t.Fatal("keys should differ by source")
	}
}

func TestEveryItemHasDerivedKey(t *testing.T) {
	// WHAT: DerivedKey exists even for empty items.
	if k := DerivedKey(Item{}); !strings.ContainsAny(k, "0123456789abcdef") || len(k) != 64 {
		t.Fatalf("derived key malformed: %q", k)
	}
}
