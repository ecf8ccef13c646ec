package dbopen

import (
	"testing"

	_ "modernc.org/sqlite"
)

func TestOpenMemoryAppliesPragmas(t *testing.T) {
	// WHAT: OpenMemory yields a usable database with foreign keys enabled.
	// WHY: Every store in the module assumes these pragmas.
	db := OpenMemory(t)

	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("pragma foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Fatalf("foreign_keys: got %d, want 1", fk)
	}
}

func TestWithSchema(t *testing.T) {
	// WHAT: Inline schemas run at open time.
	db := OpenMemory(t, WithSchema(`CREATE TABLE demo (id TEXT PRIMARY KEY)`))

	if _, err := db.Exec(`INSERT INTO demo (id) VALUES ('a')`); err != nil {
		t.Fatalf("insert into schema table: %v", err)
	}
}
