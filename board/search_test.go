package board

import (
	"strings"
	"testing"
)

func TestSearchURLPerBoard(t *testing.T) {
	// WHAT: Every registered board produces a URL with the keyword encoded.
	q := Query{Keyword: "go developer", Location: "Remote", Board: ""}
	for _, id := range NewRegistry().Boards() {
		q.Board = id
		u, err := SearchURL(q)
		if err != nil {
			t.Fatalf("%s: %v", id, err)
		}
		if !strings.HasPrefix(u, "https://") {
			t.Fatalf("%s: %q", id, u)
		}
		if !strings.Contains(u, "go+developer") && !strings.Contains(u, "go%20developer") {
			t.Fatalf("%s: keyword not encoded in %q", id, u)
		}
	}
}

func TestSearchURLRemoteFilter(t *testing.T) {
	// WHAT: A Remote location switches LinkedIn to its workplace-type filter.
	u, err := SearchURL(Query{Keyword: "golang", Location: "Remote", Board: "linkedin"})
	if err != nil {
		t.Fatalf("url: %v", err)
	}
	if !strings.Contains(u, "f_WT=2") {
		t.Fatalf("missing remote filter: %q", u)
	}
}

func TestSearchURLRejects(t *testing.T) {
	// WHAT: Unknown boards and empty keywords are errors, not panics.
	if _, err := SearchURL(Query{Keyword: "go", Board: "monster"}); err == nil {
		t.Fatal("unknown board accepted")
	}
	if _, err := SearchURL(Query{Keyword: "  ", Board: "indeed"}); err == nil {
		t.Fatal("empty keyword accepted")
	}
}
