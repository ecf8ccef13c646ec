package board

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// Key returns the dedupe key of record for an item. When the board provided a
// natural key it wins; the derived key is a fallback that survives tracking
// URL churn. Exactly one derived key exists for any item.
func Key(it Item) string {
	if nk := NaturalKey(it); nk != "" {
		return nk
	}
	return DerivedKey(it)
}

// NaturalKey returns the board-scoped natural key, or "" when the board did
// not provide one. Indeed postings without an explicit external id still carry
// one in the link's jk query parameter.
func NaturalKey(it Item) string {
	id := strings.TrimSpace(it.NaturalKey)
	if id == "" && it.Source == "indeed" {
		id = indeedJK(it.Link)
	}
	if id == "" {
		return ""
	}
	return norm(it.Source) + "|" + id
}

// DerivedKey hashes the normalized identity fields. Stable across runs and
// across link rewrites.
func DerivedKey(it Item) string {
	base := norm(it.Source) + "|" + norm(it.Title) + "|" + norm(it.Company) + "|" + norm(it.Location)
	sum := sha256.Sum256([]byte(base))
	return hex.EncodeToString(sum[:])
}

func norm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// indeedJK pulls the posting id from an Indeed link's jk parameter.
func indeedJK(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(u.Query().Get("jk"))
}
