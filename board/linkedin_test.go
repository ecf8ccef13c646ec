package board

import "testing"

const linkedinSearchFixture = `<!DOCTYPE html><html><body>
<ul class="jobs-search__results-list">
 <li>
  <div class="base-card job-search-card" data-entity-urn="urn:li:jobPosting:4012345678">
    <a class="base-card__full-link" href="https://www.linkedin.com/jobs/view/backend-engineer-4012345678"></a>
    <h3 class="base-search-card__title">Backend Engineer</h3>
    <h4 class="base-search-card__subtitle">Acme Corp</h4>
    <span class="job-search-card__location">Berlin, Germany</span>
    <time class="job-search-card__listdate" datetime="2026-08-20">1 week ago</time>
  </div>
 </li>
 <li>
  <div class="base-card" data-entity-urn="urn:li:jobPosting:4099999999">
    <h3 class="base-search-card__title">Platform Engineer</h3>
    <h4 class="base-search-card__subtitle"></h4>
  </div>
 </li>
</ul>
</body></html>`

func TestLinkedInExtract(t *testing.T) {
	// WHAT: Public search cards parse into Items; cards without a company are
	// dropped rather than emitted half-empty.
	items, err := NewLinkedIn().Extract([]byte(linkedinSearchFixture))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items: got %d, want 1", len(items))
	}
	it := items[0]
	if it.NaturalKey != "4012345678" {
		t.Fatalf("natural key: got %q", it.NaturalKey)
	}
	if it.DatePosted != "2026-08-20" {
		t.Fatalf("date posted: got %q", it.DatePosted)
	}
	if it.Link == "" {
		t.Fatal("link should be populated from the full-link anchor")
	}
}
