package fetch

import (
	"errors"
	"testing"
)

func TestInspectCleanPage(t *testing.T) {
	// WHAT: A normal job listing page passes inspection.
	body := []byte(`<html><head><title>Data Engineer - Indeed.com</title></head>
		<body><div id="jobDescriptionText">Build pipelines.</div></body></html>`)
	v := Inspect(200, "https://www.indeed.com/viewjob?jk=abc", body)
	if !v.Clean() {
		t.Fatalf("clean page flagged: %+v", v)
	}
}

func TestInspectChallengeTitle(t *testing.T) {
	// WHAT: The Cloudflare interstitial title is detected as a challenge.
	body := []byte(`<html><head><title>Just a moment...</title></head><body></body></html>`)
	v := Inspect(200, "https://www.indeed.com/viewjob?jk=abc", body)
	if !v.Challenge {
		t.Fatalf("challenge not detected: %+v", v)
	}
	if v.Reason != "title:just a moment..." {
		t.Fatalf("reason: got %q", v.Reason)
	}
}

func TestInspectChallengeURL(t *testing.T) {
	// WHAT: Mid-challenge redirect URLs are detected regardless of body.
	v := Inspect(200, "https://www.indeed.com/cdn-cgi/challenge-platform/h/b", nil)
	if !v.Challenge {
		t.Fatalf("challenge not detected: %+v", v)
	}
}

func TestInspectChallengeWidget(t *testing.T) {
	// WHAT: A 403 serving a Turnstile widget is a challenge, not a block.
	// WHY: Challenges are solvable; blocks are not. The escalation path
	// depends on telling them apart.
	body := []byte(`<html><body><div class="cf-turnstile" data-sitekey="0x4AAA"></div></body></html>`)
	v := Inspect(403, "https://www.glassdoor.com/Job/jobs.htm", body)
	if !v.Challenge {
		t.Fatalf("want challenge, got %+v", v)
	}
	if v.Blocked {
		t.Fatal("challenge should not also be a block")
	}
}

func TestInspectBlockedStatus(t *testing.T) {
	// WHAT: 403 and 429 with no challenge markers are plain blocks.
	for _, code := range []int{403, 429} {
		v := Inspect(code, "https://www.linkedin.com/jobs/search", []byte(`<html><body>Denied</body></html>`))
		if !v.Blocked {
			t.Fatalf("status %d: want blocked, got %+v", code, v)
		}
	}
}

func TestKindOfUnclassified(t *testing.T) {
	// WHAT: Errors without a Kind default to transient.
	// WHY: Unknown failures should get retries rather than poison a run.
	err := errors.New("connection reset by peer")
	if got := KindOf(err); got != KindTransient {
		t.Fatalf("kind: got %v, want transient", got)
	}
	if !IsRetryable(err) {
		t.Fatal("unclassified error should be retryable")
	}
}
