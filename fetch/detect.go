package fetch

import (
	"bytes"
	"strings"
)

// Verdict is the outcome of inspecting a fetched page for interference.
type Verdict struct {
	Blocked   bool
	Challenge bool
	Reason    string
}

// Clean reports whether the page reached real content.
func (v Verdict) Clean() bool { return !v.Blocked && !v.Challenge }

// Title markers shown by Cloudflare's interstitial pages.
var challengeTitles = []string{
	"just a moment...",
	"attention required! | cloudflare",
}

// URL fragments that only appear mid-challenge.
var challengeURLMarkers = []string{
	"__cf_chl",
	"/cdn-cgi/",
	"challenges.cloudflare.com",
	"cf-challenge",
}

// Body fragments from challenge widgets and verification walls.
var challengeBodyMarkers = []string{
	"cf-challenge-running",
	"challenge-form",
	"challenges.cloudflare.com",
	"hcaptcha.com",
	"g-recaptcha",
	"cf-turnstile",
	"data-sitekey",
	"verify you are human",
	"additional verification required",
}

// Inspect classifies a response as clean, blocked, or challenged.
// Detection order matters: a 403 serving a Turnstile widget is a challenge
// (solvable), not a block, so body markers are checked before status codes.
func Inspect(statusCode int, finalURL string, body []byte) Verdict {
	url := strings.ToLower(finalURL)
	for _, m := range challengeURLMarkers {
		if strings.Contains(url, m) {
			return Verdict{Challenge: true, Reason: "url:" + m}
		}
	}

	if title := pageTitle(body); title != "" {
		for _, m := range challengeTitles {
			if strings.Contains(title, m) {
				return Verdict{Challenge: true, Reason: "title:" + m}
			}
		}
	}

	lower := bytes.ToLower(body)
	for _, m := range challengeBodyMarkers {
		if bytes.Contains(lower, []byte(m)) {
			return Verdict{Challenge: true, Reason: "body:" + m}
		}
	}

	switch statusCode {
	case 403, 429:
		return Verdict{Blocked: true, Reason: "status:" + statusText(statusCode)}
	}

	return Verdict{}
}

func statusText(code int) string {
	switch code {
	case 403:
		return "403"
	case 429:
		return "429"
	default:
		return "unknown"
	}
}

// pageTitle pulls the <title> text without a full parse. Challenge pages are
// tiny, so a byte scan over the first chunk is enough.
func pageTitle(body []byte) string {
	const window = 4096
	head := body
	if len(head) > window {
		head = head[:window]
	}
	lower := bytes.ToLower(head)

	start := bytes.Index(lower, []byte("<title"))
	if start < 0 {
		return ""
	}
	open := bytes.IndexByte(lower[start:], '>')
	if open < 0 {
		return ""
	}
	start += open + 1
	end := bytes.Index(lower[start:], []byte("</title"))
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(string(lower[start : start+end]))
}
