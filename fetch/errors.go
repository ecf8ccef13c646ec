// Package fetch acquires pages from job boards. It covers three acquisition
// paths: a plain HTTP client (the cheap path), a stealth headless browser for
// boards that require JS, and a FlareSolverr sidecar for Cloudflare
// challenges. Every failure carries a Kind so callers can decide between
// retrying, skipping, or escalating.
package fetch

import (
	"errors"
	"fmt"
)

// Kind classifies a fetch failure for retry and escalation decisions.
type Kind int

const (
	// KindTransient covers timeouts, resets and 5xx. Worth retrying.
	KindTransient Kind = iota
	// KindTerminal covers malformed URLs, 404s and parse dead-ends.
	// Retrying cannot help.
	KindTerminal
	// KindBlocked means the remote refused us outright (403, 429, or an
	// open circuit). Retrying on the same route makes things worse.
	KindBlocked
	// KindChallenge means an interstitial (Cloudflare, captcha) stands
	// between us and the content. A solver may get through.
	KindChallenge
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindTerminal:
		return "terminal"
	case KindBlocked:
		return "blocked"
	case KindChallenge:
		return "challenge"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is a classified fetch failure.
type Error struct {
	Kind Kind
	Op   string // "get", "render", "solve"
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the Kind from err. Unclassified errors are treated as
// transient so the queue gives them the benefit of retries.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindTransient
}

// IsRetryable reports whether the failure is worth another attempt on the
// same route.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransient
}
