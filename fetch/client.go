package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
)

// Page is a fetched document.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Body       []byte
	Elapsed    time.Duration
	FetchedAt  time.Time
}

// ClientConfig configures the HTTP acquisition path.
type ClientConfig struct {
	// UserAgent sent on every request.
	UserAgent string

	// Timeout per request. Default: 30s.
	Timeout time.Duration

	// BodyCap limits how much of a response is read. Default: 10MB.
	BodyCap int64

	// Delay and Jitter space out consecutive requests. A delay of 0
	// disables pacing (tests).
	Delay  time.Duration
	Jitter time.Duration

	// BreakerThreshold is the consecutive blocked/challenged failure count
	// that opens the circuit. Default: 5.
	BreakerThreshold uint32

	// BreakerCooldown is how long the circuit stays open. Default: 60s.
	BreakerCooldown time.Duration

	// Proxy, when set, routes requests through the given proxy URL.
	Proxy *url.URL

	Logger *slog.Logger
}

func (c *ClientConfig) defaults() {
	if c.UserAgent == "" {
		c.UserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.BodyCap <= 0 {
		c.BodyCap = 10 << 20
	}
	if c.BreakerThreshold == 0 {
		c.BreakerThreshold = 5
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = 60 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Client fetches pages over plain HTTP. A circuit breaker watches for
// sustained blocking; once open, calls fail fast with KindBlocked instead of
// burning requests against a hostile edge.
type Client struct {
	cfg     ClientConfig
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client. The config timeout still applies
// per request via context.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient creates a Client.
func NewClient(cfg ClientConfig, opts ...Option) *Client {
	cfg.defaults()

	transport := http.DefaultTransport
	if cfg.Proxy != nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.Proxy = http.ProxyURL(cfg.Proxy)
		transport = t
	}

	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout, Transport: transport},
	}
	for _, o := range opts {
		o(c)
	}

	threshold := cfg.BreakerThreshold
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "fetch",
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// Transient and terminal failures are ours to handle; only
		// blocking and challenges count against the circuit.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			k := KindOf(err)
			return k != KindBlocked && k != KindChallenge
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			cfg.Logger.Warn("fetch: breaker state change",
				"from", from.String(), "to", to.String())
		},
	})
	return c
}

// Get fetches url and classifies the outcome. Blocked and challenged pages
// return an *Error alongside the page so callers can still inspect the body.
func (c *Client) Get(ctx context.Context, pageURL string) (*Page, error) {
	c.pace(ctx)

	res, err := c.breaker.Execute(func() (any, error) {
		return c.get(ctx, pageURL)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, newError(KindBlocked, "get", err)
		}
		if page, ok := res.(*Page); ok {
			return page, err
		}
		return nil, err
	}
	return res.(*Page), nil
}

func (c *Client) get(ctx context.Context, pageURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, newError(KindTerminal, "get", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, newError(KindTransient, "get", ctx.Err())
		}
		return nil, newError(KindTransient, "get", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.BodyCap))
	if err != nil {
		return nil, newError(KindTransient, "get", err)
	}

	page := &Page{
		URL:        pageURL,
		FinalURL:   resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Body:       body,
		Elapsed:    time.Since(start),
		FetchedAt:  start,
	}

	c.cfg.Logger.Debug("fetch: got page",
		"url", pageURL, "status", resp.StatusCode,
		"size", len(body), "elapsed", page.Elapsed)

	if v := Inspect(resp.StatusCode, page.FinalURL, body); !v.Clean() {
		kind := KindBlocked
		if v.Challenge {
			kind = KindChallenge
		}
		return page, newError(kind, "get", fmt.Errorf("page interference: %s", v.Reason))
	}

	switch {
	case resp.StatusCode >= 500:
		return page, newError(KindTransient, "get", fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return page, newError(KindTerminal, "get", fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return page, newError(KindTransient, "get", fmt.Errorf("status %d", resp.StatusCode))
	}

	return page, nil
}

// pace sleeps the configured delay plus jitter, respecting cancellation.
func (c *Client) pace(ctx context.Context) {
	if c.cfg.Delay <= 0 {
		return
	}
	d := c.cfg.Delay
	if c.cfg.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(c.cfg.Jitter)))
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
