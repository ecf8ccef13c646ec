package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// BrowserConfig configures the headless acquisition path.
type BrowserConfig struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string

	// NavTimeout bounds navigation plus load wait. Default: 30s.
	NavTimeout time.Duration

	// RecycleAfter is the maximum number of pages rendered before the
	// Chrome process is replaced. Boards fingerprint long-lived browser
	// sessions, so a fresh process resets that state. Default: 50.
	RecycleAfter int

	Logger *slog.Logger
}

func (c *BrowserConfig) defaults() {
	if c.NavTimeout <= 0 {
		c.NavTimeout = 30 * time.Second
	}
	if c.RecycleAfter <= 0 {
		c.RecycleAfter = 50
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Browser renders pages through stealth Chrome. It owns the Chrome process
// lifecycle: lazy launch on first render, counted recycling, explicit
// Recycle for escalation decisions.
type Browser struct {
	cfg BrowserConfig

	mu       sync.Mutex
	browser  *rod.Browser
	lnch     *launcher.Launcher
	rendered int
	closed   bool
}

// NewBrowser creates a Browser. Chrome launches on the first Render call.
func NewBrowser(cfg BrowserConfig) *Browser {
	cfg.defaults()
	return &Browser{cfg: cfg}
}

// Render navigates to pageURL in a stealth tab and returns the settled DOM.
// Failures launching or driving Chrome are transient; interference found in
// the rendered document is classified like the HTTP path.
func (b *Browser) Render(ctx context.Context, pageURL string) (*Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, newError(KindTerminal, "render", fmt.Errorf("browser closed"))
	}
	if err := b.ensureLocked(); err != nil {
		return nil, newError(KindTransient, "render", err)
	}

	start := time.Now()
	page, err := stealth.Page(b.browser)
	if err != nil {
		return nil, newError(KindTransient, "render", fmt.Errorf("create tab: %w", err))
	}
	defer page.Close()

	navCtx, cancel := context.WithTimeout(ctx, b.cfg.NavTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		return nil, newError(KindTransient, "render", fmt.Errorf("navigate %s: %w", pageURL, err))
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		b.cfg.Logger.Warn("fetch: wait load timeout", "url", pageURL, "error", err)
	}

	res, err := page.Context(navCtx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, newError(KindTransient, "render", fmt.Errorf("serialise DOM: %w", err))
	}
	body := []byte(res.Value.Str())

	info, err := page.Info()
	finalURL := pageURL
	if err == nil && info.URL != "" {
		finalURL = info.URL
	}

	out := &Page{
		URL:       pageURL,
		FinalURL:  finalURL,
		Body:      body,
		Elapsed:   time.Since(start),
		FetchedAt: start,
	}

	b.rendered++
	if b.rendered >= b.cfg.RecycleAfter {
		b.cfg.Logger.Info("fetch: browser page budget reached", "rendered", b.rendered)
		if err := b.recycleLocked(); err != nil {
			b.cfg.Logger.Error("fetch: browser recycle failed", "error", err)
		}
	}

	if v := Inspect(0, finalURL, body); !v.Clean() {
		kind := KindBlocked
		if v.Challenge {
			kind = KindChallenge
		}
		return out, newError(kind, "render", fmt.Errorf("page interference: %s", v.Reason))
	}
	return out, nil
}

// SetCookies installs cookies (typically a solver's clearance cookies) on the
// running browser so subsequent renders reuse the solved session.
func (b *Browser) SetCookies(cookies []Cookie) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ensureLocked(); err != nil {
		return newError(KindTransient, "render", err)
	}
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}
		if c.Expires > 0 {
			p.Expires = proto.TimeSinceEpoch(c.Expires)
		}
		params = append(params, p)
	}
	if err := b.browser.SetCookies(params); err != nil {
		return newError(KindTransient, "render", fmt.Errorf("set cookies: %w", err))
	}
	return nil
}

// Recycle kills Chrome and relaunches it, resetting browser-side state.
func (b *Browser) Recycle() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("fetch: browser closed")
	}
	if b.browser == nil {
		return nil
	}
	return b.recycleLocked()
}

// Close shuts down Chrome.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.cleanupLocked()
	return nil
}

func (b *Browser) ensureLocked() error {
	if b.browser != nil {
		return nil
	}

	var wsURL string
	if b.cfg.RemoteURL != "" {
		wsURL = b.cfg.RemoteURL
		b.cfg.Logger.Info("fetch: connecting to remote chrome", "url", wsURL)
	} else {
		l := launcher.New().
			Headless(true).
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("launch chrome: %w", err)
		}
		wsURL = u
		b.lnch = l
		b.cfg.Logger.Info("fetch: launched local chrome")
	}

	br := rod.New().ControlURL(wsURL)
	if err := br.Connect(); err != nil {
		b.cleanupLocked()
		return fmt.Errorf("connect chrome: %w", err)
	}
	b.browser = br
	b.rendered = 0
	return nil
}

func (b *Browser) recycleLocked() error {
	b.cleanupLocked()
	return b.ensureLocked()
}

func (b *Browser) cleanupLocked() {
	if b.browser != nil {
		b.browser.Close()
		b.browser = nil
	}
	if b.lnch != nil {
		b.lnch.Cleanup()
		b.lnch = nil
	}
	b.rendered = 0
}
