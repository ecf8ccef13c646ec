package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Cookie is a clearance cookie returned by the solver, in a form both the
// HTTP client and the browser can install.
type Cookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain"`
	Path     string `json:"path"`
	Expires  int64  `json:"expiry"`
	HTTPOnly bool   `json:"httpOnly"`
	Secure   bool   `json:"secure"`
}

// Solution is the result of a solved challenge.
type Solution struct {
	Cookies   []Cookie
	UserAgent string
	Body      []byte
	Status    int
}

// SolverConfig configures the FlareSolverr sidecar client.
type SolverConfig struct {
	// URL of the FlareSolverr instance. Default: http://localhost:8191.
	URL string

	// Timeout is the challenge-solving budget. Default: 60s.
	Timeout time.Duration

	Logger *slog.Logger
}

func (c *SolverConfig) defaults() {
	if c.URL == "" {
		c.URL = "http://localhost:8191"
	}
	c.URL = strings.TrimRight(c.URL, "/")
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Solver drives a FlareSolverr sidecar. The sidecar is optional
// infrastructure: callers must tolerate Available returning false and plan
// around it.
type Solver struct {
	cfg  SolverConfig
	http *http.Client

	mu        sync.Mutex
	checked   bool
	available bool
}

// NewSolver creates a Solver client.
func NewSolver(cfg SolverConfig) *Solver {
	cfg.defaults()
	return &Solver{
		cfg: cfg,
		// Solving a challenge holds the connection for the whole budget.
		http: &http.Client{Timeout: cfg.Timeout + 10*time.Second},
	}
}

// Available probes the sidecar's health endpoint. The verdict is cached for
// the lifetime of the Solver; a sidecar that was down at startup stays
// unavailable for the run.
func (s *Solver) Available(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.checked {
		return s.available
	}
	s.checked = true

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, s.cfg.URL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := s.http.Do(req)
	if err != nil {
		s.cfg.Logger.Debug("fetch: solver health probe failed", "error", err)
		return false
	}
	defer resp.Body.Close()

	var health struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return false
	}
	s.available = health.Status == "ok"
	return s.available
}

type solverRequest struct {
	Cmd        string       `json:"cmd"`
	URL        string       `json:"url"`
	MaxTimeout int64        `json:"maxTimeout"`
	Proxy      *solverProxy `json:"proxy,omitempty"`
}

type solverProxy struct {
	URL string `json:"url"`
}

type solverResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Solution struct {
		URL       string   `json:"url"`
		Status    int      `json:"status"`
		Cookies   []Cookie `json:"cookies"`
		UserAgent string   `json:"userAgent"`
		Response  string   `json:"response"`
	} `json:"solution"`
}

// Solve asks the sidecar to clear the challenge guarding targetURL.
// proxyURL, when non-empty, makes the sidecar exit through the same route the
// collector uses, so the clearance cookies bind to the right IP.
func (s *Solver) Solve(ctx context.Context, targetURL, proxyURL string) (*Solution, error) {
	if targetURL == "" {
		return nil, newError(KindTerminal, "solve", fmt.Errorf("empty target url"))
	}
	if !s.Available(ctx) {
		return nil, newError(KindTransient, "solve", fmt.Errorf("solver unavailable"))
	}

	payload := solverRequest{
		Cmd:        "request.get",
		URL:        targetURL,
		MaxTimeout: s.cfg.Timeout.Milliseconds(),
	}
	if proxyURL != "" {
		payload.Proxy = &solverProxy{URL: proxyURL}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, newError(KindTerminal, "solve", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL+"/v1", bytes.NewReader(body))
	if err != nil {
		return nil, newError(KindTerminal, "solve", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, newError(KindTransient, "solve", err)
	}
	defer resp.Body.Close()

	var out solverResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, newError(KindTransient, "solve", fmt.Errorf("decode response: %w", err))
	}
	if out.Status != "ok" {
		msg := out.Message
		if msg == "" {
			msg = "unknown error"
		}
		return nil, newError(KindChallenge, "solve", fmt.Errorf("solver: %s", msg))
	}

	s.cfg.Logger.Info("fetch: challenge solved",
		"url", targetURL, "cookies", len(out.Solution.Cookies))

	return &Solution{
		Cookies:   out.Solution.Cookies,
		UserAgent: out.Solution.UserAgent,
		Body:      []byte(out.Solution.Response),
		Status:    out.Solution.Status,
	}, nil
}
