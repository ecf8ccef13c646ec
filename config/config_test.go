package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
search:
  keywords: ["golang", "data engineer"]
  location: "Berlin"
  max_results_per_search: 25
  job_boards: ["indeed", "linkedin"]
queue:
  concurrency: 4
  max_attempts: 3
  base_delay: 1s
dedupe:
  backend: sqlite
  path: data/fp.db
proxy:
  enabled: true
  provider: iproyal
  server: "http://geo.iproyal.com:12321"
  username: user
  password: pass
  rotate_on_challenge_consecutive: 3
solver:
  url: "http://localhost:8191"
targets:
  pass_rate: 0.9
api:
  addr: ":9000"
`

func TestParseAndDefaults(t *testing.T) {
	// WHAT: Explicit values survive parsing; unset fields get defaults.
	cfg, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if len(cfg.Search.Keywords) != 2 || cfg.Search.Location != "Berlin" {
		t.Fatalf("search: %+v", cfg.Search)
	}
	if cfg.Queue.Concurrency != 4 || cfg.Queue.MaxAttempts != 3 {
		t.Fatalf("queue: %+v", cfg.Queue)
	}
	if cfg.Queue.BaseDelay.Std() != time.Second {
		t.Fatalf("queue.base_delay: %v", cfg.Queue.BaseDelay)
	}
	if cfg.Queue.MaxDelay.Std() != 30*time.Second {
		t.Fatalf("queue.max_delay default: %v", cfg.Queue.MaxDelay)
	}
	if cfg.Dedupe.Backend != "sqlite" || cfg.Dedupe.Path != "data/fp.db" {
		t.Fatalf("dedupe: %+v", cfg.Dedupe)
	}
	if !cfg.Proxy.StickyEnabled() {
		t.Fatal("sticky should default on")
	}
	if cfg.Proxy.RotateThreshold != 3 {
		t.Fatalf("rotate threshold: %d", cfg.Proxy.RotateThreshold)
	}
	if cfg.Targets.PassRate != 0.9 || cfg.Targets.Coverage != 0.80 {
		t.Fatalf("targets: %+v", cfg.Targets)
	}
	if cfg.Solver.Timeout.Std() != 60*time.Second {
		t.Fatalf("solver timeout default: %v", cfg.Solver.Timeout)
	}
	if cfg.API.Addr != ":9000" {
		t.Fatalf("api addr: %q", cfg.API.Addr)
	}
}

func TestDefaultConfigValidates(t *testing.T) {
	// WHAT: The zero-file default configuration is runnable.
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Queue.Concurrency < 1 {
		t.Fatalf("default concurrency: %d", cfg.Queue.Concurrency)
	}
	if cfg.Dedupe.Backend != "log" {
		t.Fatalf("default backend: %q", cfg.Dedupe.Backend)
	}
}

func TestRejectsNegativeConcurrency(t *testing.T) {
	// WHAT: concurrency < 0 survives defaulting (only 0 is defaulted) and
	// fails validation.
	_, err := Parse([]byte("queue:\n  concurrency: -2\n"))
	if err == nil || !strings.Contains(err.Error(), "concurrency") {
		t.Fatalf("error: %v", err)
	}
}

func TestRejectsUnknownBackend(t *testing.T) {
	// WHAT: Unknown dedupe backends fail fast at load, not at run.
	_, err := Parse([]byte("dedupe:\n  backend: redis\n"))
	if err == nil || !strings.Contains(err.Error(), "backend") {
		t.Fatalf("error: %v", err)
	}
}

func TestRejectsPostgresWithoutDSN(t *testing.T) {
	_, err := Parse([]byte("dedupe:\n  backend: postgres\n"))
	if err == nil || !strings.Contains(err.Error(), "dsn") {
		t.Fatalf("error: %v", err)
	}
}

func TestRejectsEnabledProxyWithoutServer(t *testing.T) {
	_, err := Parse([]byte("proxy:\n  enabled: true\n"))
	if err == nil || !strings.Contains(err.Error(), "proxy.server") {
		t.Fatalf("error: %v", err)
	}
}

func TestStickyExplicitFalse(t *testing.T) {
	// WHAT: sticky: false is honored; only absence defaults to true.
	cfg, err := Parse([]byte("proxy:\n  sticky: false\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Proxy.StickyEnabled() {
		t.Fatal("explicit sticky: false ignored")
	}
}

func TestLoadFromFile(t *testing.T) {
	// WHAT: Load reads the file path and reports missing files clearly.
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Search.Location != "Berlin" {
		t.Fatalf("loaded config: %+v", cfg.Search)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
