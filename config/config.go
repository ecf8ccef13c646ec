// Package config loads operator settings from YAML, applies defaults and
// validates the combinations the engine cannot run with.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level settings file.
type Config struct {
	Search  SearchConfig  `yaml:"search"`
	Queue   QueueConfig   `yaml:"queue"`
	Dedupe  DedupeConfig  `yaml:"dedupe"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Proxy   ProxyConfig   `yaml:"proxy"`
	Solver  SolverConfig  `yaml:"solver"`
	Targets TargetsConfig `yaml:"targets"`
	Output  OutputConfig  `yaml:"output"`
	API     APIConfig     `yaml:"api"`
}

// SearchConfig drives what gets collected.
type SearchConfig struct {
	Keywords   []string `yaml:"keywords"`
	Location   string   `yaml:"location"`
	MaxResults int      `yaml:"max_results_per_search"`
	Boards     []string `yaml:"job_boards"`
}

// QueueConfig tunes the enrichment queue.
type QueueConfig struct {
	Concurrency int      `yaml:"concurrency"`
	MaxAttempts int      `yaml:"max_attempts"`
	BaseDelay   Duration `yaml:"base_delay"`
	MaxDelay    Duration `yaml:"max_delay"`
	ItemTimeout Duration `yaml:"item_timeout"`
}

// DedupeConfig selects the fingerprint backend.
type DedupeConfig struct {
	// Backend is log, sqlite or postgres.
	Backend string `yaml:"backend"`
	// Path for log and sqlite backends.
	Path string `yaml:"path"`
	// DSN for the postgres backend.
	DSN string `yaml:"dsn"`
}

// FetchConfig tunes the HTTP acquisition path.
type FetchConfig struct {
	Timeout   Duration `yaml:"timeout"`
	UserAgent string   `yaml:"user_agent"`
	Delay     Duration `yaml:"delay"`
	Jitter    Duration `yaml:"jitter"`
}

// ProxyConfig mirrors the egress manager settings.
type ProxyConfig struct {
	Enabled          bool     `yaml:"enabled"`
	Provider         string   `yaml:"provider"`
	Server           string   `yaml:"server"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	UsernameTemplate string   `yaml:"username_template"`
	Sticky           *bool    `yaml:"sticky"`
	SessionScope     string   `yaml:"session_scope"` // run | query
	PoolSize         int      `yaml:"pool_size"`
	SessionTTL       Duration `yaml:"session_ttl"`
	RotateThreshold  int      `yaml:"rotate_on_challenge_consecutive"`
}

// StickyEnabled resolves the tri-state sticky flag; unset means on.
func (p ProxyConfig) StickyEnabled() bool {
	return p.Sticky == nil || *p.Sticky
}

// SolverConfig points at the FlareSolverr sidecar.
type SolverConfig struct {
	URL     string   `yaml:"url"`
	Timeout Duration `yaml:"timeout"`
}

// TargetsConfig holds the escalation thresholds.
type TargetsConfig struct {
	PassRate         float64 `yaml:"pass_rate"`
	Coverage         float64 `yaml:"coverage"`
	MaxFailureStreak int     `yaml:"max_failure_streak"`
}

// OutputConfig holds artifact path templates. {timestamp} expands at write
// time.
type OutputConfig struct {
	MetricsTemplate string `yaml:"metrics_template"`
	ReportDir       string `yaml:"report_dir"`
}

// APIConfig for the status server.
type APIConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads, defaults and validates a settings file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes settings from YAML bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Search.Location == "" {
		c.Search.Location = "Remote"
	}
	if c.Search.MaxResults <= 0 {
		c.Search.MaxResults = 50
	}
	if len(c.Search.Boards) == 0 {
		c.Search.Boards = []string{"indeed"}
	}

	if c.Queue.Concurrency == 0 {
		c.Queue.Concurrency = 2
	}
	if c.Queue.MaxAttempts < 0 {
		c.Queue.MaxAttempts = 0
	}
	if c.Queue.BaseDelay <= 0 {
		c.Queue.BaseDelay = Duration(500 * time.Millisecond)
	}
	if c.Queue.MaxDelay <= 0 {
		c.Queue.MaxDelay = Duration(30 * time.Second)
	}
	if c.Queue.ItemTimeout <= 0 {
		c.Queue.ItemTimeout = Duration(45 * time.Second)
	}

	if c.Dedupe.Backend == "" {
		c.Dedupe.Backend = "log"
	}
	if c.Dedupe.Path == "" {
		c.Dedupe.Path = "output/fingerprints.jsonl"
	}

	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = Duration(30 * time.Second)
	}
	if c.Fetch.Delay <= 0 {
		c.Fetch.Delay = Duration(time.Second)
	}
	if c.Fetch.Jitter <= 0 {
		c.Fetch.Jitter = Duration(time.Second)
	}

	if c.Proxy.SessionScope == "" {
		c.Proxy.SessionScope = "run"
	}
	if c.Proxy.PoolSize <= 0 {
		c.Proxy.PoolSize = 4
	}
	if c.Proxy.SessionTTL <= 0 {
		c.Proxy.SessionTTL = Duration(30 * time.Minute)
	}
	if c.Proxy.RotateThreshold <= 0 {
		c.Proxy.RotateThreshold = 2
	}

	if c.Solver.Timeout <= 0 {
		c.Solver.Timeout = Duration(60 * time.Second)
	}

	if c.Targets.PassRate <= 0 {
		c.Targets.PassRate = 0.85
	}
	if c.Targets.Coverage <= 0 {
		c.Targets.Coverage = 0.80
	}
	if c.Targets.MaxFailureStreak <= 0 {
		c.Targets.MaxFailureStreak = 3
	}

	if c.Output.MetricsTemplate == "" {
		c.Output.MetricsTemplate = "output/run_metrics_{timestamp}.json"
	}
	if c.Output.ReportDir == "" {
		c.Output.ReportDir = "output/reports"
	}

	if c.API.Addr == "" {
		c.API.Addr = ":8093"
	}
}

// Validate rejects combinations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Queue.Concurrency <= 0 {
		return fmt.Errorf("config: queue.concurrency must be positive, got %d", c.Queue.Concurrency)
	}
	switch c.Dedupe.Backend {
	case "log", "sqlite":
		if c.Dedupe.Path == "" {
			return fmt.Errorf("config: dedupe.path required for backend %q", c.Dedupe.Backend)
		}
	case "postgres":
		if c.Dedupe.DSN == "" {
			return fmt.Errorf("config: dedupe.dsn required for backend postgres")
		}
	default:
		return fmt.Errorf("config: unknown dedupe.backend %q", c.Dedupe.Backend)
	}
	switch c.Proxy.SessionScope {
	case "run", "query":
	default:
		return fmt.Errorf("config: proxy.session_scope must be run or query, got %q", c.Proxy.SessionScope)
	}
	if c.Proxy.Enabled && c.Proxy.Server == "" {
		return fmt.Errorf("config: proxy.server required when proxy is enabled")
	}
	if c.Targets.PassRate > 1 || c.Targets.Coverage > 1 {
		return fmt.Errorf("config: targets are fractions in (0, 1]")
	}
	return nil
}
