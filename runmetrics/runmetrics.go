// Package runmetrics tracks counters and events for one collection run and
// writes the run artifact. Runs are long and partial success is normal, so a
// snapshot must be producible at any moment, not just at a clean finish.
package runmetrics

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hazyhaar/chasse/idgen"
)

// Counter names used across the collection pipeline. Free-form names are
// allowed; these are the ones the escalation and report layers read.
const (
	ItemsSeen           = "items_seen"
	ItemsDeduped        = "items_deduped"
	ItemsEnriched       = "items_enriched"
	EnrichFailed        = "enrich_failed"
	EnrichSkipped       = "enrich_skipped"
	PagesFetched        = "pages_fetched"
	BlockedPages        = "blocked_pages"
	ChallengeEncounters = "challenge_encounters"
	ChallengeSolved     = "challenge_solved"
	SolverFailures      = "solver_failures"
	Timeouts            = "timeouts"
	ProxyRotations      = "proxy_rotations"
)

// Event is a timestamped occurrence worth keeping in the run artifact.
type Event struct {
	At   time.Time      `json:"t"`
	Kind string         `json:"kind"`
	Data map[string]any `json:"data,omitempty"`
}

// Snapshot is an immutable view of a run's metrics.
type Snapshot struct {
	RunID     string         `json:"run_id"`
	Board     string         `json:"board"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   time.Time      `json:"ended_at"`
	Duration  float64        `json:"duration_seconds"`
	Counters  map[string]int `json:"counters"`
	Events    []Event        `json:"events,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`

	// Partial marks a snapshot taken before Finish: the run was cut
	// short or is still going.
	Partial bool `json:"partial,omitempty"`
}

// Counter returns a counter value, zero when never incremented.
func (s Snapshot) Counter(name string) int { return s.Counters[name] }

// Aggregator accumulates counters and events for one run. Safe for
// concurrent use by queue workers.
type Aggregator struct {
	mu        sync.Mutex
	runID     string
	board     string
	startedAt time.Time
	counters  map[string]int
	events    []Event
	endedAt   time.Time
	finished  bool
}

// New starts an Aggregator for a run.
func New(board string) *Aggregator {
	return &Aggregator{
		runID:     idgen.Prefixed("run_", idgen.Default)(),
		board:     board,
		startedAt: time.Now().UTC(),
		counters:  make(map[string]int),
	}
}

// RunID returns the run's identifier.
func (a *Aggregator) RunID() string { return a.runID }

// Inc increments a counter by one. Empty names are dropped.
func (a *Aggregator) Inc(name string) { a.Add(name, 1) }

// Add increments a counter by n.
func (a *Aggregator) Add(name string, n int) {
	if name == "" {
		return
	}
	a.mu.Lock()
	a.counters[name] += n
	a.mu.Unlock()
}

// RecordEvent appends a timestamped event. Nil values in data are dropped.
func (a *Aggregator) RecordEvent(kind string, data map[string]any) {
	if kind == "" {
		return
	}
	ev := Event{At: time.Now().UTC(), Kind: kind}
	if len(data) > 0 {
		ev.Data = make(map[string]any, len(data))
		for k, v := range data {
			if v != nil {
				ev.Data[k] = v
			}
		}
	}
	a.mu.Lock()
	a.events = append(a.events, ev)
	a.mu.Unlock()
}

// Finish seals the run. Further Inc/Add calls still count (late workers
// draining) but the end time is fixed at the first Finish.
func (a *Aggregator) Finish() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.finished {
		a.finished = true
		a.endedAt = time.Now().UTC()
	}
}

// Snapshot returns a copy of the current state. Before Finish the snapshot
// is marked partial and its end time is the snapshot moment.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	ended := a.endedAt
	partial := !a.finished
	if partial {
		ended = time.Now().UTC()
	}

	counters := make(map[string]int, len(a.counters))
	for k, v := range a.counters {
		counters[k] = v
	}
	events := make([]Event, len(a.events))
	copy(events, a.events)

	return Snapshot{
		RunID:     a.runID,
		Board:     a.board,
		StartedAt: a.startedAt,
		EndedAt:   ended,
		Duration:  ended.Sub(a.startedAt).Seconds(),
		Counters:  counters,
		Events:    events,
		Partial:   partial,
	}
}

// RenderPath expands {timestamp} in an artifact path template.
func RenderPath(template string, at time.Time) string {
	if template == "" {
		template = "output/run_metrics_{timestamp}.json"
	}
	return strings.ReplaceAll(template, "{timestamp}", idgen.Slug(at))
}

// WriteJSON renders the path template, creates parent directories and writes
// the snapshot with stable key order. Returns the written path.
func WriteJSON(snap Snapshot, template string, extra map[string]any) (string, error) {
	snap.Extra = extra
	path := RenderPath(template, time.Now())

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("runmetrics: mkdir: %w", err)
		}
	}

	data, err := marshalStable(snap)
	if err != nil {
		return "", fmt.Errorf("runmetrics: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("runmetrics: write: %w", err)
	}
	return path, nil
}

// marshalStable produces indented JSON with sorted counter keys. Go maps
// already marshal with sorted keys, so plain MarshalIndent is stable.
func marshalStable(snap Snapshot) ([]byte, error) {
	return json.MarshalIndent(snap, "", "  ")
}

// TopCounters returns counter names sorted by descending value, for log
// summaries.
func TopCounters(snap Snapshot, n int) []string {
	names := make([]string, 0, len(snap.Counters))
	for k := range snap.Counters {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool {
		if snap.Counters[names[i]] != snap.Counters[names[j]] {
			return snap.Counters[names[i]] > snap.Counters[names[j]]
		}
		return names[i] < names[j]
	})
	if n > 0 && len(names) > n {
		names = names[:n]
	}
	return names
}
