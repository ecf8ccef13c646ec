// Package escalate decides what a collection batch should do next: keep
// going as-is, turn on challenge solving, move to another egress route, or
// stop. Evaluate is a pure function of the batch and the configured targets
// so policy changes are testable without running any collection.
package escalate

import (
	"time"

	"github.com/hazyhaar/chasse/runmetrics"
)

// Recommendation is the decision table's output.
type Recommendation string

const (
	// Direct: targets met, no escalation needed.
	Direct Recommendation = "direct"
	// ChallengeSolving: enable the solver for the next batch.
	ChallengeSolving Recommendation = "escalate_challenge_solving"
	// AlternateRoute: switch egress route for the next batch.
	AlternateRoute Recommendation = "escalate_alternate_route"
	// NotReady: collection is not viable as configured. Hard stop.
	NotReady Recommendation = "not_ready"
)

// RunSummary is the per-run reduction the policy engine consumes.
type RunSummary struct {
	RunID           string        `json:"run_id"`
	Board           string        `json:"board"`
	ItemsSeen       int           `json:"items_seen"`
	ItemsDeduped    int           `json:"items_deduped"`
	EnrichAttempted int           `json:"enrich_attempted"`
	Enriched        int           `json:"enriched"`
	Challenges      int           `json:"challenges"`
	Blocked         int           `json:"blocked"`
	Duration        time.Duration `json:"duration"`
}

// NewItems is the count of items the run contributed beyond the dedupe set.
func (r RunSummary) NewItems() int { return r.ItemsSeen - r.ItemsDeduped }

// Passed reports whether the run produced at least one new item.
func (r RunSummary) Passed() bool { return r.NewItems() >= 1 }

// Summarize reduces a metrics snapshot to the policy engine's view.
func Summarize(snap runmetrics.Snapshot) RunSummary {
	enriched := snap.Counter(runmetrics.ItemsEnriched)
	attempted := enriched +
		snap.Counter(runmetrics.EnrichFailed) +
		snap.Counter(runmetrics.EnrichSkipped)
	return RunSummary{
		RunID:           snap.RunID,
		Board:           snap.Board,
		ItemsSeen:       snap.Counter(runmetrics.ItemsSeen),
		ItemsDeduped:    snap.Counter(runmetrics.ItemsDeduped),
		EnrichAttempted: attempted,
		Enriched:        enriched,
		Challenges:      snap.Counter(runmetrics.ChallengeEncounters),
		Blocked:         snap.Counter(runmetrics.BlockedPages),
		Duration:        time.Duration(snap.Duration * float64(time.Second)),
	}
}

// Targets are the reliability thresholds a batch is judged against.
type Targets struct {
	// PassRate is the minimum fraction of passing runs. Default 0.85.
	PassRate float64 `yaml:"pass_rate"`
	// Coverage is the minimum enriched / enrich-attempted fraction.
	// Default 0.80.
	Coverage float64 `yaml:"coverage"`
	// MaxFailureStreak is the consecutive-failure count that declares the
	// batch not ready regardless of aggregates. Default 3.
	MaxFailureStreak int `yaml:"max_failure_streak"`
}

// DefaultTargets returns the standard thresholds.
func DefaultTargets() Targets {
	return Targets{PassRate: 0.85, Coverage: 0.80, MaxFailureStreak: 3}
}

func (t Targets) withDefaults() Targets {
	d := DefaultTargets()
	if t.PassRate <= 0 {
		t.PassRate = d.PassRate
	}
	if t.Coverage <= 0 {
		t.Coverage = d.Coverage
	}
	if t.MaxFailureStreak <= 0 {
		t.MaxFailureStreak = d.MaxFailureStreak
	}
	return t
}

// Availability describes which escalation levers exist and whether the batch
// already pulled them.
type Availability struct {
	SolverAvailable    bool
	SolverUsed         bool
	AltRouteConfigured bool
	AltRouteUsed       bool
}

// Decision is the policy engine's full output: the recommendation plus the
// aggregates it was derived from.
type Decision struct {
	Recommendation       Recommendation `json:"recommendation"`
	PassRate             float64        `json:"pass_rate"`
	PassRateLow          float64        `json:"pass_rate_ci_low"` // Wilson 95% lower bound
	PassRateHigh         float64        `json:"pass_rate_ci_high"`
	CoverageRate         float64        `json:"coverage_rate"`
	LongestFailureStreak int            `json:"longest_failure_streak"`
	Runs                 int            `json:"runs"`
	Passes               int            `json:"passes"`
}

// Evaluate applies the decision table to a batch, in chronological order.
// The table is evaluated top to bottom, first match wins:
//
//  1. failure streak >= max  -> not_ready
//  2. pass rate and coverage at target -> direct
//  3. solver available, unused -> escalate_challenge_solving
//  4. alternate route configured, unused -> escalate_alternate_route
//  5. otherwise -> not_ready
//
// A sustained outage is checked first: auto-escalating past it would just
// burn solver spend against a dead board.
func Evaluate(batch []RunSummary, targets Targets, avail Availability) Decision {
	targets = targets.withDefaults()

	d := Decision{Runs: len(batch)}
	if len(batch) == 0 {
		d.Recommendation = NotReady
		return d
	}

	flags := make([]bool, len(batch))
	var attempted, enriched int
	for i, r := range batch {
		flags[i] = r.Passed()
		if flags[i] {
			d.Passes++
		}
		attempted += r.EnrichAttempted
		enriched += r.Enriched
	}

	d.PassRate = float64(d.Passes) / float64(len(batch))
	d.PassRateLow, d.PassRateHigh = WilsonInterval(d.Passes, len(batch), 0)
	d.LongestFailureStreak = LongestStreak(flags, false)
	if attempted > 0 {
		d.CoverageRate = float64(enriched) / float64(attempted)
	} else {
		// No enrichment attempted means nothing to cover.
		d.CoverageRate = 1
	}

	switch {
	case d.LongestFailureStreak >= targets.MaxFailureStreak:
		d.Recommendation = NotReady
	case d.PassRate >= targets.PassRate && d.CoverageRate >= targets.Coverage:
		d.Recommendation = Direct
	case avail.SolverAvailable && !avail.SolverUsed:
		d.Recommendation = ChallengeSolving
	case avail.AltRouteConfigured && !avail.AltRouteUsed:
		d.Recommendation = AlternateRoute
	default:
		d.Recommendation = NotReady
	}
	return d
}
