package escalate

import (
	"testing"

	"github.com/hazyhaar/chasse/runmetrics"
)

func passing() RunSummary {
	return RunSummary{ItemsSeen: 10, ItemsDeduped: 4, EnrichAttempted: 6, Enriched: 6}
}

func failing() RunSummary {
	return RunSummary{ItemsSeen: 5, ItemsDeduped: 5}
}

func batchOf(summaries ...RunSummary) []RunSummary { return summaries }

func TestAllPassingIsDirect(t *testing.T) {
	// WHAT: A batch meeting both pass-rate and coverage targets needs no
	// escalation.
	batch := batchOf(passing(), passing(), passing(), passing(), passing(),
		passing(), passing(), passing(), passing(), passing())
	d := Evaluate(batch, DefaultTargets(), Availability{SolverAvailable: true})
	if d.Recommendation != Direct {
		t.Fatalf("recommendation: got %q, want direct", d.Recommendation)
	}
	if d.PassRate != 1.0 {
		t.Fatalf("pass rate: got %v", d.PassRate)
	}
}

func TestSustainedOutageIsNotReady(t *testing.T) {
	// WHAT: Four consecutive failures hit the streak gate before any
	// escalation option is considered.
	// WHY: Escalating past a dead board burns solver spend for nothing.
	batch := batchOf(passing(), failing(), failing(), failing(), failing(), passing())
	d := Evaluate(batch, DefaultTargets(), Availability{
		SolverAvailable:    true,
		AltRouteConfigured: true,
	})
	if d.Recommendation != NotReady {
		t.Fatalf("recommendation: got %q, want not_ready", d.Recommendation)
	}
	if d.LongestFailureStreak != 4 {
		t.Fatalf("streak: got %d, want 4", d.LongestFailureStreak)
	}
}

func TestBelowTargetEscalatesToSolver(t *testing.T) {
	// WHAT: 8/10 passing with good coverage but a 0.85 pass-rate target
	// escalates to challenge solving when a solver is available and unused.
	batch := batchOf(passing(), passing(), passing(), passing(), failing(),
		passing(), passing(), failing(), passing(), passing())
	cov := RunSummary{ItemsSeen: 10, ItemsDeduped: 1, EnrichAttempted: 10, Enriched: 9}
	batch[0] = cov // coverage 0.9 overall stays above target

	d := Evaluate(batch, DefaultTargets(), Availability{SolverAvailable: true})
	if d.Recommendation != ChallengeSolving {
		t.Fatalf("recommendation: got %q, want escalate_challenge_solving", d.Recommendation)
	}
	if d.PassRate != 0.8 {
		t.Fatalf("pass rate: got %v, want 0.8", d.PassRate)
	}
}

func TestSolverAlreadyUsedFallsToAltRoute(t *testing.T) {
	// WHAT: With the solver already used this batch, the next lever is the
	// alternate route.
	batch := batchOf(passing(), failing(), passing(), failing())
	d := Evaluate(batch, DefaultTargets(), Availability{
		SolverAvailable:    true,
		SolverUsed:         true,
		AltRouteConfigured: true,
	})
	if d.Recommendation != AlternateRoute {
		t.Fatalf("recommendation: got %q, want escalate_alternate_route", d.Recommendation)
	}
}

func TestNoLeversLeftIsNotReady(t *testing.T) {
	// WHAT: Below target with every lever exhausted is a stop.
	batch := batchOf(passing(), failing(), passing(), failing())
	d := Evaluate(batch, DefaultTargets(), Availability{
		SolverAvailable:    true,
		SolverUsed:         true,
		AltRouteConfigured: true,
		AltRouteUsed:       true,
	})
	if d.Recommendation != NotReady {
		t.Fatalf("recommendation: got %q, want not_ready", d.Recommendation)
	}
}

func TestLowCoverageBlocksDirect(t *testing.T) {
	// WHAT: Passing runs with poor enrichment coverage still escalate.
	low := RunSummary{ItemsSeen: 10, ItemsDeduped: 2, EnrichAttempted: 8, Enriched: 4}
	batch := batchOf(low, low, low, low)
	d := Evaluate(batch, DefaultTargets(), Availability{SolverAvailable: true})
	if d.Recommendation != ChallengeSolving {
		t.Fatalf("recommendation: got %q, want escalate_challenge_solving", d.Recommendation)
	}
	if d.CoverageRate != 0.5 {
		t.Fatalf("coverage: got %v, want 0.5", d.CoverageRate)
	}
}

func TestEmptyBatchIsNotReady(t *testing.T) {
	// WHAT: No runs means no evidence of viability.
	d := Evaluate(nil, DefaultTargets(), Availability{SolverAvailable: true})
	if d.Recommendation != NotReady {
		t.Fatalf("recommendation: got %q, want not_ready", d.Recommendation)
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	// WHAT: Same inputs, same decision, every time. No hidden state.
	batch := batchOf(passing(), failing(), passing(), passing())
	avail := Availability{SolverAvailable: true}
	first := Evaluate(batch, DefaultTargets(), avail)
	for i := 0; i < 10; i++ {
		if got := Evaluate(batch, DefaultTargets(), avail); got != first {
			t.Fatalf("decision changed: %+v vs %+v", got, first)
		}
	}
}

func TestSummarize(t *testing.T) {
	// WHAT: Snapshot counters reduce to the policy engine's view, and the
	// pass predicate is new-items >= 1.
	a := runmetrics.New("indeed")
	a.Add(runmetrics.ItemsSeen, 10)
	a.Add(runmetrics.ItemsDeduped, 9)
	a.Add(runmetrics.ItemsEnriched, 1)
	a.Add(runmetrics.EnrichFailed, 0)
	a.Finish()

	s := Summarize(a.Snapshot())
	if s.NewItems() != 1 || !s.Passed() {
		t.Fatalf("summary: %+v", s)
	}
	if s.EnrichAttempted != 1 {
		t.Fatalf("attempted: got %d", s.EnrichAttempted)
	}

	// All items already known: run fails.
	b := runmetrics.New("indeed")
	b.Add(runmetrics.ItemsSeen, 5)
	b.Add(runmetrics.ItemsDeduped, 5)
	b.Finish()
	if Summarize(b.Snapshot()).Passed() {
		t.Fatal("run with no new items should not pass")
	}
}
