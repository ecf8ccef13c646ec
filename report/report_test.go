package report

import (
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/chasse/escalate"
)

func run(newItems int, d time.Duration) escalate.RunSummary {
	return escalate.RunSummary{
		ItemsSeen:       newItems + 2,
		ItemsDeduped:    2,
		EnrichAttempted: newItems,
		Enriched:        newItems,
		Duration:        d,
	}
}

func TestGoVerdict(t *testing.T) {
	// WHAT: A healthy batch over the minimum run count gets a GO.
	var batch []escalate.RunSummary
	for i := 0; i < 10; i++ {
		batch = append(batch, run(5, 60*time.Second))
	}
	r := Build("indeed", batch, Criteria{}, escalate.Decision{Recommendation: escalate.Direct})
	if r.Verdict != Go {
		t.Fatalf("verdict: got %q, want GO", r.Verdict)
	}
	if r.PassRate != 1.0 || r.Successes != 10 {
		t.Fatalf("rates: %+v", r)
	}
}

func TestConditionalBelowMinRuns(t *testing.T) {
	// WHAT: Too few runs for a decision yields CONDITIONAL, not NO-GO.
	batch := []escalate.RunSummary{run(5, time.Minute), run(5, time.Minute)}
	r := Build("indeed", batch, Criteria{MinRuns: 5}, escalate.Decision{})
	if r.Verdict != Conditional {
		t.Fatalf("verdict: got %q, want CONDITIONAL", r.Verdict)
	}
}

func TestStabilityGateFailsVerdict(t *testing.T) {
	// WHAT: A long failure streak forces NO-GO even with a decent rate.
	var batch []escalate.RunSummary
	for i := 0; i < 12; i++ {
		batch = append(batch, run(5, 30*time.Second))
	}
	// Three consecutive failures mid-batch.
	for i := 4; i < 7; i++ {
		batch[i] = run(0, 30*time.Second)
	}
	r := Build("indeed", batch, Criteria{TargetSuccessRate: 0.5}, escalate.Decision{})
	if r.StabilityOK {
		t.Fatal("stability gate should fail on a 3-streak")
	}
	if r.Verdict != NoGo {
		t.Fatalf("verdict: got %q, want NO-GO", r.Verdict)
	}
}

func TestLatencyGate(t *testing.T) {
	// WHAT: Slow runs fail the latency gate.
	var batch []escalate.RunSummary
	for i := 0; i < 6; i++ {
		batch = append(batch, run(5, 10*time.Minute))
	}
	r := Build("indeed", batch, Criteria{}, escalate.Decision{})
	if r.LatencyOK {
		t.Fatal("latency gate should fail at p50=600s")
	}
	if r.Verdict != NoGo {
		t.Fatalf("verdict: got %q, want NO-GO", r.Verdict)
	}
}

func TestCILowerBoundBasis(t *testing.T) {
	// WHAT: Gating on the Wilson lower bound is stricter than the point
	// estimate for small batches.
	var batch []escalate.RunSummary
	for i := 0; i < 6; i++ {
		batch = append(batch, run(5, time.Minute))
	}
	batch[2] = run(0, time.Minute) // 5/6 ~ 0.83 point, CI low far lower

	point := Build("indeed", batch, Criteria{TargetSuccessRate: 0.8}, escalate.Decision{})
	strict := Build("indeed", batch, Criteria{TargetSuccessRate: 0.8, UseCILowerBound: true}, escalate.Decision{})
	if point.Verdict != Go {
		t.Fatalf("point verdict: got %q", point.Verdict)
	}
	if strict.Verdict != NoGo {
		t.Fatalf("strict verdict: got %q", strict.Verdict)
	}
}

func TestMarkdownContent(t *testing.T) {
	// WHAT: The markdown carries the verdict, the rates and a per-run row.
	batch := []escalate.RunSummary{
		run(5, time.Minute), run(0, time.Minute), run(3, time.Minute),
		run(4, time.Minute), run(6, time.Minute),
	}
	r := Build("glassdoor", batch, Criteria{}, escalate.Decision{Recommendation: escalate.ChallengeSolving})
	md := r.Markdown()

	for _, want := range []string{
		"# Glassdoor Viability Report",
		"**Measured Runs:** 5",
		"Longest failure streak",
		"| 2 | FAIL | 0 |",
		"escalate_challenge_solving",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestWriteFiles(t *testing.T) {
	// WHAT: Both artifacts land on disk and the JSON parses back.
	batch := []escalate.RunSummary{run(5, time.Minute)}
	r := Build("indeed", batch, Criteria{}, escalate.Decision{})

	dir := t.TempDir()
	mdPath, jsonPath, err := r.WriteFiles(dir, "viability")
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	md, err := os.ReadFile(mdPath)
	if err != nil || !strings.Contains(string(md), "Viability Report") {
		t.Fatalf("markdown artifact: err=%v", err)
	}

	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("json artifact: %v", err)
	}
	var out Report
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("parse json: %v", err)
	}
	if out.Board != "indeed" || out.Runs != 1 {
		t.Fatalf("round trip: %+v", out)
	}
}
