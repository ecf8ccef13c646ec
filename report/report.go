// Package report renders viability reports over a batch of collection runs:
// a markdown document for humans and a JSON summary for tooling. The verdict
// (GO / NO-GO / CONDITIONAL) gates on success rate, stability and latency.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hazyhaar/chasse/escalate"
)

// Verdict is the batch-level go/no-go call.
type Verdict string

const (
	Go          Verdict = "GO"
	NoGo        Verdict = "NO-GO"
	Conditional Verdict = "CONDITIONAL"
)

// Criteria are the gates a batch must clear for a GO.
type Criteria struct {
	// MinRuns below which the verdict is CONDITIONAL regardless of rates.
	MinRuns int

	// TargetSuccessRate for the pass-rate gate. Default 0.85.
	TargetSuccessRate float64

	// UseCILowerBound gates on the Wilson lower bound instead of the
	// point estimate. Stricter, recommended for small batches.
	UseCILowerBound bool

	// Latency gates. Defaults: p50 <= 180s, p95 <= 420s.
	LatencyP50 time.Duration
	LatencyP95 time.Duration

	// MaxFailureStreak for the stability gate. Default 3.
	MaxFailureStreak int
}

// DefaultCriteria returns the standard gates.
func DefaultCriteria() Criteria {
	return Criteria{
		MinRuns:           5,
		TargetSuccessRate: 0.85,
		LatencyP50:        180 * time.Second,
		LatencyP95:        420 * time.Second,
		MaxFailureStreak:  3,
	}
}

func (c Criteria) withDefaults() Criteria {
	d := DefaultCriteria()
	if c.MinRuns <= 0 {
		c.MinRuns = d.MinRuns
	}
	if c.TargetSuccessRate <= 0 {
		c.TargetSuccessRate = d.TargetSuccessRate
	}
	if c.LatencyP50 <= 0 {
		c.LatencyP50 = d.LatencyP50
	}
	if c.LatencyP95 <= 0 {
		c.LatencyP95 = d.LatencyP95
	}
	if c.MaxFailureStreak <= 0 {
		c.MaxFailureStreak = d.MaxFailureStreak
	}
	return c
}

// Report is the computed view over a batch.
type Report struct {
	Board       string    `json:"board"`
	GeneratedAt time.Time `json:"generated_at"`

	Runs      int     `json:"runs"`
	Successes int     `json:"successes"`
	PassRate  float64 `json:"pass_rate"`
	CILow     float64 `json:"pass_rate_ci_low"`
	CIHigh    float64 `json:"pass_rate_ci_high"`

	DurationP50 float64 `json:"duration_p50_seconds"`
	DurationP95 float64 `json:"duration_p95_seconds"`

	LongestSuccessStreak int `json:"longest_success_streak"`
	LongestFailureStreak int `json:"longest_failure_streak"`

	Challenges int `json:"challenge_encounters"`
	Blocked    int `json:"blocked_pages"`

	StabilityOK bool `json:"stability_ok"`
	LatencyOK   bool `json:"latency_ok"`

	Verdict Verdict `json:"verdict"`
	Basis   string  `json:"basis"`

	Recommendation escalate.Recommendation `json:"recommendation,omitempty"`

	criteria Criteria
	batch    []escalate.RunSummary
}

// Build computes a Report from a batch in chronological order. decision may
// be the zero value when no escalation evaluation ran.
func Build(board string, batch []escalate.RunSummary, criteria Criteria, decision escalate.Decision) *Report {
	criteria = criteria.withDefaults()

	r := &Report{
		Board:          board,
		GeneratedAt:    time.Now().UTC(),
		Runs:           len(batch),
		Recommendation: decision.Recommendation,
		criteria:       criteria,
		batch:          batch,
	}

	flags := make([]bool, len(batch))
	durations := make([]float64, 0, len(batch))
	for i, run := range batch {
		flags[i] = run.Passed()
		if flags[i] {
			r.Successes++
		}
		durations = append(durations, run.Duration.Seconds())
		r.Challenges += run.Challenges
		r.Blocked += run.Blocked
	}

	if r.Runs > 0 {
		r.PassRate = float64(r.Successes) / float64(r.Runs)
	}
	r.CILow, r.CIHigh = escalate.WilsonInterval(r.Successes, r.Runs, 0)
	r.DurationP50 = escalate.Percentile(durations, 50)
	r.DurationP95 = escalate.Percentile(durations, 95)
	r.LongestSuccessStreak = escalate.LongestStreak(flags, true)
	r.LongestFailureStreak = escalate.LongestStreak(flags, false)

	r.StabilityOK = r.LongestFailureStreak < criteria.MaxFailureStreak
	r.LatencyOK = r.DurationP50 <= criteria.LatencyP50.Seconds() &&
		r.DurationP95 <= criteria.LatencyP95.Seconds()

	basis := r.PassRate
	r.Basis = fmt.Sprintf("point estimate (%.1f%%)", r.PassRate*100)
	if criteria.UseCILowerBound {
		basis = r.CILow
		r.Basis = fmt.Sprintf("CI lower bound (%.1f%%)", r.CILow*100)
	}

	switch {
	case r.Runs < criteria.MinRuns:
		r.Verdict = Conditional
	case basis >= criteria.TargetSuccessRate && r.StabilityOK && r.LatencyOK:
		r.Verdict = Go
	default:
		r.Verdict = NoGo
	}
	return r
}

// Markdown renders the human-readable viability report.
func (r *Report) Markdown() string {
	var b strings.Builder
	c := r.criteria

	fmt.Fprintf(&b, "# %s Viability Report\n\n", title(r.Board))
	fmt.Fprintf(&b, "**Generated:** %s  \n", r.GeneratedAt.Format("2006-01-02 15:04 UTC"))
	fmt.Fprintf(&b, "**Board:** `%s`  \n", r.Board)
	fmt.Fprintf(&b, "**Measured Runs:** %d  \n", r.Runs)
	fmt.Fprintf(&b, "**Target Success Rate:** %s  \n", pct(c.TargetSuccessRate))
	fmt.Fprintf(&b, "**Success Rate (95%% CI, Wilson):** %s (CI: %s - %s)\n\n",
		pct(r.PassRate), pct(r.CILow), pct(r.CIHigh))

	b.WriteString("## Criteria\n\n")
	fmt.Fprintf(&b, "- Minimum measured runs for decision: **%d**\n", c.MinRuns)
	fmt.Fprintf(&b, "- GO threshold: **%s** (basis: %s)\n", pct(c.TargetSuccessRate), r.Basis)
	fmt.Fprintf(&b, "- Stability gate: longest consecutive-failure streak **< %d**\n", c.MaxFailureStreak)
	fmt.Fprintf(&b, "- Latency gate: p50 <= **%.0fs**, p95 <= **%.0fs**\n\n",
		c.LatencyP50.Seconds(), c.LatencyP95.Seconds())

	b.WriteString("## Results\n\n")
	fmt.Fprintf(&b, "- Successes: **%d/%d** (**%s**) (pass = at least one new item)\n",
		r.Successes, r.Runs, pct(r.PassRate))
	fmt.Fprintf(&b, "- Duration p50: **%.1fs**\n", r.DurationP50)
	fmt.Fprintf(&b, "- Duration p95: **%.1fs**\n", r.DurationP95)
	fmt.Fprintf(&b, "- Longest success streak: **%d**\n", r.LongestSuccessStreak)
	fmt.Fprintf(&b, "- Longest failure streak: **%d**\n", r.LongestFailureStreak)
	fmt.Fprintf(&b, "- Challenge encounters (sum): **%d**\n", r.Challenges)
	fmt.Fprintf(&b, "- Blocked pages (sum): **%d**\n\n", r.Blocked)

	b.WriteString("## Runs\n\n")
	b.WriteString("| Run | Pass | new_items | items_seen | enriched/attempted | duration_s | challenges | blocked |\n")
	b.WriteString("|---:|:---:|---:|---:|---:|---:|---:|---:|\n")
	for i, run := range r.batch {
		mark := "FAIL"
		if run.Passed() {
			mark = "PASS"
		}
		fmt.Fprintf(&b, "| %d | %s | %d | %d | %d/%d | %.1f | %d | %d |\n",
			i+1, mark, run.NewItems(), run.ItemsSeen,
			run.Enriched, run.EnrichAttempted,
			run.Duration.Seconds(), run.Challenges, run.Blocked)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "## Decision\n\n**%s**\n\n", r.Verdict)
	switch {
	case r.Verdict == Conditional:
		fmt.Fprintf(&b, "Decision is CONDITIONAL because measured runs (%d) < minimum (%d).\n",
			r.Runs, c.MinRuns)
	default:
		fmt.Fprintf(&b, "Basis: %s vs threshold %s.\n", r.Basis, pct(c.TargetSuccessRate))
		fmt.Fprintf(&b, "Criteria: stability=%s, latency=%s.\n",
			passFail(r.StabilityOK), passFail(r.LatencyOK))
	}
	if r.Recommendation != "" {
		fmt.Fprintf(&b, "\nNext-batch recommendation: `%s`.\n", r.Recommendation)
	}
	return b.String()
}

// WriteFiles writes the markdown report and JSON summary next to each other.
// Returns the two paths.
func (r *Report) WriteFiles(dir, baseName string) (mdPath, jsonPath string, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("report: mkdir: %w", err)
	}

	mdPath = filepath.Join(dir, baseName+".md")
	if err := os.WriteFile(mdPath, []byte(r.Markdown()), 0o644); err != nil {
		return "", "", fmt.Errorf("report: write markdown: %w", err)
	}

	jsonPath = filepath.Join(dir, baseName+".json")
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("report: marshal: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return "", "", fmt.Errorf("report: write json: %w", err)
	}
	return mdPath, jsonPath, nil
}

func pct(v float64) string { return fmt.Sprintf("%.1f%%", v*100) }

func passFail(ok bool) string {
	if ok {
		return "PASS"
	}
	return "FAIL"
}

func title(s string) string {
	if s == "" {
		return "Collection"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
