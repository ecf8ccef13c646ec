// Package collect sequences collection runs: collect, filter through the
// fingerprint store, enrich survivors under the queue's concurrency bound,
// and freeze run metrics. RunBatch drives repeated runs and applies the
// escalation policy between them.
package collect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/chasse/board"
	"github.com/hazyhaar/chasse/dedupe"
	"github.com/hazyhaar/chasse/egress"
	"github.com/hazyhaar/chasse/enrich"
	"github.com/hazyhaar/chasse/escalate"
	"github.com/hazyhaar/chasse/fetch"
	"github.com/hazyhaar/chasse/runmetrics"
)

// State is the orchestrator's run phase.
type State string

const (
	StateIdle       State = "idle"
	StateCollecting State = "collecting"
	StateFiltering  State = "filtering"
	StateEnriching  State = "enriching"
	StateFinalizing State = "finalizing"
	StateAborted    State = "aborted"
)

// Collector produces raw items for a query. It is the external acquisition
// capability: board extractors plus whatever transport they need.
type Collector interface {
	Collect(ctx context.Context, query board.Query) ([]board.Item, error)
}

// CollectorFunc adapts a function to the Collector interface.
type CollectorFunc func(ctx context.Context, query board.Query) ([]board.Item, error)

func (f CollectorFunc) Collect(ctx context.Context, query board.Query) ([]board.Item, error) {
	return f(ctx, query)
}

// Recycler is the browser-lifecycle hook pulled on route rotation.
type Recycler interface {
	Recycle() error
}

// Solver clears challenges when the escalation policy turns solving on.
type Solver interface {
	Available(ctx context.Context) bool
	Solve(ctx context.Context, targetURL, proxyURL string) (*fetch.Solution, error)
}

// Config wires an Orchestrator.
type Config struct {
	Store       dedupe.Store
	Collector   Collector
	FetchDetail enrich.FetchFunc
	Queue       enrich.Config

	// Egress, Solver and Browser are optional escalation levers.
	Egress  *egress.Manager
	Solver  Solver
	Browser Recycler

	Targets escalate.Targets

	// MetricsTemplate is the run artifact path; empty disables writing.
	MetricsTemplate string

	Logger *slog.Logger
}

// Orchestrator owns run sequencing and the accumulated batch view.
type Orchestrator struct {
	cfg Config

	mu            sync.RWMutex
	state         State
	summaries     []escalate.RunSummary
	lastSnapshot  *runmetrics.Snapshot
	lastDecision  *escalate.Decision
	solverEnabled bool
	avail         escalate.Availability
}

// New creates an Orchestrator. Store, Collector and FetchDetail are
// mandatory; the queue config is validated here so a bad concurrency fails
// at startup rather than mid-batch.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Store == nil {
		return nil, errors.New("collect: store is required")
	}
	if cfg.Collector == nil {
		return nil, errors.New("collect: collector is required")
	}
	if cfg.FetchDetail == nil {
		return nil, errors.New("collect: fetch capability is required")
	}
	if _, err := enrich.NewQueue(cfg.Queue); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	o := &Orchestrator{cfg: cfg, state: StateIdle}
	o.avail = escalate.Availability{
		SolverAvailable:    cfg.Solver != nil,
		AltRouteConfigured: cfg.Egress != nil && cfg.Egress.Enabled(),
	}
	return o, nil
}

// State returns the current run phase.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// LastSnapshot returns the most recent run's metrics, if any run finished.
func (o *Orchestrator) LastSnapshot() (runmetrics.Snapshot, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.lastSnapshot == nil {
		return runmetrics.Snapshot{}, false
	}
	return *o.lastSnapshot, true
}

// LastDecision returns the most recent escalation decision, if evaluated.
func (o *Orchestrator) LastDecision() (escalate.Decision, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.lastDecision == nil {
		return escalate.Decision{}, false
	}
	return *o.lastDecision, true
}

// Summaries returns the accumulated batch, oldest first.
func (o *Orchestrator) Summaries() []escalate.RunSummary {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]escalate.RunSummary, len(o.summaries))
	copy(out, o.summaries)
	return out
}

// FingerprintCount exposes the dedupe set size.
func (o *Orchestrator) FingerprintCount() int { return o.cfg.Store.Count() }

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// RunOnce performs one full run for the query. A metrics snapshot comes back
// in every case, including aborts: there is no run that crashes without a
// report.
func (o *Orchestrator) RunOnce(ctx context.Context, query board.Query) (snap runmetrics.Snapshot, runErr error) {
	metrics := runmetrics.New(query.Board)
	log := o.cfg.Logger.With("run_id", metrics.RunID(), "board", query.Board)

	defer func() {
		// Finalizing always runs, even on abort mid-phase.
		o.setState(StateFinalizing)
		metrics.Finish()
		snap = metrics.Snapshot()
		o.finalize(snap, runErr)
		if runErr != nil {
			o.setState(StateAborted)
		} else {
			o.setState(StateIdle)
		}
	}()

	o.setState(StateCollecting)
	items, err := o.cfg.Collector.Collect(ctx, query)
	if err != nil {
		if errors.Is(err, dedupe.ErrUnavailable) || errors.Is(err, ErrEgressExhausted) {
			runErr = err
			metrics.RecordEvent("aborted", map[string]any{"stage": "collecting", "error": err.Error()})
			return metrics.Snapshot(), runErr
		}
		// A failed collection is a zero-yield run, not a crash.
		log.Warn("collect: collection failed", "error", err)
		metrics.RecordEvent("collect_failed", map[string]any{"error": err.Error()})
		items = nil
	}
	metrics.Add(runmetrics.ItemsSeen, len(items))

	o.setState(StateFiltering)
	queue, err := enrich.NewQueue(o.cfg.Queue)
	if err != nil {
		runErr = err
		return metrics.Snapshot(), runErr
	}
	queued := 0
	for _, it := range items {
		key := board.Key(it)
		if o.cfg.Store.Seen(key) {
			metrics.Inc(runmetrics.ItemsDeduped)
			continue
		}
		if err := o.cfg.Store.Record(ctx, key, it.Source, time.Now()); err != nil {
			if errors.Is(err, dedupe.ErrUnavailable) {
				runErr = err
				metrics.RecordEvent("aborted", map[string]any{"stage": "filtering", "error": err.Error()})
				return metrics.Snapshot(), runErr
			}
			// Persist failures lose durability, not the run.
			log.Warn("collect: fingerprint persist failed", "key", key, "error", err)
		}
		it.Status = board.StatusPending
		queue.Enqueue(it)
		queued++
	}
	log.Info("collect: filtered", "seen", len(items), "queued", queued)

	o.setState(StateEnriching)
	outcomes, err := queue.Run(ctx, o.fetchDetail(metrics, query))
	if err != nil {
		runErr = err
		return metrics.Snapshot(), runErr
	}
	for outcome := range outcomes {
		switch outcome.Status {
		case board.StatusEnriched:
			metrics.Inc(runmetrics.ItemsEnriched)
		case board.StatusFailed:
			metrics.Inc(runmetrics.EnrichFailed)
		case board.StatusSkipped:
			metrics.Inc(runmetrics.EnrichSkipped)
		}
	}

	return metrics.Snapshot(), nil
}

// ErrEgressExhausted marks total egress exhaustion, the one non-store
// condition that aborts a run.
var ErrEgressExhausted = errors.New("collect: egress exhausted")

// fetchDetail wraps the injected capability with metrics accounting and the
// challenge-solving escalation path.
func (o *Orchestrator) fetchDetail(metrics *runmetrics.Aggregator, query board.Query) enrich.FetchFunc {
	affinity := query.Board + "|" + query.Keyword

	return func(ctx context.Context, item board.Item) (*board.Detail, error) {
		detail, err := o.cfg.FetchDetail(ctx, item)
		metrics.Inc(runmetrics.PagesFetched)
		if err == nil {
			return detail, nil
		}

		switch fetch.KindOf(err) {
		case fetch.KindBlocked:
			metrics.Inc(runmetrics.BlockedPages)
		case fetch.KindChallenge:
			metrics.Inc(runmetrics.ChallengeEncounters)
			return o.handleChallenge(ctx, metrics, affinity, item, err)
		case fetch.KindTransient:
			if errors.Is(err, context.DeadlineExceeded) {
				metrics.Inc(runmetrics.Timeouts)
			}
		}
		return detail, err
	}
}

// handleChallenge runs the solving path when it is enabled, then records the
// route health either way.
func (o *Orchestrator) handleChallenge(ctx context.Context, metrics *runmetrics.Aggregator, affinity string, item board.Item, challengeErr error) (*board.Detail, error) {
	o.mu.RLock()
	solving := o.solverEnabled && o.cfg.Solver != nil
	o.mu.RUnlock()

	solved := false
	if solving {
		proxyURL := ""
		if o.cfg.Egress != nil {
			proxyURL = o.cfg.Egress.ProxyURL(affinity)
		}
		if _, err := o.cfg.Solver.Solve(ctx, item.Link, proxyURL); err != nil {
			metrics.Inc(runmetrics.SolverFailures)
			o.cfg.Logger.Warn("collect: solve failed", "url", item.Link, "error", err)
		} else {
			metrics.Inc(runmetrics.ChallengeSolved)
			solved = true
		}
	}

	if o.cfg.Egress != nil && o.cfg.Egress.RecordChallenge(solved) {
		o.rotateRoute(metrics, affinity, "consecutive_challenges")
	}

	if solved {
		// Clearance is installed; let the retry use it.
		if detail, err := o.cfg.FetchDetail(ctx, item); err == nil {
			return detail, nil
		}
	}
	return nil, challengeErr
}

// rotateRoute switches egress session and recycles the browser so the new
// credentials actually take effect.
func (o *Orchestrator) rotateRoute(metrics *runmetrics.Aggregator, affinity, reason string) {
	o.cfg.Egress.Rotate(affinity, reason)
	if metrics != nil {
		metrics.Inc(runmetrics.ProxyRotations)
		metrics.RecordEvent("route_rotated", map[string]any{"reason": reason})
	}
	if o.cfg.Browser != nil {
		if err := o.cfg.Browser.Recycle(); err != nil {
			o.cfg.Logger.Error("collect: browser recycle failed", "error", err)
		}
	}
}

// finalize stores the snapshot, writes the artifact and appends the summary.
func (o *Orchestrator) finalize(snap runmetrics.Snapshot, runErr error) {
	if o.cfg.MetricsTemplate != "" {
		extra := map[string]any{}
		if runErr != nil {
			extra["aborted"] = runErr.Error()
		}
		if path, err := runmetrics.WriteJSON(snap, o.cfg.MetricsTemplate, extra); err != nil {
			o.cfg.Logger.Error("collect: metrics artifact write failed", "error", err)
		} else {
			o.cfg.Logger.Info("collect: metrics written", "path", path)
		}
	}

	summary := escalate.Summarize(snap)
	o.mu.Lock()
	o.lastSnapshot = &snap
	o.summaries = append(o.summaries, summary)
	o.mu.Unlock()
}

// BatchResult is what a reliability batch produced.
type BatchResult struct {
	Summaries []escalate.RunSummary
	Decision  escalate.Decision
	Completed int
	Stopped   bool // true when the policy declared not_ready before all runs
}

// RunBatch performs up to runs collection runs, evaluating the escalation
// policy after each and reconfiguring the next run accordingly. A not_ready
// decision stops the batch; an aborted run stops it too.
func (o *Orchestrator) RunBatch(ctx context.Context, query board.Query, runs int) (BatchResult, error) {
	if runs <= 0 {
		return BatchResult{}, fmt.Errorf("collect: runs must be positive, got %d", runs)
	}

	// Solver availability is probed once per batch.
	if o.cfg.Solver != nil {
		o.mu.Lock()
		o.avail.SolverAvailable = o.cfg.Solver.Available(ctx)
		o.mu.Unlock()
	}

	var res BatchResult
	for i := 0; i < runs; i++ {
		if ctx.Err() != nil {
			break
		}

		if _, err := o.RunOnce(ctx, query); err != nil {
			res.Summaries = o.Summaries()
			return res, err
		}
		res.Completed++

		decision := o.evaluate()
		res.Decision = decision

		switch decision.Recommendation {
		case escalate.Direct:
			// Healthy; keep going as configured.
		case escalate.ChallengeSolving:
			o.mu.Lock()
			o.solverEnabled = true
			o.avail.SolverUsed = true
			o.mu.Unlock()
			o.cfg.Logger.Info("collect: escalating to challenge solving")
		case escalate.AlternateRoute:
			o.mu.Lock()
			o.avail.AltRouteUsed = true
			o.mu.Unlock()
			o.cfg.Logger.Info("collect: escalating to alternate route")
			if o.cfg.Egress != nil {
				o.rotateRoute(nil, query.Board+"|"+query.Keyword, "escalation")
			}
		case escalate.NotReady:
			if i < runs-1 {
				res.Stopped = true
				o.cfg.Logger.Warn("collect: batch declared not ready, stopping",
					"completed", res.Completed, "planned", runs)
			}
		}
		if res.Stopped {
			break
		}
	}

	res.Summaries = o.Summaries()
	return res, nil
}

func (o *Orchestrator) evaluate() escalate.Decision {
	o.mu.Lock()
	defer o.mu.Unlock()
	decision := escalate.Evaluate(o.summaries, o.cfg.Targets, o.avail)
	o.lastDecision = &decision
	return decision
}
