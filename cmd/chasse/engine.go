package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/chasse/board"
	"github.com/hazyhaar/chasse/collect"
	"github.com/hazyhaar/chasse/config"
	"github.com/hazyhaar/chasse/dedupe"
	"github.com/hazyhaar/chasse/egress"
	"github.com/hazyhaar/chasse/enrich"
	"github.com/hazyhaar/chasse/escalate"
	"github.com/hazyhaar/chasse/fetch"
	"github.com/hazyhaar/chasse/report"
)

// engine binds the configured capabilities to one process lifetime. Each
// board+keyword pair gets its own orchestrator so escalation decisions never
// mix boards; the fingerprint store, egress manager, browser and solver are
// shared across batches.
type engine struct {
	cfg      *config.Config
	store    dedupe.Store
	registry *board.Registry
	egress   *egress.Manager
	browser  *fetch.Browser
	solver   *fetch.Solver
	logger   *slog.Logger

	// api points at the current batch's status routes.
	api atomic.Pointer[http.Handler]
}

func newEngine(cfg *config.Config, store dedupe.Store, logger *slog.Logger) *engine {
	return &engine{
		cfg:      cfg,
		store:    store,
		registry: board.NewRegistry(),
		egress: egress.NewManager(egress.Config{
			Enabled:          cfg.Proxy.Enabled,
			Provider:         cfg.Proxy.Provider,
			Server:           cfg.Proxy.Server,
			Username:         cfg.Proxy.Username,
			Password:         cfg.Proxy.Password,
			UsernameTemplate: cfg.Proxy.UsernameTemplate,
			Sticky:           cfg.Proxy.StickyEnabled(),
			SessionScope:     egress.Scope(cfg.Proxy.SessionScope),
			PoolSize:         cfg.Proxy.PoolSize,
			SessionTTL:       cfg.Proxy.SessionTTL.Std(),
			RotateThreshold:  cfg.Proxy.RotateThreshold,
			Logger:           logger,
		}),
		browser: fetch.NewBrowser(fetch.BrowserConfig{Logger: logger}),
		solver: fetch.NewSolver(fetch.SolverConfig{
			URL:     cfg.Solver.URL,
			Timeout: cfg.Solver.Timeout.Std(),
			Logger:  logger,
		}),
		logger: logger,
	}
}

func (e *engine) Close() {
	if err := e.browser.Close(); err != nil {
		e.logger.Warn("chasse: browser close", "error", err)
	}
}

// apiHandler delegates to the current batch's routes; 503 before any batch.
func (e *engine) apiHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := e.api.Load()
		if h == nil {
			http.Error(w, "no batch started", http.StatusServiceUnavailable)
			return
		}
		(*h).ServeHTTP(w, r)
	})
}

// runBatches runs one reliability batch per configured board+keyword pair.
func (e *engine) runBatches(ctx context.Context, runs int) error {
	keywords := e.cfg.Search.Keywords
	if len(keywords) == 0 {
		keywords = []string{"software engineer"}
	}
	for _, boardID := range e.cfg.Search.Boards {
		for _, keyword := range keywords {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := e.runBatch(ctx, boardID, keyword, runs); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *engine) runBatch(ctx context.Context, boardID, keyword string, runs int) error {
	query := board.Query{
		Keyword:    keyword,
		Location:   e.cfg.Search.Location,
		MaxResults: e.cfg.Search.MaxResults,
		Board:      boardID,
	}
	p := &pipeline{
		registry: e.registry,
		client:   e.newClient(boardID + "|" + keyword),
		browser:  e.browser,
	}

	orch, err := collect.New(collect.Config{
		Store:       e.store,
		Collector:   p,
		FetchDetail: p.FetchDetail,
		Queue: enrich.Config{
			Concurrency: e.cfg.Queue.Concurrency,
			MaxAttempts: e.cfg.Queue.MaxAttempts,
			BaseDelay:   e.cfg.Queue.BaseDelay.Std(),
			MaxDelay:    e.cfg.Queue.MaxDelay.Std(),
			ItemTimeout: e.cfg.Queue.ItemTimeout.Std(),
			Logger:      e.logger,
		},
		Egress:  e.egress,
		Solver:  &clearanceSolver{solver: e.solver, browser: e.browser},
		Browser: e.browser,
		Targets: escalate.Targets{
			PassRate:         e.cfg.Targets.PassRate,
			Coverage:         e.cfg.Targets.Coverage,
			MaxFailureStreak: e.cfg.Targets.MaxFailureStreak,
		},
		MetricsTemplate: e.cfg.Output.MetricsTemplate,
		Logger:          e.logger,
	})
	if err != nil {
		return err
	}

	handler := collect.NewAPI(orch, e.logger).Router()
	e.api.Store(&handler)

	res, batchErr := orch.RunBatch(ctx, query, runs)
	if batchErr != nil && !errors.Is(batchErr, context.Canceled) {
		e.logger.Error("chasse: batch aborted", "board", boardID, "error", batchErr)
	}

	rep := report.Build(boardID, res.Summaries, report.Criteria{
		TargetSuccessRate: e.cfg.Targets.PassRate,
		MaxFailureStreak:  e.cfg.Targets.MaxFailureStreak,
	}, res.Decision)
	base := fmt.Sprintf("%s_viability_%s", boardID, time.Now().UTC().Format("20060102_150405"))
	mdPath, jsonPath, werr := rep.WriteFiles(e.cfg.Output.ReportDir, base)
	if werr != nil {
		e.logger.Error("chasse: report write failed", "error", werr)
	} else {
		e.logger.Info("chasse: report written", "markdown", mdPath, "json", jsonPath)
	}

	fmt.Println(renderSummary(boardID, keyword, res, rep))
	return batchErr
}

// newClient builds the HTTP acquisition path for one batch. One client per
// batch keeps the circuit breaker scoped to a single board.
func (e *engine) newClient(affinity string) *fetch.Client {
	cc := fetch.ClientConfig{
		UserAgent: e.cfg.Fetch.UserAgent,
		Timeout:   e.cfg.Fetch.Timeout.Std(),
		Delay:     e.cfg.Fetch.Delay.Std(),
		Jitter:    e.cfg.Fetch.Jitter.Std(),
		Logger:    e.logger,
	}
	if raw := e.egress.ProxyURL(affinity); raw != "" {
		if u, err := url.Parse(raw); err == nil {
			cc.Proxy = u
		} else {
			e.logger.Warn("chasse: bad proxy url", "error", err)
		}
	}
	return fetch.NewClient(cc)
}
