// Command chasse runs the job collection reliability engine.
//
// Usage:
//
//	chasse -config chasse.yaml                          # one batch per board
//	chasse -config chasse.yaml -runs 10                 # runs per batch
//	chasse -config chasse.yaml -schedule "0 */6 * * *"  # recurring batches
//	chasse -config chasse.yaml -api                     # serve the status API
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/chasse/config"
	"github.com/hazyhaar/chasse/dedupe"
)

// defaultBatchRuns is the report's minimum sample size.
const defaultBatchRuns = 5

func main() {
	configPath := flag.String("config", "", "path to chasse.yaml config file")
	runs := flag.Int("runs", 0, "runs per reliability batch (0 = report minimum)")
	schedule := flag.String("schedule", "", "cron expression for recurring batches")
	serveAPI := flag.Bool("api", false, "serve the status API")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *runs, *schedule, *serveAPI); err != nil {
		logger.Error("chasse: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath string, runs int, schedule string, serveAPI bool) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if runs <= 0 {
		runs = defaultBatchRuns
	}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	eng := newEngine(cfg, store, logger)
	defer eng.Close()

	if serveAPI {
		srv := &http.Server{Addr: cfg.API.Addr, Handler: eng.apiHandler()}
		go func() {
			logger.Info("chasse: status api listening", "addr", cfg.API.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("chasse: api server", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	if schedule == "" {
		return eng.runBatches(ctx, runs)
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if err := eng.runBatches(ctx, runs); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("chasse: scheduled batch failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("chasse: bad schedule %q: %w", schedule, err)
	}
	c.Start()
	logger.Info("chasse: scheduler started", "schedule", schedule)
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (dedupe.Store, error) {
	switch cfg.Dedupe.Backend {
	case "log":
		return dedupe.OpenLog(cfg.Dedupe.Path, logger)
	case "sqlite":
		return dedupe.OpenSQL(cfg.Dedupe.Path)
	case "postgres":
		return dedupe.OpenPG(ctx, cfg.Dedupe.DSN)
	}
	return nil, fmt.Errorf("chasse: unknown dedupe backend %q", cfg.Dedupe.Backend)
}
