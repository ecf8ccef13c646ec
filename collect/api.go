package collect

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// API serves the orchestrator's observable state over HTTP.
type API struct {
	orch   *Orchestrator
	logger *slog.Logger
}

// NewAPI creates the status API around an orchestrator.
func NewAPI(orch *Orchestrator, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{orch: orch, logger: logger}
}

// Router builds the chi router. Mounted at the root by cmd/chasse.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", a.handleHealthz)
	r.Get("/status", a.handleStatus)
	r.Get("/metrics/latest", a.handleMetricsLatest)
	r.Get("/decision", a.handleDecision)
	r.Get("/fingerprints/count", a.handleFingerprintCount)
	return r
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]any{
		"state": string(a.orch.State()),
		"runs":  len(a.orch.Summaries()),
	})
}

func (a *API) handleMetricsLatest(w http.ResponseWriter, r *http.Request) {
	snap, ok := a.orch.LastSnapshot()
	if !ok {
		a.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no completed run"})
		return
	}
	a.writeJSON(w, http.StatusOK, snap)
}

func (a *API) handleDecision(w http.ResponseWriter, r *http.Request) {
	decision, ok := a.orch.LastDecision()
	if !ok {
		a.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no decision yet"})
		return
	}
	a.writeJSON(w, http.StatusOK, decision)
}

func (a *API) handleFingerprintCount(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]int{"count": a.orch.FingerprintCount()})
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("api: encode response", "error", err)
	}
}
