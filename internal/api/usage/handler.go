package usage

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"prodigy/internal/domain/usage"
	"prodigy/pkg/errors"
	"prodigy/pkg/logger"
)

// Budget reports what is left of today's spending limit
type Budget interface {
	RemainingDailyBudget(ctx context.Context) (decimal.Decimal, error)
}

// Handler serves spend analytics over the usage log
type Handler struct {
	repo   usage.Repository
	budget Budget
	log    *logger.Logger
	now    func() time.Time
}

// NewHandler creates a handler; budget may be nil when no daily limit is configured
func NewHandler(repo usage.Repository, budget Budget) *Handler {
	return &Handler{
		repo:   repo,
		budget: budget,
		log:    logger.Get().With("component", "usage_api"),
		now:    time.Now,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/usage", h.HandleTotals)
	mux.HandleFunc("GET /v1/usage/runs/{id}", h.HandleRunCost)
}

// HandleTotals returns per-agent totals over ?window= (Go duration, default 24h)
func (h *Handler) HandleTotals(w http.ResponseWriter, r *http.Request) {
	window := 24 * time.Hour
	if raw := r.URL.Query().Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "window must be a positive duration"})
			return
		}
		window = d
	}

	since := h.now().Add(-window)
	totals, err := h.repo.TotalsByAgent(r.Context(), since)
	if err != nil {
		h.log.Warnw("Usage totals query failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}

	var cost float64
	for _, t := range totals {
		cost += t.CostUSD
	}

	resp := map[string]any{
		"since":    since.UTC(),
		"agents":   totals,
		"cost_usd": cost,
	}
	if h.budget != nil {
		if remaining, err := h.budget.RemainingDailyBudget(r.Context()); err == nil {
			resp["daily_budget_remaining_usd"] = remaining.InexactFloat64()
		} else if !errors.Is(err, errors.ErrUnavailable) {
			h.log.Warnw("Daily budget lookup failed", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleRunCost returns the recorded spend of one run
func (h *Handler) HandleRunCost(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid run id"})
		return
	}

	cost, err := h.repo.RunCost(r.Context(), id.String())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run_id": id, "cost_usd": cost})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
