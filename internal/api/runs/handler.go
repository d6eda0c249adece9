package runs

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"prodigy/internal/domain/counsel"
	counselsvc "prodigy/internal/services/counsel"
	"prodigy/pkg/errors"
	"prodigy/pkg/logger"
)

const maxBriefBytes = 1 << 20

// Service is the part of counselsvc.Service the handler needs
type Service interface {
	Evaluate(ctx context.Context, brief *counsel.Brief) (*counselsvc.Outcome, error)
	Get(ctx context.Context, id uuid.UUID) (*counsel.Record, error)
	List(ctx context.Context, limit int) ([]*counsel.Record, error)
}

// Handler serves the /v1/runs endpoints
type Handler struct {
	svc Service
	log *logger.Logger
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc, log: logger.Get().With("component", "runs_api")}
}

// Register mounts the routes on mux
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/runs", h.HandleCreate)
	mux.HandleFunc("GET /v1/runs", h.HandleList)
	mux.HandleFunc("GET /v1/runs/{id}", h.HandleGet)
}

// HandleCreate evaluates a brief (JSON, or YAML by content type) and returns the report.
// It blocks for the whole run.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBriefBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "brief too large")
		return
	}

	format := "json"
	if ct := r.Header.Get("Content-Type"); strings.Contains(ct, "yaml") {
		format = "yaml"
	}
	brief, err := counsel.ParseBrief(body, format)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := h.svc.Evaluate(r.Context(), brief)
	if err != nil {
		code := statusFor(err)
		if code >= http.StatusInternalServerError {
			h.log.ErrorWithContext(r.Context(), err, map[string]string{"component": "runs_api", "idea": brief.IdeaName})
		}
		writeError(w, code, err.Error())
		return
	}

	if out.SaveErr != nil {
		w.Header().Set("X-Persist-Warning", "run not saved to every store")
	}
	w.Header().Set("Location", "/v1/runs/"+out.Run.ID.String())
	writeJSON(w, http.StatusCreated, out.Run.Report())
}

// HandleGet returns the stored report of one run
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	rec, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rec.Report)
}

// RunSummary is one row of the run listing
type RunSummary struct {
	ID              uuid.UUID `json:"id"`
	IdeaName        string    `json:"idea_name"`
	OverallScore    float64   `json:"overall_score"`
	OverallDecision string    `json:"overall_decision"`
	Challenged      bool      `json:"challenged"`
	CostUSD         float64   `json:"cost_usd"`
	CreatedAt       time.Time `json:"created_at"`
}

// HandleList returns recent runs without their reports; ?limit= caps the count (default 20, max 100)
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, 100)
	}

	records, err := h.svc.List(r.Context(), limit)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	out := make([]RunSummary, 0, len(records))
	for _, rec := range records {
		out = append(out, RunSummary{
			ID:              rec.ID,
			IdeaName:        rec.IdeaName,
			OverallScore:    rec.OverallScore,
			OverallDecision: rec.OverallDecision,
			Challenged:      rec.Challenged,
			CostUSD:         rec.CostUSD,
			CreatedAt:       rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": out})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errors.ErrQuotaExceeded), errors.Is(err, errors.ErrRateLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, errors.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, errors.ErrRetriesExhausted),
		errors.Is(err, errors.ErrMalformedPayload),
		errors.Is(err, errors.ErrProviderUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, errors.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
