package analytics

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

const maxTopQueries = 100

type Handler struct {
	aggregator *Aggregator
	logger     *slog.Logger
}

func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{
		aggregator: aggregator,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

// ModelStats is the per-model view returned when ?model= is given.
type ModelStats struct {
	Model   string `json:"model"`
	Queries int64  `json:"queries"`
	Share   string `json:"share"`
}

// Stats handles GET /api/v1/analytics?top=N&model=signature. top bounds the
// query rankings (default 10, at most 100); model narrows the answer to one
// retrieval model's query count.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	top := defaultTopQueries
	if v := r.URL.Query().Get("top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxTopQueries {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "top must be an integer in [1,100]"})
			return
		}
		top = n
	}
	stats := h.aggregator.Snapshot(top)

	name := r.URL.Query().Get("model")
	if name == "" {
		h.writeJSON(w, http.StatusOK, stats)
		return
	}
	n, ok := stats.QueriesByModel[name]
	if !ok {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no queries recorded for model " + name})
		return
	}
	share := 0.0
	if stats.TotalQueries > 0 {
		share = float64(n) / float64(stats.TotalQueries) * 100
	}
	h.writeJSON(w, http.StatusOK, ModelStats{Model: name, Queries: n, Share: strconv.FormatFloat(share, 'f', 1, 64) + "%"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}
