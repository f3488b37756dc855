package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// Handler serves the streaming statistics over HTTP.
type Handler struct {
	aggregator *Aggregator
	logger     *slog.Logger
}

// NewHandler creates a Handler for the aggregator.
func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{
		aggregator: aggregator,
		logger:     slog.Default().With("component", "stats-handler"),
	}
}

// Stats writes the current statistics snapshot. The kind query parameter
// optionally restricts the output to one document kind.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	records := h.aggregator.Snapshot(r.URL.Query().Get("kind"))
	seen, bad := h.aggregator.Counters()
	resp := StatsResponse{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		RecordsSeen: seen,
		RecordsBad:  bad,
		Groups:      len(records),
		Records:     records,
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to write stats response", "error", err)
	}
}
