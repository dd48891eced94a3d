package handler

import (
	"log/slog"
	"net/http"

	"github.com/swivlabs/swivd/internal/service"
)

// StatsHandler serves aggregate mirror statistics.
type StatsHandler struct {
	stats  *service.StatsService
	logger *slog.Logger
}

// NewStatsHandler creates a StatsHandler.
func NewStatsHandler(stats *service.StatsService, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{stats: stats, logger: logger}
}

// GetStats returns mirror-wide counts and protocol totals.
// GET /api/stats
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.stats.Snapshot(r.Context())
	if err != nil {
		h.logger.Error("stats snapshot failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to build stats")
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}
