package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/swivlabs/swivd/internal/domain"
	"github.com/swivlabs/swivd/internal/service"
)

// LeaderboardHandler serves leaderboard rankings.
type LeaderboardHandler struct {
	leaderboard *service.Leaderboard
	logger      *slog.Logger
}

// NewLeaderboardHandler creates a LeaderboardHandler.
func NewLeaderboardHandler(leaderboard *service.Leaderboard, logger *slog.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboard: leaderboard, logger: logger}
}

type leaderboardResponse struct {
	Entries []domain.LeaderboardEntry `json:"entries"`
	Limit   int                       `json:"limit"`
}

// Top returns the top wallets ranked by earnings.
// GET /api/leaderboard?limit=25
func (h *LeaderboardHandler) Top(w http.ResponseWriter, r *http.Request) {
	limit := 25
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 200 {
		limit = 200
	}

	entries, err := h.leaderboard.Top(r.Context(), limit)
	if err != nil {
		h.logger.Error("leaderboard top failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to load leaderboard")
		return
	}

	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, leaderboardResponse{Entries: entries, Limit: limit})
}

// GetEntry returns the leaderboard row for a single wallet.
// GET /api/leaderboard/{wallet}
func (h *LeaderboardHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	wallet := r.PathValue("wallet")
	if wallet == "" {
		writeError(w, http.StatusBadRequest, "missing wallet")
		return
	}

	entry, err := h.leaderboard.Get(r.Context(), wallet)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "wallet not ranked")
			return
		}
		h.logger.Error("leaderboard entry failed",
			slog.String("wallet", wallet),
			slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to load leaderboard entry")
		return
	}

	writeJSON(w, http.StatusOK, entry)
}
