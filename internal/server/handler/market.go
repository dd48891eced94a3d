package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/swivlabs/swivd/internal/domain"
)

// MarketHandler serves market endpoints straight off the mirror.
type MarketHandler struct {
	markets domain.MarketStore
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(markets domain.MarketStore, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{markets: markets, logger: logger}
}

type listMarketsResponse struct {
	Markets []domain.Market `json:"markets"`
	Total   int64           `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// ListMarkets returns markets, optionally filtered by status.
// GET /api/markets?status=active&limit=50&offset=0
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	var markets []domain.Market
	var err error
	if status := r.URL.Query().Get("status"); status != "" {
		markets, err = h.markets.ListByStatus(r.Context(), domain.MarketStatus(status), opts)
	} else {
		markets, err = h.markets.List(r.Context(), opts)
	}
	if err != nil {
		h.logger.Error("list markets failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to list markets")
		return
	}

	total, err := h.markets.Count(r.Context())
	if err != nil {
		h.logger.Error("count markets failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to count markets")
		return
	}

	if markets == nil {
		markets = []domain.Market{}
	}
	writeJSON(w, http.StatusOK, listMarketsResponse{
		Markets: markets,
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}

// GetMarket returns one market by integer pool id or account address.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	var market domain.Market
	var err error
	if poolID, parseErr := strconv.ParseUint(id, 10, 64); parseErr == nil {
		market, err = h.markets.GetByPoolID(r.Context(), poolID)
	} else {
		market, err = h.markets.GetByAddress(r.Context(), id)
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "market not found")
			return
		}
		h.logger.Error("get market failed",
			slog.String("market_id", id),
			slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to get market")
		return
	}

	writeJSON(w, http.StatusOK, market)
}
