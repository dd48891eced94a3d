package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/swivlabs/swivd/internal/domain"
)

// BetHandler serves mirrored bet records.
type BetHandler struct {
	bets    domain.BetStore
	markets domain.MarketStore
	logger  *slog.Logger
}

// NewBetHandler creates a BetHandler.
func NewBetHandler(bets domain.BetStore, markets domain.MarketStore, logger *slog.Logger) *BetHandler {
	return &BetHandler{bets: bets, markets: markets, logger: logger}
}

type listBetsResponse struct {
	Bets   []domain.Bet `json:"bets"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

// ListMarketBets returns bets for one market, identified by pool id or address.
// GET /api/markets/{id}/bets
func (h *BetHandler) ListMarketBets(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	poolID, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		market, lookupErr := h.markets.GetByAddress(r.Context(), id)
		if lookupErr != nil {
			if errors.Is(lookupErr, domain.ErrNotFound) {
				writeError(w, http.StatusNotFound, "market not found")
				return
			}
			h.logger.Error("resolve market failed",
				slog.String("market_id", id),
				slog.Any("error", lookupErr))
			writeError(w, http.StatusInternalServerError, "failed to resolve market")
			return
		}
		poolID = market.PoolID
	}

	opts := parseListOpts(r)
	bets, err := h.bets.ListByPool(r.Context(), poolID, opts)
	if err != nil {
		h.logger.Error("list market bets failed",
			slog.Uint64("pool_id", poolID),
			slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to list bets")
		return
	}

	if bets == nil {
		bets = []domain.Bet{}
	}
	writeJSON(w, http.StatusOK, listBetsResponse{Bets: bets, Limit: opts.Limit, Offset: opts.Offset})
}

// ListWalletBets returns all mirrored bets placed by a wallet.
// GET /api/wallets/{wallet}/bets
func (h *BetHandler) ListWalletBets(w http.ResponseWriter, r *http.Request) {
	wallet := r.PathValue("wallet")
	if wallet == "" {
		writeError(w, http.StatusBadRequest, "missing wallet")
		return
	}

	opts := parseListOpts(r)
	bets, err := h.bets.ListByWallet(r.Context(), wallet, opts)
	if err != nil {
		h.logger.Error("list wallet bets failed",
			slog.String("wallet", wallet),
			slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to list bets")
		return
	}

	if bets == nil {
		bets = []domain.Bet{}
	}
	writeJSON(w, http.StatusOK, listBetsResponse{Bets: bets, Limit: opts.Limit, Offset: opts.Offset})
}
