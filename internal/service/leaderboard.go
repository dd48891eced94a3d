// Package service holds application services composed from stores.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/swivlabs/swivd/internal/domain"
)

// tokenDecimals is the deposit token's base-unit scale. Claimed reward
// amounts arrive in base units and are surfaced as whole tokens.
const tokenDecimals = 1e6

// Leaderboard maintains per-wallet aggregates from claim events and
// resolution outcomes.
type Leaderboard struct {
	store  domain.LeaderboardStore
	bets   domain.BetStore
	logger *slog.Logger
}

// NewLeaderboard creates a leaderboard service.
func NewLeaderboard(store domain.LeaderboardStore, bets domain.BetStore, logger *slog.Logger) *Leaderboard {
	return &Leaderboard{
		store:  store,
		bets:   bets,
		logger: logger.With(slog.String("component", "leaderboard")),
	}
}

// AccrueReward credits a claimed reward to the wallet's earnings total.
// The amount is in token base units.
func (l *Leaderboard) AccrueReward(ctx context.Context, wallet string, amount uint64) error {
	value := float64(amount) / tokenDecimals
	if err := l.store.AddEarnings(ctx, wallet, value); err != nil {
		return fmt.Errorf("service: accrue reward: %w", err)
	}
	l.logger.Info("reward accrued",
		slog.String("wallet", wallet),
		slog.Float64("amount", value))
	return nil
}

// RecordMarketOutcome tallies a win or loss for every bet on a freshly
// resolved market. A prediction within the market's accuracy buffer of the
// outcome counts as a win. Per-bet failures are logged, not propagated.
func (l *Leaderboard) RecordMarketOutcome(ctx context.Context, market domain.Market, outcome int64) error {
	const pageSize = 500
	for offset := 0; ; offset += pageSize {
		bets, err := l.bets.ListByPool(ctx, market.PoolID, domain.ListOpts{Limit: pageSize, Offset: offset})
		if err != nil {
			return fmt.Errorf("service: list bets for pool %d: %w", market.PoolID, err)
		}
		if len(bets) == 0 {
			return nil
		}

		for _, bet := range bets {
			won := absDiff(bet.Prediction, outcome) <= market.MaxAccuracyBuffer
			if err := l.store.RecordResult(ctx, bet.Owner, won); err != nil {
				l.logger.Error("record result",
					slog.String("wallet", bet.Owner),
					slog.Any("error", err))
			}
		}

		if len(bets) < pageSize {
			return nil
		}
	}
}

// Top returns the highest earners.
func (l *Leaderboard) Top(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	return l.store.Top(ctx, limit)
}

// Get returns one wallet's aggregates.
func (l *Leaderboard) Get(ctx context.Context, wallet string) (domain.LeaderboardEntry, error) {
	return l.store.Get(ctx, wallet)
}

func absDiff(a, b int64) uint64 {
	if a > b {
		return uint64(a - b)
	}
	return uint64(b - a)
}
