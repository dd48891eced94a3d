package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/swivlabs/swivd/internal/domain"
)

// Stats summarizes the mirror for the API.
type Stats struct {
	Markets        int64            `json:"markets"`
	Bets           int64            `json:"bets"`
	Users          int64            `json:"users"`
	ProtocolPaused bool             `json:"protocol_paused"`
	Protocol       *domain.Protocol `json:"protocol,omitempty"`
}

// StatsService aggregates counts across stores.
type StatsService struct {
	markets  domain.MarketStore
	bets     domain.BetStore
	users    domain.UserStore
	protocol domain.ProtocolStore
}

// NewStatsService creates a stats service.
func NewStatsService(markets domain.MarketStore, bets domain.BetStore, users domain.UserStore, protocol domain.ProtocolStore) *StatsService {
	return &StatsService{markets: markets, bets: bets, users: users, protocol: protocol}
}

// Snapshot returns current mirror totals. A missing protocol row is not an
// error; it just means the first sync has not completed yet.
func (s *StatsService) Snapshot(ctx context.Context) (Stats, error) {
	var stats Stats
	var err error

	if stats.Markets, err = s.markets.Count(ctx); err != nil {
		return Stats{}, fmt.Errorf("service: count markets: %w", err)
	}
	if stats.Bets, err = s.bets.Count(ctx); err != nil {
		return Stats{}, fmt.Errorf("service: count bets: %w", err)
	}
	if stats.Users, err = s.users.Count(ctx); err != nil {
		return Stats{}, fmt.Errorf("service: count users: %w", err)
	}

	p, err := s.protocol.Get(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return Stats{}, fmt.Errorf("service: protocol state: %w", err)
		}
		return stats, nil
	}
	stats.Protocol = &p
	stats.ProtocolPaused = p.Paused
	return stats, nil
}
