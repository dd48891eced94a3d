package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/swivlabs/swivd/internal/domain"
)

// LeaderboardStore implements domain.LeaderboardStore using PostgreSQL.
// Writes are additive upserts so replayed events converge instead of
// clobbering accumulated totals.
type LeaderboardStore struct {
	pool *pgxpool.Pool
}

// NewLeaderboardStore creates a new LeaderboardStore backed by the given pool.
func NewLeaderboardStore(pool *pgxpool.Pool) *LeaderboardStore {
	return &LeaderboardStore{pool: pool}
}

// AddEarnings accrues claimed reward value to the wallet's running total.
func (s *LeaderboardStore) AddEarnings(ctx context.Context, wallet string, amount float64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO leaderboard (wallet, earnings, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (wallet) DO UPDATE SET
			earnings   = leaderboard.earnings + EXCLUDED.earnings,
			updated_at = NOW()`,
		wallet, amount,
	)
	if err != nil {
		return fmt.Errorf("postgres: add earnings for %s: %w", wallet, err)
	}
	return nil
}

// RecordResult increments the wallet's prediction tally and its win or loss
// counter.
func (s *LeaderboardStore) RecordResult(ctx context.Context, wallet string, won bool) error {
	wins, losses := int64(0), int64(1)
	if won {
		wins, losses = 1, 0
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO leaderboard (wallet, total_predictions, wins, losses, updated_at)
		VALUES ($1, 1, $2, $3, NOW())
		ON CONFLICT (wallet) DO UPDATE SET
			total_predictions = leaderboard.total_predictions + 1,
			wins              = leaderboard.wins + EXCLUDED.wins,
			losses            = leaderboard.losses + EXCLUDED.losses,
			updated_at        = NOW()`,
		wallet, wins, losses,
	)
	if err != nil {
		return fmt.Errorf("postgres: record result for %s: %w", wallet, err)
	}
	return nil
}

const leaderboardCols = `wallet, total_predictions, wins, losses, earnings, updated_at`

func scanLeaderboardEntry(row pgx.Row) (domain.LeaderboardEntry, error) {
	var e domain.LeaderboardEntry
	err := row.Scan(&e.Wallet, &e.TotalPredictions, &e.Wins, &e.Losses, &e.Earnings, &e.UpdatedAt)
	if err != nil {
		return domain.LeaderboardEntry{}, err
	}
	return e, nil
}

// Get retrieves one wallet's leaderboard entry.
func (s *LeaderboardStore) Get(ctx context.Context, wallet string) (domain.LeaderboardEntry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+leaderboardCols+` FROM leaderboard WHERE wallet = $1`, wallet)
	e, err := scanLeaderboardEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.LeaderboardEntry{}, domain.ErrNotFound
		}
		return domain.LeaderboardEntry{}, fmt.Errorf("postgres: get leaderboard entry %s: %w", wallet, err)
	}
	return e, nil
}

// Top returns the highest earners in descending order.
func (s *LeaderboardStore) Top(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+leaderboardCols+` FROM leaderboard ORDER BY earnings DESC LIMIT $1`,
		limitOrDefault(limit))
	if err != nil {
		return nil, fmt.Errorf("postgres: leaderboard top: %w", err)
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	for rows.Next() {
		e, err := scanLeaderboardEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan leaderboard entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

var _ domain.LeaderboardStore = (*LeaderboardStore)(nil)
