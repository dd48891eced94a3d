package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/swivlabs/swivd/internal/domain"
)

// BetStore implements domain.BetStore using PostgreSQL.
type BetStore struct {
	pool *pgxpool.Pool
}

// NewBetStore creates a new BetStore backed by the given connection pool.
func NewBetStore(pool *pgxpool.Pool) *BetStore {
	return &BetStore{pool: pool}
}

const betUpsert = `
	INSERT INTO bets (
		address, owner_wallet, pool_address, pool_id, deposit, prediction,
		calculated_weight, is_weight_added, status, creation_ts,
		end_timestamp, update_count, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
	ON CONFLICT (address) DO UPDATE SET
		owner_wallet      = EXCLUDED.owner_wallet,
		pool_address      = EXCLUDED.pool_address,
		pool_id           = EXCLUDED.pool_id,
		deposit           = EXCLUDED.deposit,
		prediction        = EXCLUDED.prediction,
		calculated_weight = EXCLUDED.calculated_weight,
		is_weight_added   = EXCLUDED.is_weight_added,
		status            = EXCLUDED.status,
		creation_ts       = EXCLUDED.creation_ts,
		end_timestamp     = EXCLUDED.end_timestamp,
		update_count      = EXCLUDED.update_count,
		updated_at        = NOW()`

// Upsert inserts or replaces the mirrored snapshot of one bet.
func (s *BetStore) Upsert(ctx context.Context, b domain.Bet) error {
	_, err := s.pool.Exec(ctx, betUpsert,
		b.Address, b.Owner, b.Market, int64(b.PoolID), int64(b.Deposit), b.Prediction,
		int64(b.CalculatedWeight), b.IsWeightAdded, string(b.Status), b.CreationTs,
		b.EndTimestamp, int64(b.UpdateCount),
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert bet %s: %w", b.Address, err)
	}
	return nil
}

const betCols = `address, owner_wallet, pool_address, pool_id, deposit, prediction,
	calculated_weight, is_weight_added, status, creation_ts,
	end_timestamp, update_count, updated_at`

func scanBet(row pgx.Row) (domain.Bet, error) {
	var b domain.Bet
	var poolID, deposit, calculatedWeight int64
	var updateCount int32
	var status string

	err := row.Scan(
		&b.Address, &b.Owner, &b.Market, &poolID, &deposit, &b.Prediction,
		&calculatedWeight, &b.IsWeightAdded, &status, &b.CreationTs,
		&b.EndTimestamp, &updateCount, &b.UpdatedAt,
	)
	if err != nil {
		return domain.Bet{}, err
	}

	b.PoolID = uint64(poolID)
	b.Deposit = uint64(deposit)
	b.CalculatedWeight = uint64(calculatedWeight)
	b.UpdateCount = uint32(updateCount)
	b.Status = domain.BetStatus(status)
	return b, nil
}

// GetByAddress retrieves a bet by its on-chain account address.
func (s *BetStore) GetByAddress(ctx context.Context, address string) (domain.Bet, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+betCols+` FROM bets WHERE address = $1`, address)
	b, err := scanBet(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Bet{}, domain.ErrNotFound
		}
		return domain.Bet{}, fmt.Errorf("postgres: get bet %s: %w", address, err)
	}
	return b, nil
}

// Addresses returns the set of mirrored bet addresses. The sync engine uses
// this to diff against the on-chain account list.
func (s *BetStore) Addresses(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx, `SELECT address FROM bets`)
	if err != nil {
		return nil, fmt.Errorf("postgres: bet addresses: %w", err)
	}
	defer rows.Close()

	addresses := make(map[string]struct{})
	for rows.Next() {
		var address string
		if err := rows.Scan(&address); err != nil {
			return nil, fmt.Errorf("postgres: scan bet address: %w", err)
		}
		addresses[address] = struct{}{}
	}
	return addresses, rows.Err()
}

func (s *BetStore) list(ctx context.Context, query string, args ...any) ([]domain.Bet, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bets []domain.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		bets = append(bets, b)
	}
	return bets, rows.Err()
}

// ListByPool returns bets placed on the given pool.
func (s *BetStore) ListByPool(ctx context.Context, poolID uint64, opts domain.ListOpts) ([]domain.Bet, error) {
	bets, err := s.list(ctx,
		`SELECT `+betCols+` FROM bets WHERE pool_id = $1 ORDER BY creation_ts DESC LIMIT $2 OFFSET $3`,
		int64(poolID), limitOrDefault(opts.Limit), opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bets for pool %d: %w", poolID, err)
	}
	return bets, nil
}

// ListByWallet returns bets owned by the given wallet.
func (s *BetStore) ListByWallet(ctx context.Context, wallet string, opts domain.ListOpts) ([]domain.Bet, error) {
	bets, err := s.list(ctx,
		`SELECT `+betCols+` FROM bets WHERE owner_wallet = $1 ORDER BY creation_ts DESC LIMIT $2 OFFSET $3`,
		wallet, limitOrDefault(opts.Limit), opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bets for wallet %s: %w", wallet, err)
	}
	return bets, nil
}

// Count returns the total number of mirrored bets.
func (s *BetStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM bets`).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count bets: %w", err)
	}
	return count, nil
}

var _ domain.BetStore = (*BetStore)(nil)
