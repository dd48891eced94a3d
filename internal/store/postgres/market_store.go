package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/swivlabs/swivd/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketUpsert = `
	INSERT INTO markets (
		pool_id, address, admin, name, asset_symbol, category,
		pyth_feed_id, asset_decimals, image_url, token_mint,
		start_time, end_time, vault_balance, total_weight,
		max_accuracy_buffer, conviction_bonus_bps, resolution_target,
		is_resolved, resolution_ts, weight_finalized, total_participants,
		vault_address, metadata, status, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6,
		$7, $8, $9, $10,
		$11, $12, $13, $14,
		$15, $16, $17,
		$18, $19, $20, $21,
		$22, $23, $24, NOW()
	)
	ON CONFLICT (pool_id) DO UPDATE SET
		address              = EXCLUDED.address,
		admin                = EXCLUDED.admin,
		name                 = EXCLUDED.name,
		asset_symbol         = EXCLUDED.asset_symbol,
		category             = EXCLUDED.category,
		pyth_feed_id         = EXCLUDED.pyth_feed_id,
		asset_decimals       = EXCLUDED.asset_decimals,
		image_url            = EXCLUDED.image_url,
		token_mint           = EXCLUDED.token_mint,
		start_time           = EXCLUDED.start_time,
		end_time             = EXCLUDED.end_time,
		vault_balance        = EXCLUDED.vault_balance,
		total_weight         = EXCLUDED.total_weight,
		max_accuracy_buffer  = EXCLUDED.max_accuracy_buffer,
		conviction_bonus_bps = EXCLUDED.conviction_bonus_bps,
		resolution_target    = EXCLUDED.resolution_target,
		is_resolved          = EXCLUDED.is_resolved,
		resolution_ts        = EXCLUDED.resolution_ts,
		weight_finalized     = EXCLUDED.weight_finalized,
		total_participants   = EXCLUDED.total_participants,
		vault_address        = EXCLUDED.vault_address,
		metadata             = EXCLUDED.metadata,
		status               = EXCLUDED.status,
		updated_at           = NOW()`

// Upsert inserts or replaces the mirrored snapshot of one market. The
// resolver-owned columns (final_outcome, resolution_signature) are
// intentionally not touched so a sync pass cannot erase a recorded outcome.
func (s *MarketStore) Upsert(ctx context.Context, m domain.Market) error {
	_, err := s.pool.Exec(ctx, marketUpsert,
		int64(m.PoolID), m.Address, m.Admin, m.Name, m.AssetSymbol, m.Category,
		m.PythFeedID, m.AssetDecimals, m.ImageURL, m.TokenMint,
		m.StartTime, m.EndTime, int64(m.VaultBalance), int64(m.TotalWeight),
		int64(m.MaxAccuracyBuffer), int32(m.ConvictionBonusBps), m.ResolutionTarget,
		m.IsResolved, m.ResolutionTs, m.WeightFinalized, int64(m.TotalParticipants),
		m.VaultAddress, m.Metadata, string(m.Status),
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert market %d: %w", m.PoolID, err)
	}
	return nil
}

const marketCols = `pool_id, address, admin, name, asset_symbol, category,
	pyth_feed_id, asset_decimals, image_url, token_mint,
	start_time, end_time, vault_balance, total_weight,
	max_accuracy_buffer, conviction_bonus_bps, resolution_target,
	is_resolved, resolution_ts, weight_finalized, total_participants,
	vault_address, metadata, status, final_outcome, resolution_signature, updated_at`

// scanMarket scans a single market row into a domain.Market.
func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	var poolID, vaultBalance, totalWeight, maxAccuracyBuffer int64
	var convictionBonusBps, totalParticipants int32
	var status string

	err := row.Scan(
		&poolID, &m.Address, &m.Admin, &m.Name, &m.AssetSymbol, &m.Category,
		&m.PythFeedID, &m.AssetDecimals, &m.ImageURL, &m.TokenMint,
		&m.StartTime, &m.EndTime, &vaultBalance, &totalWeight,
		&maxAccuracyBuffer, &convictionBonusBps, &m.ResolutionTarget,
		&m.IsResolved, &m.ResolutionTs, &m.WeightFinalized, &totalParticipants,
		&m.VaultAddress, &m.Metadata, &status, &m.FinalOutcome, &m.ResolutionSignature, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}

	m.PoolID = uint64(poolID)
	m.VaultBalance = uint64(vaultBalance)
	m.TotalWeight = uint64(totalWeight)
	m.MaxAccuracyBuffer = uint64(maxAccuracyBuffer)
	m.ConvictionBonusBps = uint16(convictionBonusBps)
	m.TotalParticipants = uint32(totalParticipants)
	m.Status = domain.MarketStatus(status)
	return m, nil
}

// GetByAddress retrieves a market by its on-chain account address.
func (s *MarketStore) GetByAddress(ctx context.Context, address string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE address = $1`, address)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", address, err)
	}
	return m, nil
}

// GetByPoolID retrieves a market by the program's integer pool id.
func (s *MarketStore) GetByPoolID(ctx context.Context, poolID uint64) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE pool_id = $1`, int64(poolID))
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %d: %w", poolID, err)
	}
	return m, nil
}

func (s *MarketStore) list(ctx context.Context, query string, args ...any) ([]domain.Market, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, err
		}
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

// List returns markets ordered by newest first.
func (s *MarketStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	markets, err := s.list(ctx,
		`SELECT `+marketCols+` FROM markets ORDER BY pool_id DESC LIMIT $1 OFFSET $2`,
		limitOrDefault(opts.Limit), opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	return markets, nil
}

// ListByStatus returns markets in the given lifecycle status.
func (s *MarketStore) ListByStatus(ctx context.Context, status domain.MarketStatus, opts domain.ListOpts) ([]domain.Market, error) {
	markets, err := s.list(ctx,
		`SELECT `+marketCols+` FROM markets WHERE status = $1 ORDER BY pool_id DESC LIMIT $2 OFFSET $3`,
		string(status), limitOrDefault(opts.Limit), opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets by status %s: %w", status, err)
	}
	return markets, nil
}

// ListResolvable returns unresolved markets whose time window has elapsed.
// This is the resolver's candidate query.
func (s *MarketStore) ListResolvable(ctx context.Context, now time.Time) ([]domain.Market, error) {
	markets, err := s.list(ctx,
		`SELECT `+marketCols+` FROM markets
		 WHERE status IN ($1, $2) AND end_time < $3 ORDER BY end_time ASC`,
		string(domain.MarketStatusActive), string(domain.MarketStatusClosed), now.Unix())
	if err != nil {
		return nil, fmt.Errorf("postgres: list resolvable markets: %w", err)
	}
	return markets, nil
}

// StatusByAddress returns the mirrored status of every market keyed by its
// account address.
func (s *MarketStore) StatusByAddress(ctx context.Context) (map[string]domain.MarketStatus, error) {
	rows, err := s.pool.Query(ctx, `SELECT address, status FROM markets`)
	if err != nil {
		return nil, fmt.Errorf("postgres: market statuses: %w", err)
	}
	defer rows.Close()

	statuses := make(map[string]domain.MarketStatus)
	for rows.Next() {
		var address, status string
		if err := rows.Scan(&address, &status); err != nil {
			return nil, fmt.Errorf("postgres: scan market status: %w", err)
		}
		statuses[address] = domain.MarketStatus(status)
	}
	return statuses, rows.Err()
}

// MarkResolved transitions a market to resolved and records the scaled
// outcome and confirming transaction signature.
func (s *MarketStore) MarkResolved(ctx context.Context, poolID uint64, outcome int64, signature string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE markets
		SET status = $2, is_resolved = TRUE, final_outcome = $3,
		    resolution_signature = $4, updated_at = NOW()
		WHERE pool_id = $1`,
		int64(poolID), string(domain.MarketStatusResolved), outcome, signature,
	)
	if err != nil {
		return fmt.Errorf("postgres: mark market %d resolved: %w", poolID, err)
	}
	return nil
}

// Count returns the total number of mirrored markets.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM markets`).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return count, nil
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return 50
	}
	return limit
}

// Compile-time interface check.
var _ domain.MarketStore = (*MarketStore)(nil)
