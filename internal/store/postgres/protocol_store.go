package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/swivlabs/swivd/internal/domain"
)

// ProtocolStore implements domain.ProtocolStore using PostgreSQL. The table
// holds a single row keyed by domain.ProtocolKey.
type ProtocolStore struct {
	pool *pgxpool.Pool
}

// NewProtocolStore creates a new ProtocolStore backed by the given pool.
func NewProtocolStore(pool *pgxpool.Pool) *ProtocolStore {
	return &ProtocolStore{pool: pool}
}

const protocolUpsert = `
	INSERT INTO protocol (key, admin, treasury_wallet, protocol_fee_bps, paused,
		total_users, total_markets, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	ON CONFLICT (key) DO UPDATE SET
		admin            = EXCLUDED.admin,
		treasury_wallet  = EXCLUDED.treasury_wallet,
		protocol_fee_bps = EXCLUDED.protocol_fee_bps,
		paused           = EXCLUDED.paused,
		total_users      = EXCLUDED.total_users,
		total_markets    = EXCLUDED.total_markets,
		updated_at       = NOW()`

// Upsert replaces the mirrored protocol state.
func (s *ProtocolStore) Upsert(ctx context.Context, p domain.Protocol) error {
	_, err := s.pool.Exec(ctx, protocolUpsert,
		domain.ProtocolKey, p.Admin, p.TreasuryWallet, int32(p.ProtocolFeeBps),
		p.Paused, int64(p.TotalUsers), int64(p.TotalMarkets),
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert protocol: %w", err)
	}
	return nil
}

// Get retrieves the mirrored protocol state.
func (s *ProtocolStore) Get(ctx context.Context) (domain.Protocol, error) {
	var p domain.Protocol
	var feeBps int32
	var totalUsers, totalMarkets int64

	err := s.pool.QueryRow(ctx, `
		SELECT admin, treasury_wallet, protocol_fee_bps, paused,
		       total_users, total_markets, updated_at
		FROM protocol WHERE key = $1`, domain.ProtocolKey).
		Scan(&p.Admin, &p.TreasuryWallet, &feeBps, &p.Paused,
			&totalUsers, &totalMarkets, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Protocol{}, domain.ErrNotFound
		}
		return domain.Protocol{}, fmt.Errorf("postgres: get protocol: %w", err)
	}

	p.ProtocolFeeBps = uint16(feeBps)
	p.TotalUsers = uint64(totalUsers)
	p.TotalMarkets = uint64(totalMarkets)
	return p, nil
}

var _ domain.ProtocolStore = (*ProtocolStore)(nil)
