package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// MarketStore persists the market mirror. Upserts key on the program's
// integer pool id.
type MarketStore interface {
	Upsert(ctx context.Context, market Market) error
	GetByAddress(ctx context.Context, address string) (Market, error)
	GetByPoolID(ctx context.Context, poolID uint64) (Market, error)
	List(ctx context.Context, opts ListOpts) ([]Market, error)
	ListByStatus(ctx context.Context, status MarketStatus, opts ListOpts) ([]Market, error)
	// ListResolvable returns unresolved markets whose end time is strictly
	// before now. Covers both active rows and rows a sync pass already
	// derived as closed, so a full sweep landing between market end and the
	// next resolution tick cannot hide a candidate.
	ListResolvable(ctx context.Context, now time.Time) ([]Market, error)
	// StatusByAddress returns the mirrored status of every known market,
	// keyed by pool account address. Used by the full sync to apply the
	// terminal-state skip rule without fetching whole rows.
	StatusByAddress(ctx context.Context) (map[string]MarketStatus, error)
	// MarkResolved transitions a market to resolved and records the scaled
	// outcome and the confirming transaction signature.
	MarkResolved(ctx context.Context, poolID uint64, outcome int64, signature string) error
	Count(ctx context.Context) (int64, error)
}

// BetStore persists the bet mirror. Upserts key on the bet account address.
type BetStore interface {
	Upsert(ctx context.Context, bet Bet) error
	GetByAddress(ctx context.Context, address string) (Bet, error)
	// Addresses returns the set of bet account addresses already mirrored.
	// The full bet sync diffs the on-chain set against this.
	Addresses(ctx context.Context) (map[string]struct{}, error)
	ListByPool(ctx context.Context, poolID uint64, opts ListOpts) ([]Bet, error)
	ListByWallet(ctx context.Context, wallet string, opts ListOpts) ([]Bet, error)
	Count(ctx context.Context) (int64, error)
}

// UserStore persists known wallets.
type UserStore interface {
	// EnsureExists creates the wallet row if absent. Idempotent.
	EnsureExists(ctx context.Context, wallet string) error
	Get(ctx context.Context, wallet string) (User, error)
	Count(ctx context.Context) (int64, error)
}

// ProtocolStore persists the protocol singleton.
type ProtocolStore interface {
	Upsert(ctx context.Context, p Protocol) error
	Get(ctx context.Context) (Protocol, error)
}

// LeaderboardStore persists per-wallet aggregates. All mutations are
// additive upserts so replayed events at worst repeat an accrual, never
// corrupt a row.
type LeaderboardStore interface {
	AddEarnings(ctx context.Context, wallet string, amount float64) error
	RecordResult(ctx context.Context, wallet string, won bool) error
	Get(ctx context.Context, wallet string) (LeaderboardEntry, error)
	Top(ctx context.Context, limit int) ([]LeaderboardEntry, error)
}

// LockManager provides distributed locks for activities that must not run
// concurrently across replicas, such as the resolution tick.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// RateLimiter provides distributed request rate limiting.
type RateLimiter interface {
	// Allow reports whether a request under key fits the limit for the
	// window, counting it if so.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// PriceCache caches oracle prices per feed id with a TTL.
type PriceCache interface {
	SetPrice(ctx context.Context, feedID string, mantissa int64, exponent int32, ts time.Time) error
	GetPrice(ctx context.Context, feedID string) (mantissa int64, exponent int32, err error)
}
