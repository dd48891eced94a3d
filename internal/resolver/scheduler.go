// Package resolver drives the terminal state transition of ended markets:
// it reads an oracle price, submits a signed resolve transaction to the
// ledger, and records the confirmed outcome in the mirror.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/swivlabs/swivd/internal/domain"
	"github.com/swivlabs/swivd/internal/notify"
	"github.com/swivlabs/swivd/internal/platform/pyth"
	"github.com/swivlabs/swivd/internal/platform/solana"
)

// Ledger is the subset of the RPC client the scheduler submits through.
type Ledger interface {
	GetAccountInfo(ctx context.Context, address string) ([]byte, error)
	GetLatestBlockhash(ctx context.Context) (solana.Blockhash, error)
	SendTransaction(ctx context.Context, signedTx []byte, maxRetries int) (string, error)
	ConfirmTransaction(ctx context.Context, signature string, lastValidBlockHeight uint64) error
}

// Oracle provides the latest price for a feed.
type Oracle interface {
	GetPrice(ctx context.Context, feedID string) (pyth.Price, error)
}

// OutcomeRecorder tallies per-wallet results once a market resolves.
type OutcomeRecorder interface {
	RecordMarketOutcome(ctx context.Context, market domain.Market, outcome int64) error
}

// Notifier alerts operators about resolution outcomes.
type Notifier interface {
	Notify(ctx context.Context, event notify.Event, title, message string) error
}

// resolutionLockKey serializes resolution ticks across replicas.
const resolutionLockKey = "resolution-tick"

// Config holds scheduler tunables.
type Config struct {
	ProgramID solana.PublicKey
	// TickInterval is the period of the candidate scan.
	TickInterval time.Duration
	// SendRetries is forwarded to the RPC node's transaction relayer.
	SendRetries int
	// LockTTL bounds how long a crashed replica can hold the tick lock.
	LockTTL time.Duration
}

// Scheduler scans for ended markets once per tick and resolves each one
// independently. Candidates are processed sequentially; markets never share
// mutable state, so a slow candidate only delays its siblings, never
// corrupts them.
type Scheduler struct {
	markets  domain.MarketStore
	oracle   Oracle
	prices   domain.PriceCache
	locks    domain.LockManager
	ledger   Ledger
	signer   *solana.Keypair
	outcomes OutcomeRecorder
	notifier Notifier

	programID    solana.PublicKey
	tickInterval time.Duration
	sendRetries  int
	lockTTL      time.Duration
	logger       *slog.Logger
}

// NewScheduler creates a resolution scheduler. The price cache, lock
// manager, outcome recorder and notifier are optional; nil disables the
// corresponding behavior. The signer is not: resolving without a backend
// key is impossible, so callers must fail startup before getting here.
func NewScheduler(
	cfg Config,
	markets domain.MarketStore,
	oracle Oracle,
	prices domain.PriceCache,
	locks domain.LockManager,
	ledger Ledger,
	signer *solana.Keypair,
	outcomes OutcomeRecorder,
	notifier Notifier,
	logger *slog.Logger,
) *Scheduler {
	tick := cfg.TickInterval
	if tick <= 0 {
		tick = time.Minute
	}
	retries := cfg.SendRetries
	if retries <= 0 {
		retries = 5
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = tick - tick/10
	}
	return &Scheduler{
		markets:      markets,
		oracle:       oracle,
		prices:       prices,
		locks:        locks,
		ledger:       ledger,
		signer:       signer,
		outcomes:     outcomes,
		notifier:     notifier,
		programID:    cfg.ProgramID,
		tickInterval: tick,
		sendRetries:  retries,
		lockTTL:      lockTTL,
		logger:       logger.With(slog.String("component", "resolver")),
	}
}

// Run ticks until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	s.logger.Info("resolution scheduler started",
		slog.Duration("tick", s.tickInterval))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runTick(ctx)
		}
	}
}

// runTick acquires the replica lock and processes one candidate scan.
func (s *Scheduler) runTick(ctx context.Context) {
	if s.locks != nil {
		unlock, err := s.locks.Acquire(ctx, resolutionLockKey, s.lockTTL)
		if errors.Is(err, domain.ErrLockHeld) {
			s.logger.Debug("tick skipped, another replica holds the lock")
			return
		}
		if err != nil {
			s.logger.Error("acquire tick lock", slog.Any("error", err))
			return
		}
		defer unlock()
	}
	s.Tick(ctx)
}

// Tick resolves every current candidate. Per-candidate failures are logged
// at the item boundary and never abort siblings.
func (s *Scheduler) Tick(ctx context.Context) {
	candidates, err := s.markets.ListResolvable(ctx, time.Now())
	if err != nil {
		s.logger.Error("list resolvable markets", slog.Any("error", err))
		return
	}
	if len(candidates) == 0 {
		return
	}

	s.logger.Info("resolution candidates", slog.Int("count", len(candidates)))
	for _, market := range candidates {
		if err := s.ResolveMarket(ctx, market); err != nil {
			s.logger.Error("market resolution failed",
				slog.Uint64("pool_id", market.PoolID),
				slog.String("address", market.Address),
				slog.Any("error", err))
			s.notify(ctx, notify.EventResolutionFailed, "Market resolution failed",
				fmt.Sprintf("pool %d (%s): %v", market.PoolID, market.Name, err))
		}
	}
}

// ResolveMarket runs the full resolution flow for one market: price lookup,
// on-chain re-check, transaction submission, confirmation, and mirror
// update. On any failure the mirror is left untouched so the next tick
// retries from scratch.
func (s *Scheduler) ResolveMarket(ctx context.Context, market domain.Market) error {
	if market.PythFeedID == nil || market.AssetDecimals == nil {
		return fmt.Errorf("resolver: pool %d lacks oracle feed or decimals, needs manual correction: %w",
			market.PoolID, domain.ErrMissingFeedID)
	}

	price, err := s.fetchPrice(ctx, *market.PythFeedID)
	if err != nil {
		return fmt.Errorf("resolver: price for feed %s: %w", *market.PythFeedID, err)
	}

	scaled, err := price.Scaled(*market.AssetDecimals)
	if err != nil {
		return fmt.Errorf("resolver: scale price for pool %d: %w", market.PoolID, err)
	}

	// The mirror can lag the chain; never submit against a pool that is
	// already resolved on-chain.
	resolved, err := s.checkOnChainResolved(ctx, market)
	if err != nil {
		return err
	}
	if resolved {
		s.logger.Info("pool already resolved on-chain, backfilled",
			slog.Uint64("pool_id", market.PoolID))
		return nil
	}

	signature, lastValidHeight, err := s.submitResolveTx(ctx, market, scaled)
	if err != nil {
		return err
	}

	err = s.ledger.ConfirmTransaction(ctx, signature, lastValidHeight)
	switch {
	case err == nil:
		return s.recordResolution(ctx, market, scaled, signature)

	case errors.Is(err, domain.ErrAmbiguousConfirmation):
		// The outcome is unknown; the account itself is the only truth.
		// Re-submitting blindly could double-resolve.
		landed, checkErr := s.checkOnChainResolved(ctx, market)
		if checkErr != nil {
			return fmt.Errorf("resolver: ambiguous confirmation for pool %d, re-check failed: %w",
				market.PoolID, checkErr)
		}
		if landed {
			return s.recordResolution(ctx, market, scaled, signature)
		}
		return fmt.Errorf("resolver: pool %d: %w", market.PoolID, err)

	default:
		return fmt.Errorf("resolver: confirm resolve tx for pool %d: %w", market.PoolID, err)
	}
}

// fetchPrice consults the cache first and falls back to the oracle,
// populating the cache on the way back.
func (s *Scheduler) fetchPrice(ctx context.Context, feedID string) (pyth.Price, error) {
	if s.prices != nil {
		mantissa, exponent, err := s.prices.GetPrice(ctx, feedID)
		if err == nil {
			return pyth.Price{FeedID: feedID, Mantissa: mantissa, Exponent: exponent}, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("price cache read failed", slog.Any("error", err))
		}
	}

	price, err := s.oracle.GetPrice(ctx, feedID)
	if err != nil {
		return pyth.Price{}, err
	}

	if s.prices != nil {
		if err := s.prices.SetPrice(ctx, feedID, price.Mantissa, price.Exponent, price.Publish); err != nil {
			s.logger.Warn("price cache write failed", slog.Any("error", err))
		}
	}
	return price, nil
}

// checkOnChainResolved re-fetches the pool account. When it is already
// resolved the mirror row is backfilled from the authoritative flags.
func (s *Scheduler) checkOnChainResolved(ctx context.Context, market domain.Market) (bool, error) {
	data, err := s.ledger.GetAccountInfo(ctx, market.Address)
	if err != nil {
		return false, fmt.Errorf("resolver: re-fetch pool %d: %w", market.PoolID, err)
	}
	acc, err := solana.DecodePool(data)
	if err != nil {
		return false, fmt.Errorf("resolver: decode pool %d: %w", market.PoolID, err)
	}
	if !acc.IsResolved {
		return false, nil
	}

	market.IsResolved = true
	market.ResolutionTs = acc.ResolutionTs
	market.WeightFinalized = acc.WeightFinalized
	market.Status = domain.DeriveStatus(acc.WeightFinalized, acc.IsResolved, acc.EndTime, time.Now())
	if err := s.markets.Upsert(ctx, market); err != nil {
		return true, fmt.Errorf("resolver: backfill pool %d: %w", market.PoolID, err)
	}
	return true, nil
}

// submitResolveTx builds, signs and submits the resolve instruction.
func (s *Scheduler) submitResolveTx(ctx context.Context, market domain.Market, scaledPrice int64) (string, uint64, error) {
	pool, err := solana.PublicKeyFromBase58(market.Address)
	if err != nil {
		return "", 0, fmt.Errorf("resolver: parse pool address %s: %w", market.Address, err)
	}
	protocol, err := solana.ProtocolAddress(s.programID)
	if err != nil {
		return "", 0, fmt.Errorf("resolver: derive protocol address: %w", err)
	}

	ix, err := solana.ResolvePoolInstruction(s.programID, s.signer.PublicKey, protocol, pool, scaledPrice)
	if err != nil {
		return "", 0, fmt.Errorf("resolver: build resolve instruction: %w", err)
	}

	blockhash, err := s.ledger.GetLatestBlockhash(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("resolver: latest blockhash: %w", err)
	}

	tx, err := solana.BuildTransaction([]solana.Instruction{ix}, s.signer, blockhash.Blockhash)
	if err != nil {
		return "", 0, fmt.Errorf("resolver: build transaction: %w", err)
	}

	signature, err := s.ledger.SendTransaction(ctx, tx, s.sendRetries)
	if err != nil {
		return "", 0, fmt.Errorf("resolver: send resolve tx for pool %d: %w", market.PoolID, err)
	}

	s.logger.Info("resolve transaction sent",
		slog.Uint64("pool_id", market.PoolID),
		slog.String("signature", signature),
		slog.Int64("scaled_price", scaledPrice))
	return signature, blockhash.LastValidBlockHeight, nil
}

// recordResolution persists the confirmed outcome and fans out bookkeeping.
func (s *Scheduler) recordResolution(ctx context.Context, market domain.Market, outcome int64, signature string) error {
	if err := s.markets.MarkResolved(ctx, market.PoolID, outcome, signature); err != nil {
		return fmt.Errorf("resolver: record resolution for pool %d: %w", market.PoolID, err)
	}

	s.logger.Info("market resolved",
		slog.Uint64("pool_id", market.PoolID),
		slog.Int64("outcome", outcome),
		slog.String("signature", signature))

	if s.outcomes != nil {
		if err := s.outcomes.RecordMarketOutcome(ctx, market, outcome); err != nil {
			s.logger.Error("record market outcome",
				slog.Uint64("pool_id", market.PoolID),
				slog.Any("error", err))
		}
	}

	s.notify(ctx, notify.EventMarketResolved, "Market resolved",
		fmt.Sprintf("pool %d (%s) resolved at %d, tx %s", market.PoolID, market.Name, outcome, signature))
	return nil
}

func (s *Scheduler) notify(ctx context.Context, event notify.Event, title, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, event, title, message); err != nil {
		s.logger.Warn("notification failed", slog.Any("error", err))
	}
}
