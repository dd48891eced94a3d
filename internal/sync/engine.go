// Package sync reconciles the relational mirror with on-chain program state.
// The chain is authoritative; every pass re-fetches accounts and upserts,
// so replayed events and overlapping passes converge on the same rows.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/swivlabs/swivd/internal/domain"
	"github.com/swivlabs/swivd/internal/notify"
	"github.com/swivlabs/swivd/internal/platform/solana"
)

// Ledger is the subset of the RPC client the engine reads accounts with.
type Ledger interface {
	GetAccountInfo(ctx context.Context, address string) ([]byte, error)
	GetProgramAccounts(ctx context.Context, programID string, discriminator []byte) ([]solana.KeyedAccount, error)
}

// RewardLedger accrues claimed winnings into per-wallet aggregates.
type RewardLedger interface {
	AccrueReward(ctx context.Context, wallet string, amount uint64) error
}

// Notifier alerts operators about protocol-level state changes.
type Notifier interface {
	Notify(ctx context.Context, event notify.Event, title, message string) error
}

// Config holds engine tunables.
type Config struct {
	ProgramID solana.PublicKey
	// FullSyncInterval is the period of the unconditional market sweep that
	// bounds staleness when events are missed. Zero disables the sweep.
	FullSyncInterval time.Duration
	// MarketSyncDelay is how long to wait after a pool-created event before
	// sweeping markets, giving the ledger time to expose the new account.
	MarketSyncDelay time.Duration
}

// Engine keeps the mirror consistent. It is driven two ways: event handlers
// dispatched from the websocket feed, and the periodic full sweep in Run.
type Engine struct {
	ledger    Ledger
	markets   domain.MarketStore
	bets      domain.BetStore
	users     domain.UserStore
	protocol  domain.ProtocolStore
	rewards   RewardLedger
	notifier  Notifier
	programID solana.PublicKey

	fullSyncInterval time.Duration
	marketSyncDelay  time.Duration
	logger           *slog.Logger
}

// NewEngine creates a reconciliation engine. The notifier is optional; nil
// disables pause alerts.
func NewEngine(
	cfg Config,
	ledger Ledger,
	markets domain.MarketStore,
	bets domain.BetStore,
	users domain.UserStore,
	protocol domain.ProtocolStore,
	rewards RewardLedger,
	notifier Notifier,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		ledger:           ledger,
		markets:          markets,
		bets:             bets,
		users:            users,
		protocol:         protocol,
		rewards:          rewards,
		notifier:         notifier,
		programID:        cfg.ProgramID,
		fullSyncInterval: cfg.FullSyncInterval,
		marketSyncDelay:  cfg.MarketSyncDelay,
		logger:           logger.With(slog.String("component", "sync")),
	}
}

// HandleEvent dispatches one decoded program event. All handlers are
// independent and registered here flatly; none depends on another event
// having been observed in the same process lifetime. Failures are logged,
// never propagated, so one bad event cannot stall the feed.
func (e *Engine) HandleEvent(ctx context.Context, ev solana.Event) {
	switch event := ev.(type) {
	case solana.PoolCreatedEvent:
		e.logger.Info("pool created",
			slog.String("pool", event.Pool.String()),
			slog.Uint64("pool_id", event.PoolID),
			slog.String("name", event.PoolName))
		e.scheduleMarketSweep(ctx)

	case solana.BetPlacedEvent:
		e.syncBetLogged(ctx, event.BetAddress.String(), "bet placed")

	case solana.BetUpdatedEvent:
		e.syncBetLogged(ctx, event.BetAddress.String(), "bet updated")

	case solana.BetDelegatedEvent:
		e.syncBetLogged(ctx, event.BetAddress.String(), "bet delegated")

	case solana.PoolResolvedEvent:
		e.logger.Info("pool resolved", slog.String("pool", event.Pool.String()))
		if err := e.SyncAllMarkets(ctx); err != nil {
			e.logger.Error("market sweep after pool resolved", slog.Any("error", err))
		}

	case solana.WeightsFinalizedEvent:
		e.logger.Info("weights finalized", slog.String("pool", event.Pool.String()))
		if err := e.SyncAllMarkets(ctx); err != nil {
			e.logger.Error("market sweep after weights finalized", slog.Any("error", err))
		}

	case solana.RewardClaimedEvent:
		e.syncBetLogged(ctx, event.BetAddress.String(), "reward claimed")
		if err := e.rewards.AccrueReward(ctx, event.User.String(), event.Amount); err != nil {
			e.logger.Error("accrue reward",
				slog.String("wallet", event.User.String()),
				slog.Any("error", err))
		}

	case solana.ConfigUpdatedEvent:
		e.logger.Info("protocol config updated")
		if err := e.SyncProtocol(ctx); err != nil {
			e.logger.Error("protocol sync", slog.Any("error", err))
		}

	case solana.PauseChangedEvent:
		e.logger.Info("protocol pause changed", slog.Bool("paused", event.IsPaused))
		if err := e.SyncProtocol(ctx); err != nil {
			e.logger.Error("protocol sync", slog.Any("error", err))
		}
		if e.notifier != nil {
			state := "resumed"
			if event.IsPaused {
				state = "paused"
			}
			if err := e.notifier.Notify(ctx, notify.EventProtocolPaused,
				"Protocol "+state, "On-chain protocol switched to "+state+"."); err != nil {
				e.logger.Warn("pause notification", slog.Any("error", err))
			}
		}

	default:
		e.logger.Warn("unhandled event", slog.String("event", ev.EventName()))
	}
}

// scheduleMarketSweep runs a delayed full market sync in the background. The
// delay gives the RPC node time to make a freshly created account visible.
func (e *Engine) scheduleMarketSweep(ctx context.Context) {
	go func() {
		if e.marketSyncDelay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(e.marketSyncDelay):
			}
		}
		if err := e.SyncAllMarkets(ctx); err != nil {
			e.logger.Error("market sweep after pool created", slog.Any("error", err))
		}
	}()
}

func (e *Engine) syncBetLogged(ctx context.Context, address, cause string) {
	e.logger.Info(cause, slog.String("bet", address))
	if err := e.SyncBet(ctx, address); err != nil {
		e.logger.Error("bet sync",
			slog.String("bet", address),
			slog.Any("error", err))
	}
}

// SyncAllMarkets fetches every pool account owned by the program and upserts
// its mirror row. Rows whose mirrored status is already terminal are skipped;
// they cannot change without an event that would trigger a targeted path.
// Per-account failures are logged and do not abort the sweep.
func (e *Engine) SyncAllMarkets(ctx context.Context) error {
	statuses, err := e.markets.StatusByAddress(ctx)
	if err != nil {
		return fmt.Errorf("sync: market statuses: %w", err)
	}

	accounts, err := e.ledger.GetProgramAccounts(ctx, e.programID.String(), solana.PoolDiscriminator())
	if err != nil {
		return fmt.Errorf("sync: fetch pool accounts: %w", err)
	}

	now := time.Now()
	synced, skipped, failed := 0, 0, 0
	for _, account := range accounts {
		if status, ok := statuses[account.Address]; ok && status.Terminal() {
			skipped++
			continue
		}

		acc, err := solana.DecodePool(account.Data)
		if err != nil {
			failed++
			e.logger.Error("decode pool",
				slog.String("address", account.Address),
				slog.Any("error", err))
			continue
		}

		market := e.marketFromAccount(account.Address, acc, now)
		if err := e.markets.Upsert(ctx, market); err != nil {
			failed++
			e.logger.Error("upsert market",
				slog.String("address", account.Address),
				slog.Any("error", err))
			continue
		}
		synced++
	}

	e.logger.Info("market sweep done",
		slog.Int("synced", synced),
		slog.Int("skipped", skipped),
		slog.Int("failed", failed))
	return nil
}

// marketFromAccount projects a decoded pool account onto its mirror row.
// Status is always recomputed from the on-chain flags, never carried forward.
func (e *Engine) marketFromAccount(address string, acc solana.PoolAccount, now time.Time) domain.Market {
	market := domain.Market{
		Address:            address,
		PoolID:             acc.PoolID,
		Admin:              acc.Admin.String(),
		Name:               acc.Name,
		Category:           "custom",
		TokenMint:          acc.TokenMint.String(),
		StartTime:          acc.StartTime,
		EndTime:            acc.EndTime,
		VaultBalance:       acc.VaultBalance,
		TotalWeight:        acc.TotalWeight,
		MaxAccuracyBuffer:  acc.MaxAccuracyBuffer,
		ConvictionBonusBps: acc.ConvictionBonusBps,
		ResolutionTarget:   acc.ResolutionTarget,
		IsResolved:         acc.IsResolved,
		ResolutionTs:       acc.ResolutionTs,
		WeightFinalized:    acc.WeightFinalized,
		TotalParticipants:  acc.TotalParticipants,
		Status:             domain.DeriveStatus(acc.WeightFinalized, acc.IsResolved, acc.EndTime, now),
	}

	if pool, err := solana.PublicKeyFromBase58(address); err == nil {
		if vault, err := solana.PoolVaultAddress(pool, e.programID); err == nil {
			market.VaultAddress = vault.String()
		}
	}

	if acc.Metadata != "" {
		raw := acc.Metadata
		market.Metadata = &raw
		if meta, ok := domain.ParseAssetMetadata(raw); ok {
			meta.ApplyTo(&market)
		} else {
			e.logger.Warn("malformed pool metadata", slog.String("address", address))
		}
	}

	return market
}

// SyncBet fetches one bet account and upserts its mirror row, creating the
// owner's user row if absent. The parent market's integer id is resolved
// from the mirror, falling back to the chain when the pool is not yet known.
func (e *Engine) SyncBet(ctx context.Context, address string) error {
	data, err := e.ledger.GetAccountInfo(ctx, address)
	if err != nil {
		return fmt.Errorf("sync: fetch bet %s: %w", address, err)
	}

	acc, err := solana.DecodeUserBet(data)
	if err != nil {
		return fmt.Errorf("sync: decode bet %s: %w", address, err)
	}

	owner := acc.Owner.String()
	if err := e.users.EnsureExists(ctx, owner); err != nil {
		return fmt.Errorf("sync: ensure user %s: %w", owner, err)
	}

	poolAddress := acc.Pool.String()
	poolID, err := e.resolvePoolID(ctx, poolAddress)
	if err != nil {
		return fmt.Errorf("sync: resolve pool %s for bet %s: %w", poolAddress, address, err)
	}

	bet := domain.Bet{
		Address:          address,
		Owner:            owner,
		Market:           poolAddress,
		PoolID:           poolID,
		Deposit:          acc.Deposit,
		Prediction:       acc.Prediction,
		CalculatedWeight: acc.CalculatedWeight,
		IsWeightAdded:    acc.IsWeightAdded,
		Status:           solana.BetStatusKey(acc.Status),
		CreationTs:       acc.CreationTs,
		EndTimestamp:     acc.EndTimestamp,
		UpdateCount:      acc.UpdateCount,
	}

	if err := e.bets.Upsert(ctx, bet); err != nil {
		return fmt.Errorf("sync: upsert bet %s: %w", address, err)
	}
	return nil
}

// resolvePoolID finds the integer pool id for a pool address. When the pool
// is not mirrored yet, its account is fetched and upserted first so the bet
// never references a missing market.
func (e *Engine) resolvePoolID(ctx context.Context, poolAddress string) (uint64, error) {
	market, err := e.markets.GetByAddress(ctx, poolAddress)
	if err == nil {
		return market.PoolID, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return 0, err
	}

	data, err := e.ledger.GetAccountInfo(ctx, poolAddress)
	if err != nil {
		return 0, err
	}
	acc, err := solana.DecodePool(data)
	if err != nil {
		return 0, err
	}

	if err := e.markets.Upsert(ctx, e.marketFromAccount(poolAddress, acc, time.Now())); err != nil {
		return 0, err
	}
	return acc.PoolID, nil
}

// SyncAllBets diffs the on-chain bet account set against the mirrored
// address set and syncs only the complement. Mirrored bets are never
// re-processed here: they may carry newer state from targeted syncs that
// this batch must not race with. Per-bet failures are logged and counted.
func (e *Engine) SyncAllBets(ctx context.Context) error {
	mirrored, err := e.bets.Addresses(ctx)
	if err != nil {
		return fmt.Errorf("sync: mirrored bet addresses: %w", err)
	}

	accounts, err := e.ledger.GetProgramAccounts(ctx, e.programID.String(), solana.UserBetDiscriminator())
	if err != nil {
		return fmt.Errorf("sync: fetch bet accounts: %w", err)
	}

	synced, failed := 0, 0
	for _, account := range accounts {
		if _, ok := mirrored[account.Address]; ok {
			continue
		}
		if err := e.syncBetData(ctx, account.Address, account.Data); err != nil {
			failed++
			e.logger.Error("bet catch-up",
				slog.String("bet", account.Address),
				slog.Any("error", err))
			continue
		}
		synced++
	}

	e.logger.Info("bet catch-up done",
		slog.Int("known", len(mirrored)),
		slog.Int("synced", synced),
		slog.Int("failed", failed))
	return nil
}

// syncBetData is SyncBet with the account payload already in hand.
func (e *Engine) syncBetData(ctx context.Context, address string, data []byte) error {
	acc, err := solana.DecodeUserBet(data)
	if err != nil {
		return fmt.Errorf("sync: decode bet %s: %w", address, err)
	}

	owner := acc.Owner.String()
	if err := e.users.EnsureExists(ctx, owner); err != nil {
		return fmt.Errorf("sync: ensure user %s: %w", owner, err)
	}

	poolAddress := acc.Pool.String()
	poolID, err := e.resolvePoolID(ctx, poolAddress)
	if err != nil {
		return fmt.Errorf("sync: resolve pool %s for bet %s: %w", poolAddress, address, err)
	}

	return e.bets.Upsert(ctx, domain.Bet{
		Address:          address,
		Owner:            owner,
		Market:           poolAddress,
		PoolID:           poolID,
		Deposit:          acc.Deposit,
		Prediction:       acc.Prediction,
		CalculatedWeight: acc.CalculatedWeight,
		IsWeightAdded:    acc.IsWeightAdded,
		Status:           solana.BetStatusKey(acc.Status),
		CreationTs:       acc.CreationTs,
		EndTimestamp:     acc.EndTimestamp,
		UpdateCount:      acc.UpdateCount,
	})
}

// SyncProtocol fetches the protocol singleton at its derived address and
// upserts the mirror row.
func (e *Engine) SyncProtocol(ctx context.Context) error {
	address, err := solana.ProtocolAddress(e.programID)
	if err != nil {
		return fmt.Errorf("sync: derive protocol address: %w", err)
	}

	data, err := e.ledger.GetAccountInfo(ctx, address.String())
	if err != nil {
		return fmt.Errorf("sync: fetch protocol: %w", err)
	}

	acc, err := solana.DecodeProtocol(data)
	if err != nil {
		return fmt.Errorf("sync: decode protocol: %w", err)
	}

	p := domain.Protocol{
		Admin:          acc.Admin.String(),
		TreasuryWallet: acc.TreasuryWallet.String(),
		ProtocolFeeBps: acc.ProtocolFeeBps,
		Paused:         acc.Paused,
		TotalUsers:     acc.TotalUsers,
		TotalMarkets:   acc.TotalPools,
	}
	if err := e.protocol.Upsert(ctx, p); err != nil {
		return fmt.Errorf("sync: upsert protocol: %w", err)
	}
	return nil
}

// InitialFullSync brings the mirror up to date at process start, in
// dependency order: protocol, then markets, then the bet catch-up diff.
func (e *Engine) InitialFullSync(ctx context.Context) error {
	e.logger.Info("initial full sync started")

	if err := e.SyncProtocol(ctx); err != nil {
		return err
	}
	if err := e.SyncAllMarkets(ctx); err != nil {
		return err
	}
	if err := e.SyncAllBets(ctx); err != nil {
		return err
	}

	e.logger.Info("initial full sync done")
	return nil
}

// Run performs the initial full sync and then repeats the unconditional
// market sweep on the configured interval until the context is cancelled.
// The sweep bounds mirror staleness when websocket events are missed.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.InitialFullSync(ctx); err != nil {
		return err
	}

	if e.fullSyncInterval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(e.fullSyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			degraded := false
			if err := e.SyncAllMarkets(ctx); err != nil {
				degraded = true
				e.logger.Error("periodic market sweep", slog.Any("error", err))
			}
			if err := e.SyncProtocol(ctx); err != nil {
				degraded = true
				e.logger.Error("periodic protocol sync", slog.Any("error", err))
			}
			if degraded && e.notifier != nil {
				if err := e.notifier.Notify(ctx, notify.EventSyncDegraded,
					"Sync degraded", "Periodic full sync failed; mirror may be stale."); err != nil {
					e.logger.Warn("sync notification", slog.Any("error", err))
				}
			}
		}
	}
}
