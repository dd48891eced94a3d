package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/swivlabs/swivd/internal/domain"
)

// BlobWriter is the upload surface the archiver needs.
type BlobWriter interface {
	Put(ctx context.Context, key string, data io.Reader, contentType string) error
}

// Archiver snapshots settled markets and their bets to object storage as
// JSONL. Settled markets never change again, so re-archiving overwrites an
// identical object and the whole process is idempotent. Rows are never
// deleted from the primary store here.
type Archiver struct {
	writer  BlobWriter
	markets domain.MarketStore
	bets    domain.BetStore
	logger  *slog.Logger
}

// NewArchiver creates an Archiver.
func NewArchiver(writer BlobWriter, markets domain.MarketStore, bets domain.BetStore, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer:  writer,
		markets: markets,
		bets:    bets,
		logger:  logger.With(slog.String("component", "archiver")),
	}
}

// marketRecord is one JSONL line: the market snapshot with its bets inlined.
type marketRecord struct {
	Market     domain.Market `json:"market"`
	Bets       []domain.Bet  `json:"bets"`
	ArchivedAt time.Time     `json:"archived_at"`
}

// ArchiveSettled uploads every settled market as one JSONL object keyed by
// pool id. Per-market failures are logged and skipped.
func (a *Archiver) ArchiveSettled(ctx context.Context) error {
	const pageSize = 200
	archived, failed := 0, 0

	for offset := 0; ; offset += pageSize {
		markets, err := a.markets.ListByStatus(ctx, domain.MarketStatusSettled, domain.ListOpts{
			Limit:  pageSize,
			Offset: offset,
		})
		if err != nil {
			return fmt.Errorf("s3blob: list settled markets: %w", err)
		}
		if len(markets) == 0 {
			break
		}

		for _, market := range markets {
			if err := a.archiveMarket(ctx, market); err != nil {
				failed++
				a.logger.Error("archive market",
					slog.Uint64("pool_id", market.PoolID),
					slog.Any("error", err))
				continue
			}
			archived++
		}

		if len(markets) < pageSize {
			break
		}
	}

	a.logger.Info("settled archive pass done",
		slog.Int("archived", archived),
		slog.Int("failed", failed))
	return nil
}

func (a *Archiver) archiveMarket(ctx context.Context, market domain.Market) error {
	var bets []domain.Bet
	const pageSize = 500
	for offset := 0; ; offset += pageSize {
		page, err := a.bets.ListByPool(ctx, market.PoolID, domain.ListOpts{Limit: pageSize, Offset: offset})
		if err != nil {
			return fmt.Errorf("list bets: %w", err)
		}
		bets = append(bets, page...)
		if len(page) < pageSize {
			break
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(marketRecord{Market: market, Bets: bets, ArchivedAt: time.Now().UTC()}); err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	key := fmt.Sprintf("markets/settled/pool-%d.jsonl", market.PoolID)
	return a.writer.Put(ctx, key, &buf, "application/x-ndjson")
}

// Run archives on the given interval until the context is cancelled.
func (a *Archiver) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := a.ArchiveSettled(ctx); err != nil {
				a.logger.Error("archive pass failed", slog.Any("error", err))
			}
		}
	}
}
