package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/swivlabs/swivd/internal/domain"
)

// PriceCache implements domain.PriceCache using Redis hashes. Each oracle
// feed's latest reading is stored at "swivd:price:{feedID}" with fields
// "mantissa", "expo" and "ts", and expires after the configured TTL so the
// resolver never settles a market on a stale quote.
type PriceCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPriceCache creates a PriceCache with the given entry TTL.
func NewPriceCache(c *Client, ttl time.Duration) *PriceCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &PriceCache{rdb: c.Underlying(), ttl: ttl}
}

func priceKey(feedID string) string {
	return "swivd:price:" + feedID
}

// SetPrice stores the latest oracle reading for a feed.
func (pc *PriceCache) SetPrice(ctx context.Context, feedID string, mantissa int64, exponent int32, ts time.Time) error {
	key := priceKey(feedID)
	fields := map[string]interface{}{
		"mantissa": strconv.FormatInt(mantissa, 10),
		"expo":     strconv.FormatInt(int64(exponent), 10),
		"ts":       strconv.FormatInt(ts.Unix(), 10),
	}

	pipe := pc.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, pc.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set price %s: %w", feedID, err)
	}
	return nil
}

// GetPrice retrieves the cached reading for a feed. It returns
// domain.ErrNotFound when no fresh entry exists.
func (pc *PriceCache) GetPrice(ctx context.Context, feedID string) (int64, int32, error) {
	vals, err := pc.rdb.HGetAll(ctx, priceKey(feedID)).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("redis: get price %s: %w", feedID, err)
	}
	if len(vals) == 0 {
		return 0, 0, domain.ErrNotFound
	}

	mantissaStr, ok := vals["mantissa"]
	if !ok {
		return 0, 0, domain.ErrNotFound
	}
	mantissa, err := strconv.ParseInt(mantissaStr, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("redis: parse mantissa %s: %w", feedID, err)
	}

	expoStr, ok := vals["expo"]
	if !ok {
		return 0, 0, domain.ErrNotFound
	}
	expo, err := strconv.ParseInt(expoStr, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("redis: parse expo %s: %w", feedID, err)
	}

	return mantissa, int32(expo), nil
}

var _ domain.PriceCache = (*PriceCache)(nil)
