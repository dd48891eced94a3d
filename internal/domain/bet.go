package domain

import "time"

// BetStatus is the lower-cased projection of the on-chain bet status enum.
// The wire shape (a single-key record per variant) never leaves the
// reconciliation boundary; only these plain values are stored.
type BetStatus string

const (
	BetStatusActive   BetStatus = "active"
	BetStatusClaimed  BetStatus = "claimed"
	BetStatusRefunded BetStatus = "refunded"
	BetStatusUnknown  BetStatus = "unknown"
)

// Bet is the off-chain mirror of one on-chain user bet account.
type Bet struct {
	Address          string    `json:"address"` // bet account address (base58)
	Owner            string    `json:"owner"`   // wallet address
	Market           string    `json:"market"`  // parent pool account address
	PoolID           uint64    `json:"pool_id"` // denormalized from the parent pool at sync time
	Deposit          uint64    `json:"deposit"`
	Prediction       int64     `json:"prediction"`
	CalculatedWeight uint64    `json:"calculated_weight"`
	IsWeightAdded    bool      `json:"is_weight_added"`
	Status           BetStatus `json:"status"`
	CreationTs       int64     `json:"creation_ts"`   // unix seconds
	EndTimestamp     int64     `json:"end_timestamp"` // unix seconds
	UpdateCount      uint32    `json:"update_count"`
	UpdatedAt        time.Time `json:"updated_at"`
}
