package domain

import "time"

// MarketStatus represents the lifecycle state of a market.
type MarketStatus string

const (
	MarketStatusActive   MarketStatus = "active"
	MarketStatusClosed   MarketStatus = "closed"
	MarketStatusResolved MarketStatus = "resolved"
	MarketStatusSettled  MarketStatus = "settled"
)

// Terminal reports whether a market in this status can no longer change
// without a new on-chain event. Terminal markets are skipped by the full
// market sync.
func (s MarketStatus) Terminal() bool {
	return s == MarketStatusClosed || s == MarketStatusSettled
}

// DeriveStatus computes the lifecycle status of a market from its on-chain
// flags and time window. Precedence is settled > resolved > closed > active.
// The program never stores a status field; every sync pass must recompute it
// with this function rather than carrying a previously stored value forward.
func DeriveStatus(weightFinalized, isResolved bool, endTime int64, now time.Time) MarketStatus {
	switch {
	case weightFinalized:
		return MarketStatusSettled
	case isResolved:
		return MarketStatusResolved
	case now.Unix() > endTime:
		return MarketStatusClosed
	default:
		return MarketStatusActive
	}
}

// Market is the off-chain mirror of one on-chain pool account. The chain is
// authoritative; rows here are only ever created or upserted by the sync
// engine and the resolver, never deleted.
type Market struct {
	Address            string       `json:"address"` // pool account address (base58)
	PoolID             uint64       `json:"pool_id"` // integer sequence id assigned by the program
	Admin              string       `json:"admin"`
	Name               string       `json:"name"`
	AssetSymbol        *string      `json:"asset_symbol,omitempty"` // parsed from metadata, nil when absent
	Category           string       `json:"category"`
	PythFeedID         *string      `json:"pyth_feed_id,omitempty"`
	AssetDecimals      *int         `json:"asset_decimals,omitempty"`
	ImageURL           *string      `json:"image_url,omitempty"`
	TokenMint          string       `json:"token_mint"`
	StartTime          int64        `json:"start_time"` // unix seconds
	EndTime            int64        `json:"end_time"`   // unix seconds
	VaultBalance       uint64       `json:"vault_balance"`
	TotalWeight        uint64       `json:"total_weight"`
	MaxAccuracyBuffer  uint64       `json:"max_accuracy_buffer"`
	ConvictionBonusBps uint16       `json:"conviction_bonus_bps"`
	ResolutionTarget   int64        `json:"resolution_target"`
	IsResolved         bool         `json:"is_resolved"`
	ResolutionTs       int64        `json:"resolution_ts"`
	WeightFinalized    bool         `json:"weight_finalized"`
	TotalParticipants  uint32       `json:"total_participants"`
	VaultAddress       string       `json:"vault_address"`      // derived vault PDA (base58)
	Metadata           *string      `json:"metadata,omitempty"` // raw embedded metadata string
	Status             MarketStatus `json:"status"`

	// Populated by the resolver once a resolve transaction confirms.
	FinalOutcome        *int64  `json:"final_outcome,omitempty"`
	ResolutionSignature *string `json:"resolution_signature,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}
