package domain

import "time"

// ProtocolKey is the fixed primary key of the protocol singleton row. The
// on-chain protocol account is a PDA with fixed seeds, so exactly one row
// ever exists.
const ProtocolKey = "protocol"

// Protocol mirrors the on-chain protocol singleton account.
type Protocol struct {
	Admin          string    `json:"admin"`
	TreasuryWallet string    `json:"treasury_wallet"`
	ProtocolFeeBps uint16    `json:"protocol_fee_bps"`
	Paused         bool      `json:"paused"`
	TotalUsers     uint64    `json:"total_users"`
	TotalMarkets   uint64    `json:"total_markets"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// User is a wallet known to the mirror. Rows are created on first observation
// of a bet owned by the wallet.
type User struct {
	Wallet    string    `json:"wallet"`
	CreatedAt time.Time `json:"created_at"`
}

// LeaderboardEntry aggregates per-wallet outcomes. Earnings are denominated
// in whole tokens (claim amounts arrive in 6-decimal base units and are
// scaled down before accrual).
type LeaderboardEntry struct {
	Wallet           string    `json:"wallet"`
	TotalPredictions int64     `json:"total_predictions"`
	Wins             int64     `json:"wins"`
	Losses           int64     `json:"losses"`
	Earnings         float64   `json:"earnings"`
	UpdatedAt        time.Time `json:"updated_at"`
}
