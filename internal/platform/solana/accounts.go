package solana

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/near/borsh-go"

	"github.com/swivlabs/swivd/internal/domain"
)

// discriminatorLen is the Anchor account/event discriminator length.
const discriminatorLen = 8

// accountDiscriminator returns the 8-byte prefix Anchor writes at the start
// of every account of the named type.
func accountDiscriminator(name string) []byte {
	sum := sha256.Sum256([]byte("account:" + name))
	return sum[:discriminatorLen]
}

// PoolAccount is the Borsh layout of an on-chain pool, minus the leading
// discriminator. Field order must match the program exactly.
type PoolAccount struct {
	PoolID             uint64
	Admin              PublicKey
	Name               string
	Metadata           string
	TokenMint          PublicKey
	StartTime          int64
	EndTime            int64
	VaultBalance       uint64
	TotalWeight        uint64
	MaxAccuracyBuffer  uint64
	ConvictionBonusBps uint16
	ResolutionTarget   int64
	IsResolved         bool
	ResolutionTs       int64
	WeightFinalized    bool
	TotalParticipants  uint32
}

// UserBetAccount is the Borsh layout of an on-chain bet, minus the leading
// discriminator.
type UserBetAccount struct {
	Owner            PublicKey
	Pool             PublicKey
	Deposit          uint64
	Prediction       int64
	CalculatedWeight uint64
	IsWeightAdded    bool
	Status           borsh.Enum
	CreationTs       int64
	EndTimestamp     int64
	UpdateCount      uint32
}

// ProtocolAccount is the Borsh layout of the protocol singleton, minus the
// leading discriminator.
type ProtocolAccount struct {
	Admin          PublicKey
	TreasuryWallet PublicKey
	ProtocolFeeBps uint16
	Paused         bool
	TotalUsers     uint64
	TotalPools     uint64
}

// Bet status enum variants as laid out on-chain.
const (
	betStatusActive   borsh.Enum = 0
	betStatusClaimed  borsh.Enum = 1
	betStatusRefunded borsh.Enum = 2
)

// BetStatusKey projects the on-chain status enum to its lower-cased string
// key. Unknown variants degrade to "unknown" rather than failing the sync.
func BetStatusKey(status borsh.Enum) domain.BetStatus {
	switch status {
	case betStatusActive:
		return domain.BetStatusActive
	case betStatusClaimed:
		return domain.BetStatusClaimed
	case betStatusRefunded:
		return domain.BetStatusRefunded
	default:
		return domain.BetStatusUnknown
	}
}

var (
	poolDiscriminator     = accountDiscriminator("Pool")
	userBetDiscriminator  = accountDiscriminator("UserBet")
	protocolDiscriminator = accountDiscriminator("Protocol")
)

// PoolDiscriminator returns the discriminator used to scan for pool accounts.
func PoolDiscriminator() []byte {
	return bytes.Clone(poolDiscriminator)
}

// UserBetDiscriminator returns the discriminator used to scan for bet accounts.
func UserBetDiscriminator() []byte {
	return bytes.Clone(userBetDiscriminator)
}

func stripDiscriminator(data, want []byte, name string) ([]byte, error) {
	if len(data) < discriminatorLen {
		return nil, fmt.Errorf("solana: %s account data too short (%d bytes)", name, len(data))
	}
	if !bytes.Equal(data[:discriminatorLen], want) {
		return nil, fmt.Errorf("solana: account is not a %s", name)
	}
	return data[discriminatorLen:], nil
}

// DecodePool decodes a pool account's raw data.
func DecodePool(data []byte) (PoolAccount, error) {
	var acc PoolAccount
	payload, err := stripDiscriminator(data, poolDiscriminator, "Pool")
	if err != nil {
		return acc, err
	}
	if err := borsh.Deserialize(&acc, payload); err != nil {
		return acc, fmt.Errorf("solana: decode pool account: %w", err)
	}
	return acc, nil
}

// DecodeUserBet decodes a user bet account's raw data.
func DecodeUserBet(data []byte) (UserBetAccount, error) {
	var acc UserBetAccount
	payload, err := stripDiscriminator(data, userBetDiscriminator, "UserBet")
	if err != nil {
		return acc, err
	}
	if err := borsh.Deserialize(&acc, payload); err != nil {
		return acc, fmt.Errorf("solana: decode user bet account: %w", err)
	}
	return acc, nil
}

// DecodeProtocol decodes the protocol singleton account's raw data.
func DecodeProtocol(data []byte) (ProtocolAccount, error) {
	var acc ProtocolAccount
	payload, err := stripDiscriminator(data, protocolDiscriminator, "Protocol")
	if err != nil {
		return acc, err
	}
	if err := borsh.Deserialize(&acc, payload); err != nil {
		return acc, fmt.Errorf("solana: decode protocol account: %w", err)
	}
	return acc, nil
}
