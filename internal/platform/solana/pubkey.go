// Package solana is a typed client for the Solana JSON-RPC API and for the
// prediction-market program's accounts, events, and instructions. It covers
// exactly the surface the sync engine and the resolver need: account reads,
// program account scans, program-derived addresses, transaction submission
// with confirmation, and a websocket log subscription that decodes program
// events.
package solana

import (
	"crypto/sha256"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// PublicKey is a 32-byte ed25519 public key or program address.
type PublicKey [32]byte

// PublicKeyFromBase58 parses a base58-encoded address.
func PublicKeyFromBase58(s string) (PublicKey, error) {
	var pk PublicKey
	raw, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("solana: decode address %q: %w", s, err)
	}
	if len(raw) != len(pk) {
		return pk, fmt.Errorf("solana: address %q is %d bytes, want 32", s, len(raw))
	}
	copy(pk[:], raw)
	return pk, nil
}

// String returns the base58 encoding of the key.
func (pk PublicKey) String() string {
	return base58.Encode(pk[:])
}

// Bytes returns the raw key bytes.
func (pk PublicKey) Bytes() []byte {
	return pk[:]
}

// IsZero reports whether the key is all zeroes.
func (pk PublicKey) IsZero() bool {
	return pk == PublicKey{}
}

// pdaMarker is appended to the seed hash input so a PDA can never collide
// with a hash computed for any other purpose.
const pdaMarker = "ProgramDerivedAddress"

// isOnCurve reports whether b decompresses to a valid ed25519 point. Program
// addresses must NOT be on the curve, so no private key can exist for them.
func isOnCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

// CreateProgramAddress hashes the seeds, the program id, and the PDA marker,
// and returns the result if it falls off the curve.
func CreateProgramAddress(seeds [][]byte, programID PublicKey) (PublicKey, error) {
	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > 32 {
			return PublicKey{}, fmt.Errorf("solana: seed exceeds 32 bytes")
		}
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte(pdaMarker))
	digest := h.Sum(nil)

	if isOnCurve(digest) {
		return PublicKey{}, fmt.Errorf("solana: derived address is on the ed25519 curve")
	}

	var pk PublicKey
	copy(pk[:], digest)
	return pk, nil
}

// FindProgramAddress derives the canonical program address for the given
// seeds by searching bump seeds downward from 255. The result is fully
// deterministic for a (seeds, programID) pair.
func FindProgramAddress(seeds [][]byte, programID PublicKey) (PublicKey, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		trial := append(append([][]byte{}, seeds...), []byte{uint8(bump)})
		pk, err := CreateProgramAddress(trial, programID)
		if err == nil {
			return pk, uint8(bump), nil
		}
	}
	return PublicKey{}, 0, fmt.Errorf("solana: no viable bump seed found")
}

// Seed byte-strings used by the program for its PDAs.
var (
	SeedProtocol  = []byte("protocol")
	SeedPool      = []byte("pool")
	SeedPoolVault = []byte("pool_vault")
)

// ProtocolAddress returns the protocol singleton PDA for the program.
func ProtocolAddress(programID PublicKey) (PublicKey, error) {
	pk, _, err := FindProgramAddress([][]byte{SeedProtocol}, programID)
	return pk, err
}

// PoolVaultAddress returns the vault PDA for a pool account.
func PoolVaultAddress(pool, programID PublicKey) (PublicKey, error) {
	pk, _, err := FindProgramAddress([][]byte{SeedPoolVault, pool.Bytes()}, programID)
	return pk, err
}
