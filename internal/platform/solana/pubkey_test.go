package solana

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublicKeyBase58RoundTrip(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	var pk PublicKey
	copy(pk[:], pub)

	parsed, err := PublicKeyFromBase58(pk.String())
	require.NoError(t, err)
	assert.Equal(t, pk, parsed)
}

func TestPublicKeyFromBase58Rejects(t *testing.T) {
	_, err := PublicKeyFromBase58("not-base58-0OIl")
	assert.Error(t, err)

	// Valid base58 but wrong length.
	_, err = PublicKeyFromBase58("abc")
	assert.Error(t, err)
}

func TestFindProgramAddress(t *testing.T) {
	var programID PublicKey
	copy(programID[:], []byte("swiv_program_id_for_unit_tests__"))

	addr1, bump1, err := FindProgramAddress([][]byte{SeedProtocol}, programID)
	require.NoError(t, err)

	// Deterministic: same inputs, same output.
	addr2, bump2, err := FindProgramAddress([][]byte{SeedProtocol}, programID)
	require.NoError(t, err)
	assert.Equal(t, addr1, addr2)
	assert.Equal(t, bump1, bump2)

	// Different seeds give a different address.
	addr3, _, err := FindProgramAddress([][]byte{SeedPool}, programID)
	require.NoError(t, err)
	assert.NotEqual(t, addr1, addr3)

	// The derived address must not be a valid curve point, so it can never
	// have a private key.
	assert.False(t, isOnCurve(addr1.Bytes()))
}

func TestPoolVaultAddressDependsOnPool(t *testing.T) {
	var programID, poolA, poolB PublicKey
	copy(programID[:], []byte("swiv_program_id_for_unit_tests__"))
	poolA[0] = 1
	poolB[0] = 2

	vaultA, err := PoolVaultAddress(poolA, programID)
	require.NoError(t, err)
	vaultB, err := PoolVaultAddress(poolB, programID)
	require.NoError(t, err)
	assert.NotEqual(t, vaultA, vaultB)
}

func TestCreateProgramAddressRejectsLongSeed(t *testing.T) {
	var programID PublicKey
	_, err := CreateProgramAddress([][]byte{make([]byte, 33)}, programID)
	assert.Error(t, err)
}
