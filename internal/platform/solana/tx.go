package solana

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/near/borsh-go"
)

// AccountMeta describes one account referenced by an instruction.
type AccountMeta struct {
	Pubkey     PublicKey
	IsSigner   bool
	IsWritable bool
}

// Instruction is a single program invocation.
type Instruction struct {
	ProgramID PublicKey
	Accounts  []AccountMeta
	Data      []byte
}

// instructionDiscriminator returns the 8-byte prefix Anchor derives from the
// snake-cased method name.
func instructionDiscriminator(method string) []byte {
	sum := sha256.Sum256([]byte("global:" + method))
	return sum[:discriminatorLen]
}

// ResolvePoolInstruction builds the resolve_pool instruction: the backend
// admin signs, the protocol singleton is read, and the pool account receives
// the scaled outcome price.
func ResolvePoolInstruction(programID, admin, protocol, pool PublicKey, scaledPrice int64) (Instruction, error) {
	args, err := borsh.Serialize(struct{ Price int64 }{Price: scaledPrice})
	if err != nil {
		return Instruction{}, fmt.Errorf("solana: encode resolve_pool args: %w", err)
	}

	data := append(instructionDiscriminator("resolve_pool"), args...)
	return Instruction{
		ProgramID: programID,
		Accounts: []AccountMeta{
			{Pubkey: admin, IsSigner: true, IsWritable: true},
			{Pubkey: protocol, IsSigner: false, IsWritable: false},
			{Pubkey: pool, IsSigner: false, IsWritable: true},
		},
		Data: data,
	}, nil
}

// appendCompactU16 appends Solana's compact-u16 length encoding.
func appendCompactU16(buf []byte, n int) []byte {
	for {
		if n < 0x80 {
			return append(buf, byte(n))
		}
		buf = append(buf, byte(n&0x7f)|0x80)
		n >>= 7
	}
}

// messageAccount is an account key with its merged signer/writable flags.
type messageAccount struct {
	key      PublicKey
	signer   bool
	writable bool
}

// collectAccounts merges all account references across instructions into the
// canonical message ordering: writable signers, readonly signers, writable
// non-signers, readonly non-signers. The payer is always first.
func collectAccounts(instructions []Instruction, payer PublicKey) []messageAccount {
	merged := []messageAccount{{key: payer, signer: true, writable: true}}
	index := map[PublicKey]int{payer: 0}

	add := func(key PublicKey, signer, writable bool) {
		if i, ok := index[key]; ok {
			merged[i].signer = merged[i].signer || signer
			merged[i].writable = merged[i].writable || writable
			return
		}
		index[key] = len(merged)
		merged = append(merged, messageAccount{key: key, signer: signer, writable: writable})
	}

	for _, ix := range instructions {
		for _, meta := range ix.Accounts {
			add(meta.Pubkey, meta.IsSigner, meta.IsWritable)
		}
		add(ix.ProgramID, false, false)
	}

	ordered := make([]messageAccount, 0, len(merged))
	for _, class := range []func(messageAccount) bool{
		func(a messageAccount) bool { return a.signer && a.writable },
		func(a messageAccount) bool { return a.signer && !a.writable },
		func(a messageAccount) bool { return !a.signer && a.writable },
		func(a messageAccount) bool { return !a.signer && !a.writable },
	} {
		for _, a := range merged {
			if class(a) {
				ordered = append(ordered, a)
			}
		}
	}
	return ordered
}

// BuildTransaction serializes a legacy transaction message for the given
// instructions, signs it with the keypair (which must be the fee payer), and
// returns the wire bytes ready for SendTransaction.
func BuildTransaction(instructions []Instruction, payer *Keypair, recentBlockhash string) ([]byte, error) {
	blockhash, err := base58.Decode(recentBlockhash)
	if err != nil || len(blockhash) != 32 {
		return nil, fmt.Errorf("solana: invalid blockhash %q", recentBlockhash)
	}

	accounts := collectAccounts(instructions, payer.PublicKey)
	index := make(map[PublicKey]int, len(accounts))
	numSigners, numReadonlySigned, numReadonlyUnsigned := 0, 0, 0
	for i, a := range accounts {
		index[a.key] = i
		if a.signer {
			numSigners++
			if !a.writable {
				numReadonlySigned++
			}
		} else if !a.writable {
			numReadonlyUnsigned++
		}
	}
	if numSigners != 1 {
		return nil, fmt.Errorf("solana: expected exactly one signer, got %d", numSigners)
	}

	// Message header + account keys.
	msg := []byte{byte(numSigners), byte(numReadonlySigned), byte(numReadonlyUnsigned)}
	msg = appendCompactU16(msg, len(accounts))
	for _, a := range accounts {
		msg = append(msg, a.key[:]...)
	}

	// Recent blockhash.
	msg = append(msg, blockhash...)

	// Instructions.
	msg = appendCompactU16(msg, len(instructions))
	for _, ix := range instructions {
		msg = append(msg, byte(index[ix.ProgramID]))
		msg = appendCompactU16(msg, len(ix.Accounts))
		for _, meta := range ix.Accounts {
			msg = append(msg, byte(index[meta.Pubkey]))
		}
		msg = appendCompactU16(msg, len(ix.Data))
		msg = append(msg, ix.Data...)
	}

	signature := ed25519.Sign(payer.PrivateKey, msg)

	tx := appendCompactU16(nil, 1)
	tx = append(tx, signature...)
	tx = append(tx, msg...)
	return tx, nil
}
