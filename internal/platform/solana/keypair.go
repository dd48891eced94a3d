package solana

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// pbkdf2Iterations is the OWASP-recommended minimum for HMAC-SHA256.
	pbkdf2Iterations = 480_000
	saltLen          = 16
	aesKeyLen        = 32
	keyFileVersion   = 1
)

// Keypair is the backend's ed25519 signing identity.
type Keypair struct {
	PublicKey  PublicKey
	PrivateKey ed25519.PrivateKey
}

// KeypairConfig carries the information LoadKeypair needs to resolve the
// signing key. Populate from configuration.
type KeypairConfig struct {
	// Path is a standard Solana keypair file: a JSON array of 64 bytes.
	Path string

	// EncryptedPath is a file produced by EncryptKeypair. Used together
	// with Password when Path is empty.
	EncryptedPath string
	Password      string
}

// encryptedKeyJSON is the on-disk format for an encrypted keypair.
type encryptedKeyJSON struct {
	Version    int    `json:"version"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// LoadKeypair resolves the signing keypair from the config, preferring the
// plain keypair file. No key available is a fatal startup condition for the
// resolver, so errors here should abort boot.
func LoadKeypair(cfg KeypairConfig) (*Keypair, error) {
	switch {
	case cfg.Path != "":
		raw, err := os.ReadFile(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("solana: read keypair file: %w", err)
		}
		return keypairFromJSON(raw)
	case cfg.EncryptedPath != "":
		if cfg.Password == "" {
			return nil, errors.New("solana: encrypted keypair requires a password")
		}
		raw, err := os.ReadFile(cfg.EncryptedPath)
		if err != nil {
			return nil, fmt.Errorf("solana: read encrypted keypair file: %w", err)
		}
		plain, err := decryptKeypair(raw, cfg.Password)
		if err != nil {
			return nil, err
		}
		return keypairFromJSON(plain)
	default:
		return nil, errors.New("solana: no signing keypair configured")
	}
}

// keypairFromJSON parses the Solana CLI keypair format: a JSON array of the
// 64 bytes of the expanded ed25519 private key.
func keypairFromJSON(raw []byte) (*Keypair, error) {
	var ints []int16
	if err := json.Unmarshal(raw, &ints); err != nil {
		return nil, fmt.Errorf("solana: parse keypair json: %w", err)
	}
	if len(ints) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("solana: keypair is %d bytes, want %d", len(ints), ed25519.PrivateKeySize)
	}

	keyBytes := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("solana: keypair byte %d out of range", i)
		}
		keyBytes[i] = byte(v)
	}

	priv := ed25519.PrivateKey(keyBytes)
	var pub PublicKey
	copy(pub[:], priv.Public().(ed25519.PublicKey))
	return &Keypair{PublicKey: pub, PrivateKey: priv}, nil
}

// EncryptKeypair encrypts a keypair JSON payload with a password using
// PBKDF2-HMAC-SHA256 key derivation and AES-256-GCM. The result is suitable
// for writing to disk and loading via KeypairConfig.EncryptedPath.
func EncryptKeypair(keypairJSON []byte, password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("solana: password must not be empty")
	}
	if _, err := keypairFromJSON(keypairJSON); err != nil {
		return nil, err
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("solana: generating salt: %w", err)
	}
	derived := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, aesKeyLen, sha256.New)

	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("solana: aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("solana: gcm mode: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("solana: generating nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, keypairJSON, nil)

	return json.Marshal(encryptedKeyJSON{
		Version:    keyFileVersion,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	})
}

func decryptKeypair(fileData []byte, password string) ([]byte, error) {
	var blob encryptedKeyJSON
	if err := json.Unmarshal(fileData, &blob); err != nil {
		return nil, fmt.Errorf("solana: parse encrypted keypair: %w", err)
	}
	if blob.Version != keyFileVersion {
		return nil, fmt.Errorf("solana: unsupported key file version %d", blob.Version)
	}

	salt, err := base64.StdEncoding.DecodeString(blob.Salt)
	if err != nil {
		return nil, fmt.Errorf("solana: decode salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(blob.Nonce)
	if err != nil {
		return nil, fmt.Errorf("solana: decode nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(blob.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("solana: decode ciphertext: %w", err)
	}

	derived := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, aesKeyLen, sha256.New)

	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("solana: aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("solana: gcm mode: %w", err)
	}

	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.New("solana: keypair decryption failed (wrong password?)")
	}
	return plain, nil
}
