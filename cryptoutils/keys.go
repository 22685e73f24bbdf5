package cryptoutils

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/argon2"
)

// GenerateSigningKey creates a fresh secp256k1 signing key.
func GenerateSigningKey() (*ecdsa.PrivateKey, error) {
	return crypto.GenerateKey()
}

// LoadSigningKey reads a hex-encoded secp256k1 key from a file.
func LoadSigningKey(path string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.LoadECDSA(path)
	if err != nil {
		return nil, fmt.Errorf("loading signing key from %s: %w", path, err)
	}
	return key, nil
}

// DeriveSigningKey derives a deterministic secp256k1 key from a passphrase
// using Argon2id. The same passphrase always yields the same key, so a dev
// or test oracle can be reconstructed without shipping key files around.
func DeriveSigningKey(passphrase string) (*ecdsa.PrivateKey, error) {
	salt := []byte("attestation-oracle-signing-key")

	// Parameters: time=1, memory=64*1024, threads=4, keyLen=32
	seed := argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32)

	key, err := crypto.ToECDSA(seed)
	if err != nil {
		return nil, fmt.Errorf("deriving signing key: %w", err)
	}
	return key, nil
}
