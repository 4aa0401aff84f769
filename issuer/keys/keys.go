package keys

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"
)

// LoadOrCreate returns the identity held by store, generating and persisting a
// new one only when the store reports ErrKeyNotFound. Any other load failure is
// returned as is so unreadable key material is never replaced.
func LoadOrCreate(store SecretStore, logger zerolog.Logger) (solana.PrivateKey, bool, error) {
	key, err := store.Load()
	if err == nil {
		return key, false, nil
	}
	if !errors.Is(err, ErrKeyNotFound) {
		return nil, false, err
	}

	logger.Info().Str("location", store.Location()).Msg("no keypair found, creating one")
	key, err = store.CreateAndPersist()
	if err != nil {
		return nil, false, fmt.Errorf("failed to create keypair at %s: %w", store.Location(), err)
	}
	return key, true, nil
}

// ParseSecret decodes a 64-byte secret key given either as a JSON byte array
// or as a base58 string (the format wallets export).
func ParseSecret(data []byte) (solana.PrivateKey, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty key data")
	}

	var raw []byte
	if data[0] == '[' {
		var ints []int
		if err := json.Unmarshal(data, &ints); err != nil {
			return nil, fmt.Errorf("failed to parse key as JSON array: %w", err)
		}
		raw = make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("key byte %d out of range: %d", i, v)
			}
			raw[i] = byte(v)
		}
	} else {
		decoded, err := base58.Decode(string(data))
		if err != nil {
			return nil, fmt.Errorf("failed to parse key as base58: %w", err)
		}
		raw = decoded
	}

	key := solana.PrivateKey(raw)
	if err := validateSecret(key); err != nil {
		return nil, err
	}
	return key, nil
}

// validateSecret checks the key is a well-formed ed25519 secret whose trailing
// 32 bytes are the public key derived from its seed.
func validateSecret(key solana.PrivateKey) error {
	if len(key) != ed25519.PrivateKeySize {
		return fmt.Errorf("invalid key length: expected %d bytes, got %d", ed25519.PrivateKeySize, len(key))
	}
	derived := ed25519.NewKeyFromSeed(key[:ed25519.SeedSize])
	if !bytes.Equal(derived, key) {
		return fmt.Errorf("public key half does not match the seed")
	}
	return nil
}

// AssetIdentity is the one-time keypair of a single minted asset. It is never
// written to storage.
type AssetIdentity struct {
	key solana.PrivateKey
}

// NewAssetIdentity generates a fresh asset identity.
func NewAssetIdentity() (AssetIdentity, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return AssetIdentity{}, fmt.Errorf("failed to generate asset identity: %w", err)
	}
	return AssetIdentity{key: key}, nil
}

// PublicKey returns the asset (mint) address.
func (a AssetIdentity) PublicKey() solana.PublicKey {
	return a.key.PublicKey()
}

// IsZero reports whether a is the zero value.
func (a AssetIdentity) IsZero() bool {
	return len(a.key) == 0
}

// Signer returns a key getter that only answers for the asset address, for use
// with solana.Transaction.PartialSign.
func (a AssetIdentity) Signer() func(solana.PublicKey) *solana.PrivateKey {
	return func(pk solana.PublicKey) *solana.PrivateKey {
		if len(a.key) == 0 || !pk.Equals(a.key.PublicKey()) {
			return nil
		}
		key := a.key
		return &key
	}
}
