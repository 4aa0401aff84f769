package keys

import (
	"errors"

	"github.com/gagliardetto/solana-go"
)

// ErrKeyNotFound is returned by SecretStore.Load when no key material exists.
var ErrKeyNotFound = errors.New("key not found")

// SecretStore persists a single long-lived signing identity.
type SecretStore interface {
	// Load returns the stored key, or ErrKeyNotFound when none exists.
	Load() (solana.PrivateKey, error)

	// CreateAndPersist generates a new key and stores it. It fails if key
	// material already exists.
	CreateAndPersist() (solana.PrivateKey, error)

	// Location describes where the key lives, for logs and operator output.
	Location() string
}
