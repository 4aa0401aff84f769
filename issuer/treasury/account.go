package treasury

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Account is the custodial treasury identity. The key is read-only after
// construction and is shared by every request.
type Account struct {
	key   solana.PrivateKey
	owner solana.PublicKey
}

// NewAccount creates an Account from the persisted treasury key and the
// external owner address authorized to request withdrawals. owner may be zero
// when no owner is configured.
func NewAccount(key solana.PrivateKey, owner solana.PublicKey) (*Account, error) {
	if len(key) != 64 {
		return nil, fmt.Errorf("treasury key must be 64 bytes, got %d", len(key))
	}
	if !owner.IsZero() && owner.Equals(key.PublicKey()) {
		return nil, fmt.Errorf("treasury owner must be an external address")
	}
	return &Account{key: key, owner: owner}, nil
}

// Address returns the treasury address.
func (a *Account) Address() solana.PublicKey {
	return a.key.PublicKey()
}

// Owner returns the configured owner address.
func (a *Account) Owner() solana.PublicKey {
	return a.owner
}

func (a *Account) signer(pk solana.PublicKey) *solana.PrivateKey {
	if !pk.Equals(a.key.PublicKey()) {
		return nil
	}
	key := a.key
	return &key
}
