package keys

import (
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// MemoryStore is a SecretStore that never touches disk.
type MemoryStore struct {
	mu  sync.Mutex
	key solana.PrivateKey
}

// NewMemoryStore returns a store holding key, or an empty store when key is nil.
func NewMemoryStore(key solana.PrivateKey) *MemoryStore {
	return &MemoryStore{key: key}
}

func (ms *MemoryStore) Load() (solana.PrivateKey, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.key == nil {
		return nil, ErrKeyNotFound
	}
	return ms.key, nil
}

func (ms *MemoryStore) CreateAndPersist() (solana.PrivateKey, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.key != nil {
		return nil, fmt.Errorf("refusing to overwrite existing key")
	}
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, err
	}
	ms.key = key
	return key, nil
}

func (ms *MemoryStore) Location() string {
	return "memory"
}
