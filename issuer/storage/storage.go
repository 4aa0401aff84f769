// Package storage uploads passport metadata documents and returns their URI.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
)

// MetadataStore stores bytes and returns a URI for them. Stored content is
// never inspected.
type MetadataStore interface {
	Store(ctx context.Context, data []byte, contentType string) (string, error)
}

// MemoryStore keeps documents in memory, addressed by their SHA-256.
type MemoryStore struct {
	baseURL string

	mu    sync.RWMutex
	items map[string]memoryItem
}

type memoryItem struct {
	data        []byte
	contentType string
}

// NewMemoryStore creates a MemoryStore whose URIs are rooted at baseURL.
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		items:   make(map[string]memoryItem),
	}
}

func (m *MemoryStore) Store(ctx context.Context, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	id := hex.EncodeToString(sum[:])

	m.mu.Lock()
	m.items[id] = memoryItem{data: append([]byte(nil), data...), contentType: contentType}
	m.mu.Unlock()

	return fmt.Sprintf("%s/%s", m.baseURL, id), nil
}

// Get returns the document stored under uri.
func (m *MemoryStore) Get(uri string) ([]byte, string, bool) {
	id := strings.TrimPrefix(uri, m.baseURL+"/")

	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[id]
	return item.data, item.contentType, ok
}

// Len returns the number of stored documents.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
