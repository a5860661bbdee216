package session

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/genepilepsy-guide/internal/domain"
)

const defaultMaxItems = 1000

// MemoryStore is a size-bounded in-process store with per-entry expiry.
type MemoryStore struct {
	cache *expirable.LRU[string, domain.Lookup]
}

// NewMemoryStore creates a store holding at most maxItems lookups for ttl each.
func NewMemoryStore(maxItems int, ttl time.Duration) *MemoryStore {
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{cache: expirable.NewLRU[string, domain.Lookup](maxItems, nil, ttl)}
}

// Save stores lookup and returns its id, assigning one when empty.
func (m *MemoryStore) Save(_ context.Context, lookup domain.Lookup) (string, error) {
	lookup.ID = newID(lookup)
	m.cache.Add(lookup.ID, lookup)
	return lookup.ID, nil
}

// Get returns the lookup or domain.ErrSessionNotFound.
func (m *MemoryStore) Get(_ context.Context, id string) (domain.Lookup, error) {
	lookup, ok := m.cache.Get(id)
	if !ok {
		return domain.Lookup{}, domain.ErrSessionNotFound
	}
	return lookup, nil
}

// Delete removes the lookup. Deleting a missing id is not an error.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.cache.Remove(id)
	return nil
}

// Len reports the number of live entries.
func (m *MemoryStore) Len() int {
	return m.cache.Len()
}
