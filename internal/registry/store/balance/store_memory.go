package balance

import (
	"context"
	"sync"

	"tessera/pkg/domain"
)

type key struct {
	assetID domain.AssetID
	holder  domain.Principal
}

// InMemoryStore is the balance table: (asset, holder) → fractions held.
// Entries are created implicitly on first credit and never deleted; a zero
// balance is a valid terminal state.
type InMemoryStore struct {
	mu       sync.RWMutex
	balances map[key]int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{balances: make(map[key]int64)}
}

func (s *InMemoryStore) Get(_ context.Context, assetID domain.AssetID, holder domain.Principal) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[key{assetID, holder}], nil
}

func (s *InMemoryStore) Set(_ context.Context, assetID domain.AssetID, holder domain.Principal, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[key{assetID, holder}] = amount
	return nil
}

// ListByAsset returns every holder's balance for one asset, including
// zero-balance terminal entries.
func (s *InMemoryStore) ListByAsset(_ context.Context, assetID domain.AssetID) (map[domain.Principal]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[domain.Principal]int64)
	for k, amount := range s.balances {
		if k.assetID == assetID {
			out[k.holder] = amount
		}
	}
	return out, nil
}
