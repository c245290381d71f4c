package spec

import (
	"context"
	"sync"

	"tessera/internal/transfer/models"
	"tessera/pkg/domain"
	"tessera/pkg/platform/sentinel"
)

// InMemoryStore keeps one fraction spec per asset.
type InMemoryStore struct {
	mu    sync.RWMutex
	specs map[domain.AssetID]models.FractionSpec
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{specs: make(map[domain.AssetID]models.FractionSpec)}
}

func (s *InMemoryStore) Get(_ context.Context, assetID domain.AssetID) (models.FractionSpec, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sp, ok := s.specs[assetID]
	if !ok {
		return models.FractionSpec{}, sentinel.ErrNotFound
	}
	return sp, nil
}

func (s *InMemoryStore) Put(_ context.Context, sp models.FractionSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.specs[sp.AssetID] = sp
	return nil
}
