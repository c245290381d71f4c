package asset

import (
	"context"
	"sync"

	"tessera/internal/registry/models"
	"tessera/pkg/domain"
	"tessera/pkg/platform/sentinel"
)

// InMemoryStore allocates sequential asset ids and keeps records by id.
type InMemoryStore struct {
	mu     sync.RWMutex
	nextID domain.AssetID
	assets map[domain.AssetID]models.AssetRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		nextID: 1,
		assets: make(map[domain.AssetID]models.AssetRecord),
	}
}

// Create assigns the next id to the record and stores it.
func (s *InMemoryStore) Create(_ context.Context, record *models.AssetRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record.AssetID = s.nextID
	s.nextID++
	s.assets[record.AssetID] = *record
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, assetID domain.AssetID) (*models.AssetRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.assets[assetID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := record
	return &cp, nil
}

// Count returns the number of issued assets.
func (s *InMemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.assets), nil
}
