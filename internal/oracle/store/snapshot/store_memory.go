package snapshot

import (
	"context"
	"sync"

	"tessera/internal/oracle/models"
	"tessera/pkg/domain"
	"tessera/pkg/platform/sentinel"
)

// InMemoryStore holds the latest snapshot per feed.
type InMemoryStore struct {
	mu        sync.RWMutex
	snapshots map[domain.FeedID]models.PriceSnapshot
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{snapshots: make(map[domain.FeedID]models.PriceSnapshot)}
}

func (s *InMemoryStore) Get(_ context.Context, feedID domain.FeedID) (models.PriceSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot, ok := s.snapshots[feedID]
	if !ok {
		return models.PriceSnapshot{}, sentinel.ErrNotFound
	}
	return snapshot, nil
}

func (s *InMemoryStore) Put(_ context.Context, snapshot models.PriceSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapshot.FeedID] = snapshot
	return nil
}
