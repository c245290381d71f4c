package memory

import (
	"context"
	"sync"

	"tessera/pkg/domain"
	"tessera/pkg/platform/events"
)

// InMemoryStore keeps emitted events in order of arrival, indexed by asset.
type InMemoryStore struct {
	mu      sync.RWMutex
	all     []events.Event
	byAsset map[domain.AssetID][]events.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byAsset: make(map[domain.AssetID][]events.Event)}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.all = nil
	s.byAsset = make(map[domain.AssetID][]events.Event)
}

func (s *InMemoryStore) Append(_ context.Context, event events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.all = append(s.all, event)
	if !event.AssetID.IsNil() {
		s.byAsset[event.AssetID] = append(s.byAsset[event.AssetID], event)
	}
	return nil
}

// ListByAsset returns the events recorded against one asset, oldest first.
func (s *InMemoryStore) ListByAsset(_ context.Context, assetID domain.AssetID) ([]events.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]events.Event{}, s.byAsset[assetID]...), nil
}

// ListAll returns every recorded event, oldest first.
func (s *InMemoryStore) ListAll(_ context.Context) ([]events.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]events.Event{}, s.all...), nil
}
