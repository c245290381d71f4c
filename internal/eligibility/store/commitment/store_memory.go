package commitment

import (
	"context"
	"sync"

	"tessera/internal/eligibility/models"
	"tessera/pkg/domain"
	"tessera/pkg/platform/sentinel"
)

// InMemoryStore keeps one commitment record per principal.
type InMemoryStore struct {
	mu          sync.RWMutex
	commitments map[domain.Principal]models.Commitment
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{commitments: make(map[domain.Principal]models.Commitment)}
}

// CreateIfAbsent stores a commitment unless the principal already has an
// active one. A deactivated record is replaced (re-registration).
func (s *InMemoryStore) CreateIfAbsent(_ context.Context, c *models.Commitment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.commitments[c.Principal]; ok && existing.Active {
		return sentinel.ErrConflict
	}
	s.commitments[c.Principal] = *c
	return nil
}

func (s *InMemoryStore) FindByPrincipal(_ context.Context, principal domain.Principal) (*models.Commitment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.commitments[principal]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := c
	return &cp, nil
}

// Update overwrites an existing record.
func (s *InMemoryStore) Update(_ context.Context, c *models.Commitment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.commitments[c.Principal]; !ok {
		return sentinel.ErrNotFound
	}
	s.commitments[c.Principal] = *c
	return nil
}
