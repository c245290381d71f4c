package spec

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"tessera/internal/transfer/models"
	"tessera/pkg/domain"
	"tessera/pkg/platform/sentinel"
)

type SpecStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func (s *SpecStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
}

func TestSpecStoreSuite(t *testing.T) {
	suite.Run(t, new(SpecStoreSuite))
}

func (s *SpecStoreSuite) TestPutAndGet() {
	s.Run("round-trips a spec", func() {
		sp := models.FractionSpec{
			AssetID:     1,
			TotalSupply: 100,
			MinUnit:     5,
			LockupEnd:   time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		}
		s.Require().NoError(s.store.Put(s.ctx, sp))

		got, err := s.store.Get(s.ctx, domain.AssetID(1))
		s.Require().NoError(err)
		s.Equal(sp, got)
	})

	s.Run("put overwrites the existing spec", func() {
		sp := models.FractionSpec{AssetID: 1, TotalSupply: 100, MinUnit: 1}
		s.Require().NoError(s.store.Put(s.ctx, sp))

		sp.MinUnit = 10
		s.Require().NoError(s.store.Put(s.ctx, sp))

		got, err := s.store.Get(s.ctx, domain.AssetID(1))
		s.Require().NoError(err)
		s.Equal(int64(10), got.MinUnit)
	})

	s.Run("unknown asset is not found", func() {
		_, err := s.store.Get(s.ctx, domain.AssetID(42))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}
