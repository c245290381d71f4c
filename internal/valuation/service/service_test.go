package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	oraclemodels "tessera/internal/oracle/models"
	registrymodels "tessera/internal/registry/models"
	assetstore "tessera/internal/registry/store/asset"
	"tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
)

type fakePrices struct {
	snapshot oraclemodels.PriceSnapshot
	err      error
}

func (p *fakePrices) ReadFreshPrice(_ context.Context, _ domain.FeedID) (oraclemodels.PriceSnapshot, error) {
	if p.err != nil {
		return oraclemodels.PriceSnapshot{}, p.err
	}
	return p.snapshot, nil
}

type ValuationServiceSuite struct {
	suite.Suite
	ctx     context.Context
	assets  *assetstore.InMemoryStore
	prices  *fakePrices
	admin   domain.AdminCapability
	service *Service
	assetID domain.AssetID
}

func TestValuationServiceSuite(t *testing.T) {
	suite.Run(t, new(ValuationServiceSuite))
}

func (s *ValuationServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.admin = domain.NewAdminCapability("test-admin-key")
	s.assets = assetstore.NewInMemoryStore()
	s.prices = &fakePrices{snapshot: oraclemodels.PriceSnapshot{
		FeedID:      "RWA-REIT/USD",
		Price:       200,
		Expo:        -2,
		PublishedAt: time.Now(),
		Valid:       true,
	}}

	record, err := registrymodels.NewAssetRecord(
		"issuer-1", domain.Hash32{1}, 100_000, 100, 1,
		"RWA-REIT/USD", 100, -2,
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(err)
	s.Require().NoError(s.assets.Create(s.ctx, record))
	s.assetID = record.AssetID

	s.service = New(s.assets, s.prices, s.admin)
}

func (s *ValuationServiceSuite) TestCalculateYield() {
	s.Run("full year at 500 bps", func() {
		total, err := s.service.CalculateYield(s.ctx, s.assetID, 10_000, 365*24*time.Hour)
		s.Require().NoError(err)
		s.Equal(int64(10_500), total)
	})

	s.Run("single day floors the interest", func() {
		total, err := s.service.CalculateYield(s.ctx, s.assetID, 10_000, 24*time.Hour)
		s.Require().NoError(err)
		s.Equal(int64(10_001), total)
	})

	s.Run("partial days do not accrue", func() {
		total, err := s.service.CalculateYield(s.ctx, s.assetID, 10_000, 47*time.Hour)
		s.Require().NoError(err)

		oneDay, err := s.service.CalculateYield(s.ctx, s.assetID, 10_000, 24*time.Hour)
		s.Require().NoError(err)
		s.Equal(oneDay, total)
	})

	s.Run("large principal does not overflow", func() {
		total, err := s.service.CalculateYield(s.ctx, s.assetID, 5_000_000_000_000, 365*24*time.Hour)
		s.Require().NoError(err)
		s.Equal(int64(5_250_000_000_000), total)
	})

	s.Run("rate change applies to subsequent calculations", func() {
		s.Require().NoError(s.service.SetBaseAPY(s.ctx, s.admin, 1_000))
		total, err := s.service.CalculateYield(s.ctx, s.assetID, 10_000, 365*24*time.Hour)
		s.Require().NoError(err)
		s.Equal(int64(11_000), total)
	})

	s.Run("zero principal", func() {
		_, err := s.service.CalculateYield(s.ctx, s.assetID, 0, 24*time.Hour)
		s.True(dErrors.HasCode(err, dErrors.CodeZeroPrincipal))
	})

	s.Run("duration under one day", func() {
		_, err := s.service.CalculateYield(s.ctx, s.assetID, 10_000, 23*time.Hour)
		s.True(dErrors.HasCode(err, dErrors.CodeZeroDuration))
	})

	s.Run("unknown asset", func() {
		_, err := s.service.CalculateYield(s.ctx, domain.AssetID(999), 10_000, 24*time.Hour)
		s.True(dErrors.HasCode(err, dErrors.CodeAssetNotFound))
	})
}

func (s *ValuationServiceSuite) TestSetBaseAPY() {
	s.Run("requires the authority capability", func() {
		err := s.service.SetBaseAPY(s.ctx, domain.NewAdminCapability("wrong"), 1_000)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
		s.Equal(DefaultBaseAPY, s.service.BaseAPY())
	})

	s.Run("rejects negative rates", func() {
		err := s.service.SetBaseAPY(s.ctx, s.admin, -1)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidParameters))
	})
}

func (s *ValuationServiceSuite) TestPreviewFractionValue() {
	s.Run("scales pro-rata value by price movement since mint", func() {
		// Minted at 100, now 200: each of the 100 fractions of a 100000
		// asset is worth 2000.
		value, err := s.service.PreviewFractionValue(s.ctx, s.assetID)
		s.Require().NoError(err)
		s.Equal(int64(2_000), value)
	})

	s.Run("floors the result", func() {
		s.prices.snapshot.Price = 133
		value, err := s.service.PreviewFractionValue(s.ctx, s.assetID)
		s.Require().NoError(err)
		s.Equal(int64(1_330), value)
	})

	s.Run("propagates stale price errors", func() {
		s.prices.err = dErrors.New(dErrors.CodePriceStale, "snapshot too old")
		_, err := s.service.PreviewFractionValue(s.ctx, s.assetID)
		s.True(dErrors.HasCode(err, dErrors.CodePriceStale))
	})

	s.Run("unknown asset", func() {
		_, err := s.service.PreviewFractionValue(s.ctx, domain.AssetID(999))
		s.True(dErrors.HasCode(err, dErrors.CodeAssetNotFound))
	})
}
