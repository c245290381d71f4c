package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	oraclemodels "tessera/internal/oracle/models"
	assetstore "tessera/internal/registry/store/asset"
	balancestore "tessera/internal/registry/store/balance"
	"tessera/internal/transfer"
	specstore "tessera/internal/transfer/store/spec"
	"tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
	"tessera/pkg/platform/events"
	eventsmemory "tessera/pkg/platform/events/store/memory"
	"tessera/pkg/requestcontext"
)

type fakeGate struct {
	eligible map[domain.Principal]bool
}

func (g *fakeGate) CheckEligible(_ context.Context, p domain.Principal) (bool, error) {
	return g.eligible[p], nil
}

type fakePrices struct {
	snapshots map[domain.FeedID]oraclemodels.PriceSnapshot
	err       error
}

func (p *fakePrices) ReadFreshPrice(_ context.Context, feed domain.FeedID) (oraclemodels.PriceSnapshot, error) {
	if p.err != nil {
		return oraclemodels.PriceSnapshot{}, p.err
	}
	return p.snapshots[feed], nil
}

type recordedRefund struct {
	to     domain.Principal
	amount int64
}

type fakeSettler struct {
	refunds []recordedRefund
	err     error
}

func (s *fakeSettler) Refund(_ context.Context, to domain.Principal, amount int64) error {
	s.refunds = append(s.refunds, recordedRefund{to: to, amount: amount})
	return s.err
}

type RegistryServiceSuite struct {
	suite.Suite
	ctx context.Context
	now time.Time

	assets    *assetstore.InMemoryStore
	balances  *balancestore.InMemoryStore
	eventLog  *eventsmemory.InMemoryStore
	gate      *fakeGate
	prices    *fakePrices
	policy    *transfer.Validator
	settler   *fakeSettler
	admin     domain.AdminCapability
	service   *Service
	issuer    domain.Principal
	buyer     domain.Principal
	recipient domain.Principal
	feed      domain.FeedID
}

func TestRegistryServiceSuite(t *testing.T) {
	suite.Run(t, new(RegistryServiceSuite))
}

func (s *RegistryServiceSuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	s.issuer = domain.Principal("issuer-1")
	s.buyer = domain.Principal("buyer-1")
	s.recipient = domain.Principal("recipient-1")
	s.feed = domain.FeedID("RWA-REIT/USD")
	s.admin = domain.NewAdminCapability("test-admin-key")

	s.assets = assetstore.NewInMemoryStore()
	s.balances = balancestore.NewInMemoryStore()
	s.eventLog = eventsmemory.NewInMemoryStore()
	s.gate = &fakeGate{eligible: map[domain.Principal]bool{
		s.issuer: true, s.buyer: true, s.recipient: true,
	}}
	s.prices = &fakePrices{snapshots: map[domain.FeedID]oraclemodels.PriceSnapshot{
		s.feed: {FeedID: s.feed, Price: 52_000_00, Expo: -2, PublishedAt: s.now, Valid: true},
	}}
	s.policy = transfer.NewValidator(specstore.NewInMemoryStore(), s.admin)
	s.settler = &fakeSettler{}

	s.service = New(s.assets, s.balances, s.gate, s.prices, s.policy,
		WithPublisher(events.NewStorePublisher(s.eventLog, nil)),
		WithSettler(s.settler),
	)
}

func (s *RegistryServiceSuite) SetupSubTest() {
	s.SetupTest()
}

func (s *RegistryServiceSuite) issue(fractionCount, totalValue int64, lockup time.Duration) domain.AssetID {
	s.T().Helper()
	id, err := s.service.IssueAsset(s.ctx, IssueAssetParams{
		Issuer:          s.issuer,
		DocumentHash:    domain.Hash32{0xde, 0xad},
		TotalValueMinor: totalValue,
		FractionCount:   fractionCount,
		MinFractionUnit: 1,
		LockupDuration:  lockup,
		FeedID:          s.feed,
	})
	s.Require().NoError(err)
	return id
}

func (s *RegistryServiceSuite) eventsOfType(t events.Type) []events.Event {
	all, err := s.eventLog.ListAll(s.ctx)
	s.Require().NoError(err)
	var out []events.Event
	for _, e := range all {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (s *RegistryServiceSuite) TestIssueAsset() {
	s.Run("credits full supply to issuer and snapshots mint price", func() {
		id := s.issue(100, 1_000_000, 0)

		balance, err := s.service.Balance(s.ctx, id, s.issuer)
		s.Require().NoError(err)
		s.Equal(int64(100), balance)

		record, exists, err := s.service.GetAssetRecord(s.ctx, id)
		s.Require().NoError(err)
		s.True(exists)
		s.Equal(int64(52_000_00), record.MintedAtPrice)
		s.Equal(int32(-2), record.MintedAtExpo)
		s.Equal(s.feed, record.MintedAtFeed)

		issued := s.eventsOfType(events.TypeAssetIssued)
		s.Require().Len(issued, 1)
		s.Equal(id, issued[0].AssetID)
	})

	s.Run("sequential ids", func() {
		first := s.issue(10, 1000, 0)
		second := s.issue(10, 1000, 0)
		s.Equal(first+1, second)
	})

	s.Run("rejects ineligible issuer without state change", func() {
		s.gate.eligible[s.issuer] = false
		_, err := s.service.IssueAsset(s.ctx, IssueAssetParams{
			Issuer:          s.issuer,
			DocumentHash:    domain.Hash32{1},
			TotalValueMinor: 1000,
			FractionCount:   10,
			MinFractionUnit: 1,
			FeedID:          s.feed,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeNotEligible))
		s.Empty(s.eventsOfType(events.TypeAssetIssued))
	})

	s.Run("rejects when fresh price is unavailable", func() {
		s.prices.err = dErrors.New(dErrors.CodePriceStale, "snapshot too old")
		_, err := s.service.IssueAsset(s.ctx, IssueAssetParams{
			Issuer:          s.issuer,
			DocumentHash:    domain.Hash32{1},
			TotalValueMinor: 1000,
			FractionCount:   10,
			MinFractionUnit: 1,
			FeedID:          s.feed,
		})
		s.True(dErrors.HasCode(err, dErrors.CodePriceStale))
	})

	s.Run("rejects invalid parameters", func() {
		_, err := s.service.IssueAsset(s.ctx, IssueAssetParams{
			Issuer:          s.issuer,
			DocumentHash:    domain.Hash32{1},
			TotalValueMinor: 1000,
			FractionCount:   0,
			MinFractionUnit: 1,
			FeedID:          s.feed,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidParameters))
	})
}

func (s *RegistryServiceSuite) TestPurchaseFraction() {
	s.Run("moves fractions and keeps exactly the pro-rata cost", func() {
		id := s.issue(10, 100_000, 0)

		result, err := s.service.PurchaseFraction(s.ctx, id, s.buyer, 1, 15_000)
		s.Require().NoError(err)
		s.Equal(int64(10_000), result.Cost)
		s.Equal(int64(5_000), result.Surplus)

		issuerBal, _ := s.service.Balance(s.ctx, id, s.issuer)
		buyerBal, _ := s.service.Balance(s.ctx, id, s.buyer)
		s.Equal(int64(9), issuerBal)
		s.Equal(int64(1), buyerBal)

		s.Require().Len(s.settler.refunds, 1)
		s.Equal(s.buyer, s.settler.refunds[0].to)
		s.Equal(int64(5_000), s.settler.refunds[0].amount)

		purchased := s.eventsOfType(events.TypeFractionPurchased)
		s.Require().Len(purchased, 1)
		s.Equal(int64(10_000), purchased[0].Cost)
	})

	s.Run("no refund call for exact payment", func() {
		id := s.issue(10, 100_000, 0)
		_, err := s.service.PurchaseFraction(s.ctx, id, s.buyer, 2, 20_000)
		s.Require().NoError(err)
		s.Empty(s.settler.refunds)
	})

	s.Run("cost formula handles large values without overflow", func() {
		id := s.issue(1_000_000, 5_000_000_000_000, 0)
		result, err := s.service.PurchaseFraction(s.ctx, id, s.buyer, 999_999, 5_000_000_000_000)
		s.Require().NoError(err)
		s.Equal(int64(4_999_995_000_000), result.Cost)
	})

	s.Run("rejects insufficient payment without state change", func() {
		id := s.issue(10, 100_000, 0)
		_, err := s.service.PurchaseFraction(s.ctx, id, s.buyer, 1, 9_999)
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientPayment))

		issuerBal, _ := s.service.Balance(s.ctx, id, s.issuer)
		s.Equal(int64(10), issuerBal)
		s.Empty(s.settler.refunds)
		s.Empty(s.eventsOfType(events.TypeFractionPurchased))
	})

	s.Run("rejects oversell", func() {
		id := s.issue(10, 100_000, 0)
		_, err := s.service.PurchaseFraction(s.ctx, id, s.buyer, 11, 200_000)
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientSupply))
	})

	s.Run("rejects ineligible buyer", func() {
		id := s.issue(10, 100_000, 0)
		s.gate.eligible[s.buyer] = false
		_, err := s.service.PurchaseFraction(s.ctx, id, s.buyer, 1, 10_000)
		s.True(dErrors.HasCode(err, dErrors.CodeNotEligible))
	})

	s.Run("rejects unknown asset", func() {
		_, err := s.service.PurchaseFraction(s.ctx, domain.AssetID(999), s.buyer, 1, 10_000)
		s.True(dErrors.HasCode(err, dErrors.CodeAssetNotFound))
	})

	s.Run("rejects issuer self-purchase and conserves supply", func() {
		id := s.issue(10, 100_000, 0)
		_, err := s.service.PurchaseFraction(s.ctx, id, s.issuer, 3, 100_000)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidParameters))

		holders, err := s.balances.ListByAsset(s.ctx, id)
		s.Require().NoError(err)
		var total int64
		for _, amount := range holders {
			total += amount
		}
		s.Equal(int64(10), total)
		issuerBal, _ := s.service.Balance(s.ctx, id, s.issuer)
		s.Equal(int64(10), issuerBal)
		s.Empty(s.eventsOfType(events.TypeFractionPurchased))
	})

	s.Run("refund failure does not roll back the purchase", func() {
		id := s.issue(10, 100_000, 0)
		s.settler.err = dErrors.New(dErrors.CodeInternal, "settlement rail down")
		result, err := s.service.PurchaseFraction(s.ctx, id, s.buyer, 1, 15_000)
		s.Require().NoError(err)
		s.Equal(int64(5_000), result.Surplus)

		buyerBal, _ := s.service.Balance(s.ctx, id, s.buyer)
		s.Equal(int64(1), buyerBal)
	})
}

func (s *RegistryServiceSuite) TestTransferFraction() {
	s.Run("moves fractions and conserves total supply", func() {
		id := s.issue(10, 100_000, 0)
		_, err := s.service.PurchaseFraction(s.ctx, id, s.buyer, 5, 50_000)
		s.Require().NoError(err)

		err = s.service.TransferFraction(s.ctx, id, s.buyer, s.recipient, 3)
		s.Require().NoError(err)

		holders, err := s.balances.ListByAsset(s.ctx, id)
		s.Require().NoError(err)
		var total int64
		for _, amount := range holders {
			total += amount
		}
		s.Equal(int64(10), total)
		s.Equal(int64(3), holders[s.recipient])
		s.Equal(int64(2), holders[s.buyer])

		transferred := s.eventsOfType(events.TypeFractionTransferred)
		s.Require().Len(transferred, 1)
	})

	s.Run("rejects during lockup with lockup code", func() {
		id := s.issue(10, 100_000, 24*time.Hour)
		_, err := s.service.PurchaseFraction(s.ctx, id, s.buyer, 5, 50_000)
		s.Require().NoError(err)

		err = s.service.TransferFraction(s.ctx, id, s.buyer, s.recipient, 1)
		s.True(dErrors.HasCode(err, dErrors.CodeLockupActive))

		// Same transfer succeeds once the lockup has elapsed.
		later := requestcontext.WithTime(context.Background(), s.now.Add(25*time.Hour))
		s.Require().NoError(s.service.TransferFraction(later, id, s.buyer, s.recipient, 1))
	})

	s.Run("rejects below minimum unit with specific code", func() {
		id, err := s.service.IssueAsset(s.ctx, IssueAssetParams{
			Issuer:          s.issuer,
			DocumentHash:    domain.Hash32{2},
			TotalValueMinor: 100_000,
			FractionCount:   100,
			MinFractionUnit: 5,
			FeedID:          s.feed,
		})
		s.Require().NoError(err)

		err = s.service.TransferFraction(s.ctx, id, s.issuer, s.recipient, 3)
		s.True(dErrors.HasCode(err, dErrors.CodeBelowMinimumUnit))
	})

	s.Run("rejects ineligible recipient", func() {
		id := s.issue(10, 100_000, 0)
		s.gate.eligible[s.recipient] = false
		err := s.service.TransferFraction(s.ctx, id, s.issuer, s.recipient, 1)
		s.True(dErrors.HasCode(err, dErrors.CodeNotEligible))
	})

	s.Run("rejects insufficient sender balance", func() {
		id := s.issue(10, 100_000, 0)
		err := s.service.TransferFraction(s.ctx, id, s.buyer, s.recipient, 1)
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientSupply))
	})

	s.Run("rejects self transfer", func() {
		id := s.issue(10, 100_000, 0)
		err := s.service.TransferFraction(s.ctx, id, s.issuer, s.issuer, 1)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidParameters))
	})
}

func (s *RegistryServiceSuite) TestRecombine() {
	s.Run("burns complete set and mints one whole unit", func() {
		id := s.issue(10, 100_000, 0)
		err := s.service.Recombine(s.ctx, id, s.issuer, 10)
		s.Require().NoError(err)

		fractional, _ := s.service.Balance(s.ctx, id, s.issuer)
		whole, _ := s.service.Balance(s.ctx, id.Whole(), s.issuer)
		s.Equal(int64(0), fractional)
		s.Equal(int64(1), whole)

		recombined := s.eventsOfType(events.TypeWholeAssetRecombined)
		s.Require().Len(recombined, 1)
		s.Equal(int64(10), recombined[0].Amount)
	})

	s.Run("rejects partial set", func() {
		id := s.issue(10, 100_000, 0)
		err := s.service.Recombine(s.ctx, id, s.issuer, 9)
		s.True(dErrors.HasCode(err, dErrors.CodeTransferRejected))
	})

	s.Run("rejects holder missing fractions", func() {
		id := s.issue(10, 100_000, 0)
		_, err := s.service.PurchaseFraction(s.ctx, id, s.buyer, 1, 10_000)
		s.Require().NoError(err)

		err = s.service.Recombine(s.ctx, id, s.issuer, 10)
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientSupply))
	})

	s.Run("rejects unknown asset", func() {
		err := s.service.Recombine(s.ctx, domain.AssetID(999), s.issuer, 10)
		s.True(dErrors.HasCode(err, dErrors.CodeAssetNotFound))
	})
}

func (s *RegistryServiceSuite) TestGetAssetRecord() {
	s.Run("unknown id returns zero record with exists false", func() {
		record, exists, err := s.service.GetAssetRecord(s.ctx, domain.AssetID(404))
		s.Require().NoError(err)
		s.False(exists)
		s.Zero(record.AssetID)
	})
}
