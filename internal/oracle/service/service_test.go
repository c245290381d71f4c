package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"tessera/internal/oracle/attestation"
	"tessera/internal/oracle/models"
	"tessera/internal/oracle/store/snapshot"
	"tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
	"tessera/pkg/platform/events"
	eventsmem "tessera/pkg/platform/events/store/memory"
	"tessera/pkg/requestcontext"
)

const testFeed = domain.FeedID("RWA-REIT/USD")

var testSecret = []byte("publisher-secret")

type OracleServiceSuite struct {
	suite.Suite
	store       *snapshot.InMemoryStore
	eventsStore *eventsmem.InMemoryStore
	admin       domain.AdminCapability
	service     *Service
}

func TestOracleServiceSuite(t *testing.T) {
	suite.Run(t, new(OracleServiceSuite))
}

func (s *OracleServiceSuite) SetupTest() {
	s.store = snapshot.NewInMemoryStore()
	s.eventsStore = eventsmem.NewInMemoryStore()
	s.admin = domain.NewAdminCapability("test-admin")

	verifier := attestation.NewJWTVerifier(map[domain.FeedID][]byte{testFeed: testSecret})
	s.service = New(s.store, verifier, s.admin, []domain.FeedID{testFeed},
		WithPublisher(events.NewStorePublisher(s.eventsStore, nil)),
		WithFeeCalculator(FlatFee(5)),
	)
}

func (s *OracleServiceSuite) signedUpdate(price int64, publishedAt time.Time) []byte {
	blob, err := attestation.Sign(testFeed, testSecret, models.PriceUpdate{
		Price:       price,
		Expo:        -2,
		Conf:        10,
		PublishedAt: publishedAt,
	})
	s.Require().NoError(err)
	return []byte(blob)
}

func (s *OracleServiceSuite) TestIngestUpdate() {
	now := time.Now().UTC().Truncate(time.Second)
	ctx := requestcontext.WithTime(context.Background(), now)

	s.Run("accepted update overwrites snapshot and refunds surplus", func() {
		result, err := s.service.IngestUpdate(ctx, testFeed, s.signedUpdate(123456, now), 8)
		s.Require().NoError(err)
		s.Equal(int64(123456), result.Snapshot.Price)
		s.Equal(int32(-2), result.Snapshot.Expo)
		s.True(result.Snapshot.Valid)
		s.Equal(int64(3), result.Refund)

		recorded, err := s.eventsStore.ListAll(ctx)
		s.Require().NoError(err)
		s.Require().Len(recorded, 1)
		s.Equal(events.TypePriceUpdated, recorded[0].Type)
		s.Equal(int64(123456), recorded[0].Price)
	})

	s.Run("unsupported feed is rejected without state change", func() {
		_, err := s.service.IngestUpdate(ctx, "UNKNOWN/USD", s.signedUpdate(1, now), 100)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnsupportedFeed))
	})

	s.Run("insufficient fee is rejected with fee context", func() {
		_, err := s.service.IngestUpdate(ctx, testFeed, s.signedUpdate(1, now), 4)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientFee))
		s.Equal(int64(4), dErrors.Field(err, "fee_paid"))
		s.Equal(int64(5), dErrors.Field(err, "required_fee"))
	})

	s.Run("tampered attestation is rejected", func() {
		blob := s.signedUpdate(1, now)
		blob[len(blob)-1] ^= 0xff
		_, err := s.service.IngestUpdate(ctx, testFeed, blob, 10)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidParameters))
	})

	s.Run("attestation signed for another feed is rejected", func() {
		blob, err := attestation.Sign("OTHER/USD", testSecret, models.PriceUpdate{
			Price: 1, PublishedAt: now,
		})
		s.Require().NoError(err)

		// Signed feed claim says OTHER/USD, so replaying it against
		// testFeed fails even though the signature itself is valid.
		_, err = s.service.IngestUpdate(ctx, testFeed, []byte(blob), 10)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidParameters))
	})
}

func (s *OracleServiceSuite) TestReadFreshPrice() {
	published := time.Now().UTC().Truncate(time.Second)
	ctx := requestcontext.WithTime(context.Background(), published)

	s.Run("unpopulated feed is unavailable", func() {
		_, err := s.service.ReadFreshPrice(ctx, testFeed)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodePriceUnavailable))
	})

	_, err := s.service.IngestUpdate(ctx, testFeed, s.signedUpdate(5000, published), 5)
	s.Require().NoError(err)

	s.Run("fresh immediately after update", func() {
		got, err := s.service.ReadFreshPrice(ctx, testFeed)
		s.Require().NoError(err)
		s.Equal(int64(5000), got.Price)
	})

	s.Run("stale once age exceeds threshold", func() {
		later := requestcontext.WithTime(context.Background(), published.Add(DefaultStalenessThreshold+time.Second))
		_, err := s.service.ReadFreshPrice(later, testFeed)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodePriceStale))
		s.Equal(int64(601), dErrors.Field(err, "age_seconds"))
	})

	s.Run("staleness independent of other feeds being updated", func() {
		other := domain.FeedID("OTHER/USD")
		verifier := attestation.NewJWTVerifier(map[domain.FeedID][]byte{testFeed: testSecret, other: testSecret})
		svc := New(s.store, verifier, s.admin, []domain.FeedID{testFeed, other})

		later := published.Add(DefaultStalenessThreshold + time.Minute)
		blob, err := attestation.Sign(other, testSecret, models.PriceUpdate{Price: 7, PublishedAt: later})
		s.Require().NoError(err)
		laterCtx := requestcontext.WithTime(context.Background(), later)
		_, err = svc.IngestUpdate(laterCtx, other, []byte(blob), 1)
		s.Require().NoError(err)

		_, err = svc.ReadFreshPrice(laterCtx, testFeed)
		s.True(dErrors.HasCode(err, dErrors.CodePriceStale))
		got, err := svc.ReadFreshPrice(laterCtx, other)
		s.Require().NoError(err)
		s.Equal(int64(7), got.Price)
	})

	s.Run("unsafe read ignores staleness", func() {
		later := requestcontext.WithTime(context.Background(), published.Add(24*time.Hour))
		got, err := s.service.ReadCachedUnsafe(later, testFeed)
		s.Require().NoError(err)
		s.Equal(int64(5000), got.Price)
	})
}

func (s *OracleServiceSuite) TestAdminOperations() {
	wrongCap := domain.NewAdminCapability("not-the-admin")

	s.Run("threshold change requires capability", func() {
		err := s.service.SetStalenessThreshold(wrongCap, time.Minute)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("threshold change takes effect immediately", func() {
		published := time.Now().UTC().Truncate(time.Second)
		ctx := requestcontext.WithTime(context.Background(), published)
		_, err := s.service.IngestUpdate(ctx, testFeed, s.signedUpdate(1, published), 5)
		s.Require().NoError(err)

		s.Require().NoError(s.service.SetStalenessThreshold(s.admin, 30*time.Second))

		later := requestcontext.WithTime(context.Background(), published.Add(31*time.Second))
		_, err = s.service.ReadFreshPrice(later, testFeed)
		s.True(dErrors.HasCode(err, dErrors.CodePriceStale))
	})

	s.Run("removed feed rejects further updates", func() {
		s.Require().NoError(s.service.RemoveSupportedFeed(s.admin, testFeed))
		now := time.Now().UTC()
		_, err := s.service.IngestUpdate(context.Background(), testFeed, s.signedUpdate(1, now), 5)
		s.True(dErrors.HasCode(err, dErrors.CodeUnsupportedFeed))
	})

	s.Run("zero threshold is rejected", func() {
		err := s.service.SetStalenessThreshold(s.admin, 0)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidParameters))
	})
}
