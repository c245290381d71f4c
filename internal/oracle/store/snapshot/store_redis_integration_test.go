//go:build integration

package snapshot_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"tessera/internal/oracle/models"
	"tessera/internal/oracle/store/snapshot"
	"tessera/pkg/platform/sentinel"
	"tessera/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *snapshot.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = snapshot.NewRedisStore(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestGetMissingFeed() {
	_, err := s.store.Get(context.Background(), "GHOST/USD")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestPutGetRoundTrip() {
	ctx := context.Background()
	published := time.Now().UTC().Truncate(time.Millisecond)

	want := models.PriceSnapshot{
		FeedID:      "RWA-REIT/USD",
		Price:       52_000_00,
		Expo:        -2,
		Conf:        150,
		PublishedAt: published,
		Valid:       true,
	}
	s.Require().NoError(s.store.Put(ctx, want))

	got, err := s.store.Get(ctx, "RWA-REIT/USD")
	s.Require().NoError(err)
	s.Equal(want.Price, got.Price)
	s.Equal(want.Expo, got.Expo)
	s.Equal(want.Conf, got.Conf)
	s.True(want.PublishedAt.Equal(got.PublishedAt))
	s.True(got.Valid)
}

func (s *RedisStoreSuite) TestPutOverwrites() {
	ctx := context.Background()

	first := models.PriceSnapshot{FeedID: "RWA-REIT/USD", Price: 100, Expo: -2, PublishedAt: time.Now(), Valid: true}
	s.Require().NoError(s.store.Put(ctx, first))

	second := first
	second.Price = 200
	s.Require().NoError(s.store.Put(ctx, second))

	got, err := s.store.Get(ctx, "RWA-REIT/USD")
	s.Require().NoError(err)
	s.Equal(int64(200), got.Price)
}

func (s *RedisStoreSuite) TestFeedsAreIsolated() {
	ctx := context.Background()

	s.Require().NoError(s.store.Put(ctx, models.PriceSnapshot{FeedID: "A/USD", Price: 1, PublishedAt: time.Now(), Valid: true}))
	s.Require().NoError(s.store.Put(ctx, models.PriceSnapshot{FeedID: "B/USD", Price: 2, PublishedAt: time.Now(), Valid: true}))

	a, err := s.store.Get(ctx, "A/USD")
	s.Require().NoError(err)
	s.Equal(int64(1), a.Price)

	b, err := s.store.Get(ctx, "B/USD")
	s.Require().NoError(err)
	s.Equal(int64(2), b.Price)
}
