package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"tessera/internal/oracle/models"
	"tessera/pkg/domain"
	"tessera/pkg/platform/sentinel"
)

// RedisStore shares the snapshot cache between replicas. Staleness is still
// enforced at read time by the service, so entries carry no TTL: a stale
// snapshot must stay visible to diagnostics via the unsafe read path.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "oracle:snapshot:"}
}

func (s *RedisStore) key(feedID domain.FeedID) string {
	return s.prefix + feedID.String()
}

func (s *RedisStore) Get(ctx context.Context, feedID domain.FeedID) (models.PriceSnapshot, error) {
	raw, err := s.client.Get(ctx, s.key(feedID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.PriceSnapshot{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.PriceSnapshot{}, fmt.Errorf("get snapshot: %w", err)
	}
	var snapshot models.PriceSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return models.PriceSnapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snapshot, nil
}

func (s *RedisStore) Put(ctx context.Context, snapshot models.PriceSnapshot) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.client.Set(ctx, s.key(snapshot.FeedID), raw, 0).Err(); err != nil {
		return fmt.Errorf("put snapshot: %w", err)
	}
	return nil
}
