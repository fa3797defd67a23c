package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/tutorgate/tutorgate/internal/storage"
)

// Keys expire a little past the longest window so idle identities decay
// on their own.
const redisQuotaTTL = 25 * time.Hour

// RedisStore keeps quotas as JSON blobs in redis so multiple gateway
// instances can share them. The local mutex serializes the
// read-modify-write within one process; cross-process writers can still
// race, which at worst admits a handful of extra requests.
type RedisStore struct {
	mu    sync.Mutex
	redis *storage.RedisClient
}

func NewRedisStore(redis *storage.RedisClient) *RedisStore {
	return &RedisStore{redis: redis}
}

func quotaKey(identity string) string {
	return fmt.Sprintf("quota:%s", identity)
}

func (s *RedisStore) Update(ctx context.Context, identity string, fn func(*Quota)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	quota, _, err := s.load(ctx, identity)
	if err != nil {
		return err
	}
	if quota == nil {
		quota = &Quota{}
	}

	fn(quota)

	data, err := json.Marshal(quota)
	if err != nil {
		return err
	}

	return s.redis.Set(ctx, quotaKey(identity), data, redisQuotaTTL)
}

func (s *RedisStore) Peek(ctx context.Context, identity string) (*Quota, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx, identity)
}

func (s *RedisStore) load(ctx context.Context, identity string) (*Quota, bool, error) {
	data, found, err := s.redis.Get(ctx, quotaKey(identity))
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}

	var quota Quota
	if err := json.Unmarshal([]byte(data), &quota); err != nil {
		return nil, false, fmt.Errorf("corrupt quota state for %s: %w", identity, err)
	}

	return &quota, true, nil
}
