package quotation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/traverseglobe/quotation-backend/pkg/redis"
)

type redisClient interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	QuotationKey(storageKey string) string
}

// RedisStorage stores each document as a JSON string without expiry.
type RedisStorage struct {
	client redisClient
}

func NewRedisStorage(client redisClient) (*RedisStorage, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &RedisStorage{client: client}, nil
}

func (s *RedisStorage) Name() string { return "redis" }

func (s *RedisStorage) Load(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, s.client.QuotationKey(key))
	if err != nil {
		if errors.Is(err, redis.ErrNil) {
			return nil, nil
		}
		return nil, fmt.Errorf("load quotation %q: %w", key, err)
	}
	return []byte(value), nil
}

func (s *RedisStorage) Save(ctx context.Context, key string, document []byte) error {
	if err := s.client.Set(ctx, s.client.QuotationKey(key), string(document), 0); err != nil {
		return fmt.Errorf("save quotation %q: %w", key, err)
	}
	return nil
}

func (s *RedisStorage) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.client.QuotationKey(key)); err != nil {
		return fmt.Errorf("delete quotation %q: %w", key, err)
	}
	return nil
}
